package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ohyesboy/BananaPicGen/internal/autosave"
	"github.com/ohyesboy/BananaPicGen/internal/image"
	"github.com/ohyesboy/BananaPicGen/internal/keys"
	"github.com/ohyesboy/BananaPicGen/internal/orchestrator"
	"github.com/ohyesboy/BananaPicGen/internal/prompts"
	"github.com/ohyesboy/BananaPicGen/internal/provider"
	"github.com/ohyesboy/BananaPicGen/internal/repl"
)

var (
	flagReplOutput string
	flagReplAPIKey string
	flagQuiet      int
)

func newReplCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "repl",
		Aliases: []string{"edit"},
		Short:   "Edit the prompt list interactively with background autosave",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRepl(cmd, app)
		},
	}

	cmd.Flags().StringVarP(&flagReplOutput, "output", "o", ".", "output directory for generated images")
	cmd.Flags().StringVar(&flagReplAPIKey, "api-key", "", "API key (defaults to stored credentials or GEMINI_API_KEY)")
	cmd.Flags().IntVar(&flagQuiet, "quiet-seconds", 5, "seconds of inactivity before edits are autosaved")

	return cmd
}

func runRepl(_ *cobra.Command, app *App) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	e, err := openEnv(app)
	if err != nil {
		return err
	}
	defer e.Close()

	list := prompts.NewList(nil)
	syncer := autosave.New(autosave.Config{
		List:           list,
		Store:          e.remote,
		UserID:         e.userID,
		Logger:         e.log,
		QuietThreshold: time.Duration(flagQuiet) * time.Second,
	})

	if err := syncer.LoadInitial(ctx); err != nil {
		return fmt.Errorf("failed to load prompt list: %w", err)
	}

	if lifetime, err := e.remote.ReadLifetimeUsage(ctx, e.userID); err == nil {
		if _, err := e.ledger.MergeLifetime(lifetime.LifetimeCost, lifetime.LifetimeImageCount); err != nil {
			e.log.Warn().Err(err).Msg("failed to persist usage snapshot")
		}
	}

	go syncer.Run(ctx)

	verifier := keys.NewVerifier(e.keysStore, keys.Allowlist(app.GetEnv("BANANAPICGEN_ALLOWED_USERS")), app.Err)

	r := repl.New(&repl.Config{
		In:        app.In,
		Out:       app.Out,
		Err:       app.Err,
		List:      list,
		Syncer:    syncer,
		Prefs:     e.prefs,
		Ledger:    e.ledger,
		Verifier:  verifier,
		Store:     e.remote,
		UserID:    e.userID,
		Loader:    image.NewLoader(),
		Saver:     image.NewSaver(),
		OutputDir: flagReplOutput,
		Logger:    e.log,
	})

	apiKey, _, err := keys.GetAPIKey(flagReplAPIKey, "GEMINI_API_KEY")
	if err != nil {
		// The editor still works without a key; run will refuse to start.
		e.log.Debug().Err(err).Msg("no API key available yet")
	}

	var prov provider.Provider
	if apiKey != "" {
		prov, err = app.NewProvider(&provider.Config{APIKey: apiKey}, app.Registry)
		if err != nil {
			return fmt.Errorf("failed to create provider: %w", err)
		}
	}

	r.SetOrchestrator(orchestrator.New(orchestrator.Config{
		Provider:     prov,
		Ledger:       e.ledger,
		Credentials:  credentialState{valid: apiKey != "" && e.hasAccess},
		Logger:       e.log,
		OnTaskUpdate: r.HandleTaskUpdate,
	}))

	return r.Run(ctx)
}
