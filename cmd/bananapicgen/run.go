package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ohyesboy/BananaPicGen/internal/image"
	"github.com/ohyesboy/BananaPicGen/internal/keys"
	"github.com/ohyesboy/BananaPicGen/internal/orchestrator"
	"github.com/ohyesboy/BananaPicGen/internal/provider"
	"github.com/ohyesboy/BananaPicGen/internal/remote"
)

var (
	flagImages      []string
	flagModel       string
	flagAspectRatio string
	flagImageSize   string
	flagTemperature float64
	flagOutput      string
	flagAPIKey      string
)

func newRunCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one batch: every enabled prompt against the selected images",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatch(cmd, app)
		},
	}

	cmd.Flags().StringArrayVarP(&flagImages, "image", "i", nil, "reference image file (repeatable)")
	cmd.Flags().StringVarP(&flagModel, "model", "m", "", "model to use (defaults to the saved preference)")
	cmd.Flags().StringVar(&flagAspectRatio, "aspect-ratio", "", "output aspect ratio (e.g. 16:9)")
	cmd.Flags().StringVar(&flagImageSize, "size", "", "output image size (1K, 2K, 4K)")
	cmd.Flags().Float64VarP(&flagTemperature, "temperature", "t", 0, "generation temperature")
	cmd.Flags().StringVarP(&flagOutput, "output", "o", ".", "output directory")
	cmd.Flags().StringVar(&flagAPIKey, "api-key", "", "API key (defaults to stored credentials or GEMINI_API_KEY)")

	return cmd
}

func runBatch(_ *cobra.Command, app *App) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	e, err := openEnv(app)
	if err != nil {
		return err
	}
	defer e.Close()

	if flagModel != "" {
		if err := e.prefs.SetModel(flagModel); err != nil {
			return err
		}
	}
	if flagAspectRatio != "" {
		if err := e.prefs.SetAspectRatio(flagAspectRatio); err != nil {
			return err
		}
	}
	if flagImageSize != "" {
		if err := e.prefs.SetImageSize(flagImageSize); err != nil {
			return err
		}
	}
	if flagTemperature != 0 {
		if err := e.prefs.SetTemperature(flagTemperature); err != nil {
			return err
		}
	}

	images, err := image.NewLoader().LoadAll(flagImages)
	if err != nil {
		return err
	}

	doc, err := e.remote.ReadPromptDocument(ctx, e.userID)
	if err == remote.ErrNotFound {
		return fmt.Errorf("no prompt list found: seed one with 'bananapicgen prompts import'")
	}
	if err != nil {
		return err
	}

	if lifetime, err := e.remote.ReadLifetimeUsage(ctx, e.userID); err == nil {
		if _, err := e.ledger.MergeLifetime(lifetime.LifetimeCost, lifetime.LifetimeImageCount); err != nil {
			e.log.Warn().Err(err).Msg("failed to persist usage snapshot")
		}
	}

	apiKey, source, err := keys.GetAPIKey(flagAPIKey, "GEMINI_API_KEY")
	if err != nil {
		return err
	}
	e.log.Debug().Str("source", source).Msg("resolved API key")

	prov, err := app.NewProvider(&provider.Config{APIKey: apiKey}, app.Registry)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	total := len(doc.State.EnabledItems())
	current := 0
	saver := image.NewSaver()

	orch := orchestrator.New(orchestrator.Config{
		Provider:    prov,
		Ledger:      e.ledger,
		Credentials: credentialState{valid: apiKey != "" && e.hasAccess},
		Logger:      e.log,
		OnTaskUpdate: func(_ string, task orchestrator.Task) {
			switch task.Status {
			case orchestrator.StatusProcessing:
				current++
				fmt.Fprintf(app.Out, "[%d/%d] Generating: %q...\n", current, total, task.PromptName)
			case orchestrator.StatusFailed:
				fmt.Fprintf(app.Err, "       Error: %s\n", task.ErrorMessage)
			}
		},
	})

	result, err := orch.Run(ctx, doc.State, images, orchestrator.Options{
		Model:       e.prefs.Model(),
		AspectRatio: e.prefs.AspectRatio(),
		ImageSize:   e.prefs.ImageSize(),
		Temperature: e.prefs.Temperature(),
	})
	if err != nil {
		return err
	}

	for i, task := range result.Batch.Tasks {
		if task.Status != orchestrator.StatusCompleted {
			continue
		}
		path := filepath.Join(flagOutput, image.GenerateFilename(i+1, task.PromptName))
		if err := saver.Save(ctx, task.ResultURL, path); err != nil {
			fmt.Fprintf(app.Err, "       Failed to save %q: %v\n", task.PromptName, err)
			continue
		}
		fmt.Fprintf(app.Out, "       Saved: %s\n", path)
	}

	snap := e.ledger.Snapshot()
	if err := e.remote.WriteLifetimeUsage(ctx, e.userID, &remote.LifetimeUsage{
		LifetimeCost:       snap.LifetimeCost,
		LifetimeImageCount: snap.LifetimeImageCount,
	}); err != nil {
		e.log.Warn().Err(err).Msg("failed to write lifetime usage")
	}

	breakdown := e.ledger.CostBreakdown(e.prefs.Model())
	fmt.Fprintln(app.Out)
	fmt.Fprintln(app.Out, "Summary:")
	fmt.Fprintf(app.Out, "  Successful: %d/%d prompts\n", result.Completed, len(result.Batch.Tasks))
	if result.Failed > 0 {
		fmt.Fprintf(app.Out, "  Failed: %d\n", result.Failed)
	}
	fmt.Fprintf(app.Out, "  Session cost: $%.4f (lifetime $%.4f)\n", breakdown.TotalCost, breakdown.LifetimeCost)

	if result.AuthRequired {
		return fmt.Errorf("batch aborted: credential rejected, re-authenticate and retry")
	}
	return nil
}
