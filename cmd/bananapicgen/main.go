package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ohyesboy/BananaPicGen/internal/keys"
	"github.com/ohyesboy/BananaPicGen/internal/localstore"
	"github.com/ohyesboy/BananaPicGen/internal/prefs"
	"github.com/ohyesboy/BananaPicGen/internal/provider"
	"github.com/ohyesboy/BananaPicGen/internal/provider/gemini"
	"github.com/ohyesboy/BananaPicGen/internal/remote"
	"github.com/ohyesboy/BananaPicGen/internal/usage"
	"github.com/ohyesboy/BananaPicGen/pkg/models"
)

var (
	version = "dev"
	commit  = "none"
)

var flagVerbose bool

type App struct {
	Out         io.Writer
	Err         io.Writer
	In          io.Reader
	Registry    *models.ModelRegistry
	GetEnv      func(string) string
	NewProvider func(cfg *provider.Config, registry *models.ModelRegistry) (provider.Provider, error)
}

func DefaultApp() *App {
	return &App{
		Out:      os.Stdout,
		Err:      os.Stderr,
		In:       os.Stdin,
		Registry: models.DefaultRegistry(),
		GetEnv:   os.Getenv,
		NewProvider: func(cfg *provider.Config, registry *models.ModelRegistry) (provider.Provider, error) {
			return gemini.New(cfg, registry)
		},
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	app := DefaultApp()
	rootCmd := newRootCmd(app)
	return rootCmd.Execute()
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bananapicgen",
		Short: "Fan prompts out across reference images with the Gemini image API",
		Long: `bananapicgen runs a list of user-authored prompts against a shared set of
reference images, one generation call per prompt, and tracks token and cost
usage across sessions.

The prompt list lives in a shared document store and is edited locally with
background autosave; batches always run against the current local state.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newRunCmd(app))
	cmd.AddCommand(newReplCmd(app))
	cmd.AddCommand(newPromptsCmd(app))
	cmd.AddCommand(newKeysCmd(app))
	cmd.AddCommand(newUsageCmd(app))

	return cmd
}

func newLogger(app *App) zerolog.Logger {
	level := zerolog.WarnLevel
	if flagVerbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: app.Err}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// env is the shared wiring every command needs: credential store, local
// state, ledger, and the remote document store.
type env struct {
	keysStore *keys.Store
	creds     keys.Credentials
	userID    string
	hasAccess bool
	local     *localstore.Store
	prefs     *prefs.Prefs
	ledger    *usage.Ledger
	remote    *remote.SQLiteStore
	log       zerolog.Logger
}

func (e *env) Close() error {
	if e.remote != nil {
		return e.remote.Close()
	}
	return nil
}

func openEnv(app *App) (*env, error) {
	keysStore, err := keys.NewStore()
	if err != nil {
		return nil, err
	}

	creds, err := keysStore.Load()
	if err != nil {
		return nil, err
	}

	userID := creds.UserID
	if userID == "" {
		userID = "local"
	}

	allowlist := keys.Allowlist(app.GetEnv("BANANAPICGEN_ALLOWED_USERS"))
	hasAccess := len(allowlist) == 0 || slices.Contains(allowlist, creds.UserID)

	local, err := localstore.Open(filepath.Join(keysStore.ConfigDir(), "local_state.json"))
	if err != nil {
		return nil, err
	}

	remoteStore, err := remote.NewSQLiteStore()
	if err != nil {
		return nil, err
	}

	return &env{
		keysStore: keysStore,
		creds:     creds,
		userID:    userID,
		hasAccess: hasAccess,
		local:     local,
		prefs:     prefs.New(local, app.Registry),
		ledger:    usage.NewLedger(usage.DefaultPriceTable(), local),
		remote:    remoteStore,
		log:       newLogger(app),
	}, nil
}

// credentialState is the orchestrator's precondition check, resolved once
// per invocation from whichever source supplied the API key.
type credentialState struct {
	valid bool
}

func (c credentialState) HasValidCredential() bool {
	return c.valid
}
