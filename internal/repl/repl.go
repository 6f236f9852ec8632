package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ohyesboy/BananaPicGen/internal/autosave"
	"github.com/ohyesboy/BananaPicGen/internal/image"
	"github.com/ohyesboy/BananaPicGen/internal/keys"
	"github.com/ohyesboy/BananaPicGen/internal/orchestrator"
	"github.com/ohyesboy/BananaPicGen/internal/prefs"
	"github.com/ohyesboy/BananaPicGen/internal/prompts"
	"github.com/ohyesboy/BananaPicGen/internal/remote"
	"github.com/ohyesboy/BananaPicGen/internal/usage"
)

// REPL is the interactive prompt-list editor: the CLI stand-in for the
// original's browser UI. Edits land on the in-memory list immediately; the
// autosave syncer persists them to the remote store in the background.
type REPL struct {
	in        io.Reader
	out       io.Writer
	err       io.Writer
	list      *prompts.List
	syncer    *autosave.Syncer
	orch      *orchestrator.Orchestrator
	prefs     *prefs.Prefs
	ledger    *usage.Ledger
	verifier  *keys.Verifier
	store     remote.Store
	userID    string
	loader    *image.Loader
	saver     *image.Saver
	outputDir string
	log       zerolog.Logger
	commands  map[string]Command
	running   bool

	mu             sync.Mutex
	images         [][]byte
	imagePaths     []string
	currentBatchID string
	runActive      bool
}

type Config struct {
	In        io.Reader
	Out       io.Writer
	Err       io.Writer
	List      *prompts.List
	Syncer    *autosave.Syncer
	Prefs     *prefs.Prefs
	Ledger    *usage.Ledger
	Verifier  *keys.Verifier
	Store     remote.Store
	UserID    string
	Loader    *image.Loader
	Saver     *image.Saver
	OutputDir string
	Logger    zerolog.Logger
}

func New(cfg *Config) *REPL {
	r := &REPL{
		in:        cfg.In,
		out:       cfg.Out,
		err:       cfg.Err,
		list:      cfg.List,
		syncer:    cfg.Syncer,
		prefs:     cfg.Prefs,
		ledger:    cfg.Ledger,
		verifier:  cfg.Verifier,
		store:     cfg.Store,
		userID:    cfg.UserID,
		loader:    cfg.Loader,
		saver:     cfg.Saver,
		outputDir: cfg.OutputDir,
		log:       cfg.Logger,
		commands:  make(map[string]Command),
	}
	r.registerCommands()
	return r
}

// SetOrchestrator wires the batch engine. Separate from New so the
// orchestrator's task-update callback can point back at the REPL.
func (r *REPL) SetOrchestrator(orch *orchestrator.Orchestrator) {
	r.orch = orch
}

func (r *REPL) Run(ctx context.Context) error {
	r.running = true
	r.printWelcome()

	scanner := bufio.NewScanner(r.in)
	for r.running {
		r.printPrompt()
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if err := r.execute(ctx, line); err != nil {
			fmt.Fprintf(r.err, "Error: %v\n", err)
		}
	}

	return scanner.Err()
}

func (r *REPL) execute(ctx context.Context, line string) error {
	parts := parseCommand(line)
	if len(parts) == 0 {
		return nil
	}

	cmdName := strings.ToLower(parts[0])
	args := parts[1:]

	cmd, ok := r.commands[cmdName]
	if !ok {
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmdName)
	}

	return cmd.Execute(ctx, r, args)
}

func (r *REPL) Stop() {
	r.running = false
}

// HandleTaskUpdate receives task status transitions from the orchestrator.
// Updates for a batch other than the one currently running are stale writes
// from a discarded batch and are dropped.
func (r *REPL) HandleTaskUpdate(batchID string, task orchestrator.Task) {
	r.mu.Lock()
	if r.currentBatchID != batchID {
		if !r.runActive {
			r.mu.Unlock()
			return
		}
		r.currentBatchID = batchID
	}
	r.mu.Unlock()

	switch task.Status {
	case orchestrator.StatusProcessing:
		fmt.Fprintf(r.out, "Generating: %q...\n", task.PromptName)
	case orchestrator.StatusCompleted:
		fmt.Fprintf(r.out, "       Done: %s\n", task.PromptName)
	case orchestrator.StatusFailed:
		fmt.Fprintf(r.err, "       Failed: %s: %s\n", task.PromptName, task.ErrorMessage)
	}
}

func (r *REPL) printWelcome() {
	fmt.Fprintln(r.out, "bananapicgen interactive mode")
	fmt.Fprintln(r.out, "Type 'help' for available commands, 'quit' to exit.")
	fmt.Fprintln(r.out)
}

func (r *REPL) printPrompt() {
	phase := r.list.Phase()
	if phase == prompts.PhaseDirty || phase == prompts.PhaseFlushing {
		fmt.Fprintf(r.out, "bananapicgen [%s]*> ", r.prefs.Model())
	} else {
		fmt.Fprintf(r.out, "bananapicgen [%s]> ", r.prefs.Model())
	}
}

func parseCommand(line string) []string {
	var parts []string
	var current strings.Builder
	inQuotes := false
	quoteChar := rune(0)

	for _, ch := range line {
		switch {
		case ch == '"' || ch == '\'':
			if inQuotes && ch == quoteChar {
				inQuotes = false
				quoteChar = 0
			} else if !inQuotes {
				inQuotes = true
				quoteChar = ch
			} else {
				current.WriteRune(ch)
			}
		case ch == ' ' && !inQuotes:
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(ch)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}
