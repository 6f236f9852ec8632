package repl

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ohyesboy/BananaPicGen/internal/image"
	"github.com/ohyesboy/BananaPicGen/internal/orchestrator"
	"github.com/ohyesboy/BananaPicGen/internal/remote"
)

type Command interface {
	Name() string
	Aliases() []string
	Description() string
	Usage() string
	Execute(ctx context.Context, r *REPL, args []string) error
}

func (r *REPL) registerCommands() {
	cmds := []Command{
		&ListCommand{},
		&AddCommand{},
		&NameCommand{},
		&TextCommand{},
		&EnableCommand{},
		&DisableCommand{},
		&SkipCommand{},
		&MoveCommand{},
		&RemoveCommand{},
		&BeforeCommand{},
		&AfterCommand{},
		&ImagesCommand{},
		&RunCommand{},
		&ModelCommand{},
		&UsageCommand{},
		&ClearCommand{},
		&SyncCommand{},
		&HelpCommand{},
		&QuitCommand{},
	}

	for _, cmd := range cmds {
		r.commands[cmd.Name()] = cmd
		for _, alias := range cmd.Aliases() {
			r.commands[alias] = cmd
		}
	}
}

// parseIndex converts a 1-based display index to a 0-based list index.
func parseIndex(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid index %q", arg)
	}
	return n - 1, nil
}

type ListCommand struct{}

func (c *ListCommand) Name() string        { return "list" }
func (c *ListCommand) Aliases() []string   { return []string{"ls", "show"} }
func (c *ListCommand) Description() string { return "Show the prompt list" }
func (c *ListCommand) Usage() string       { return "list" }

func (c *ListCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	state := r.list.Snapshot()

	if state.BeforeText != "" {
		fmt.Fprintf(r.out, "Before text: %q\n", state.BeforeText)
	}
	if state.AfterText != "" {
		fmt.Fprintf(r.out, "After text: %q\n", state.AfterText)
	}

	if len(state.Items) == 0 {
		fmt.Fprintln(r.out, "No prompts. Use 'add' to create one.")
		return nil
	}

	for i, item := range state.Items {
		marker := " "
		if item.Enabled {
			marker = "x"
		}
		flags := ""
		if item.SkipSurrounding {
			flags = " (no surrounding text)"
		}
		name := item.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(r.out, "%2d. [%s] %s: %s%s\n", i+1, marker, name, item.Text, flags)
	}

	r.mu.Lock()
	paths := r.imagePaths
	r.mu.Unlock()
	if len(paths) > 0 {
		fmt.Fprintf(r.out, "Images: %s\n", strings.Join(paths, ", "))
	}
	return nil
}

type AddCommand struct{}

func (c *AddCommand) Name() string        { return "add" }
func (c *AddCommand) Aliases() []string   { return []string{"a"} }
func (c *AddCommand) Description() string { return "Add an empty prompt" }
func (c *AddCommand) Usage() string       { return "add" }

func (c *AddCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	r.list.Add()
	fmt.Fprintf(r.out, "Added prompt %d\n", r.list.Len())
	return nil
}

type NameCommand struct{}

func (c *NameCommand) Name() string        { return "name" }
func (c *NameCommand) Aliases() []string   { return nil }
func (c *NameCommand) Description() string { return "Set a prompt's name" }
func (c *NameCommand) Usage() string       { return "name <index> <name>" }

func (c *NameCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	index, err := parseIndex(args[0])
	if err != nil {
		return err
	}
	return r.list.SetName(index, strings.Join(args[1:], " "))
}

type TextCommand struct{}

func (c *TextCommand) Name() string        { return "text" }
func (c *TextCommand) Aliases() []string   { return []string{"t"} }
func (c *TextCommand) Description() string { return "Set a prompt's text" }
func (c *TextCommand) Usage() string       { return "text <index> <text>" }

func (c *TextCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	index, err := parseIndex(args[0])
	if err != nil {
		return err
	}
	return r.list.SetText(index, strings.Join(args[1:], " "))
}

type EnableCommand struct{}

func (c *EnableCommand) Name() string        { return "enable" }
func (c *EnableCommand) Aliases() []string   { return []string{"on"} }
func (c *EnableCommand) Description() string { return "Include a prompt in the next batch" }
func (c *EnableCommand) Usage() string       { return "enable <index>" }

func (c *EnableCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	index, err := parseIndex(args[0])
	if err != nil {
		return err
	}
	return r.list.SetEnabled(index, true)
}

type DisableCommand struct{}

func (c *DisableCommand) Name() string        { return "disable" }
func (c *DisableCommand) Aliases() []string   { return []string{"off"} }
func (c *DisableCommand) Description() string { return "Exclude a prompt from the next batch" }
func (c *DisableCommand) Usage() string       { return "disable <index>" }

func (c *DisableCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	index, err := parseIndex(args[0])
	if err != nil {
		return err
	}
	return r.list.SetEnabled(index, false)
}

type SkipCommand struct{}

func (c *SkipCommand) Name() string        { return "skip" }
func (c *SkipCommand) Aliases() []string   { return nil }
func (c *SkipCommand) Description() string { return "Toggle surrounding text for a prompt" }
func (c *SkipCommand) Usage() string       { return "skip <index>" }

func (c *SkipCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	index, err := parseIndex(args[0])
	if err != nil {
		return err
	}
	state := r.list.Snapshot()
	if index < 0 || index >= len(state.Items) {
		return fmt.Errorf("no prompt at index %s", args[0])
	}
	return r.list.SetSkipSurrounding(index, !state.Items[index].SkipSurrounding)
}

type MoveCommand struct{}

func (c *MoveCommand) Name() string        { return "move" }
func (c *MoveCommand) Aliases() []string   { return []string{"mv"} }
func (c *MoveCommand) Description() string { return "Move a prompt to another position" }
func (c *MoveCommand) Usage() string       { return "move <from> <to>" }

func (c *MoveCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	from, err := parseIndex(args[0])
	if err != nil {
		return err
	}
	to, err := parseIndex(args[1])
	if err != nil {
		return err
	}
	return r.list.Move(from, to)
}

type RemoveCommand struct{}

func (c *RemoveCommand) Name() string        { return "rm" }
func (c *RemoveCommand) Aliases() []string   { return []string{"remove", "del"} }
func (c *RemoveCommand) Description() string { return "Delete a prompt" }
func (c *RemoveCommand) Usage() string       { return "rm <index>" }

func (c *RemoveCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	index, err := parseIndex(args[0])
	if err != nil {
		return err
	}
	return r.list.Remove(index)
}

type BeforeCommand struct{}

func (c *BeforeCommand) Name() string        { return "before" }
func (c *BeforeCommand) Aliases() []string   { return nil }
func (c *BeforeCommand) Description() string { return "Set the text prepended to every prompt" }
func (c *BeforeCommand) Usage() string       { return "before [text]" }

func (c *BeforeCommand) Execute(_ context.Context, r *REPL, args []string) error {
	r.list.SetBeforeText(strings.Join(args, " "))
	return nil
}

type AfterCommand struct{}

func (c *AfterCommand) Name() string        { return "after" }
func (c *AfterCommand) Aliases() []string   { return nil }
func (c *AfterCommand) Description() string { return "Set the text appended to every prompt" }
func (c *AfterCommand) Usage() string       { return "after [text]" }

func (c *AfterCommand) Execute(_ context.Context, r *REPL, args []string) error {
	r.list.SetAfterText(strings.Join(args, " "))
	return nil
}

type ImagesCommand struct{}

func (c *ImagesCommand) Name() string        { return "images" }
func (c *ImagesCommand) Aliases() []string   { return []string{"img"} }
func (c *ImagesCommand) Description() string { return "Select the reference images for the next batch" }
func (c *ImagesCommand) Usage() string       { return "images <path> [path...]" }

func (c *ImagesCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	images, err := r.loader.LoadAll(args)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.images = images
	r.imagePaths = args
	r.mu.Unlock()

	fmt.Fprintf(r.out, "Loaded %d image(s)\n", len(images))
	return nil
}

type RunCommand struct{}

func (c *RunCommand) Name() string        { return "run" }
func (c *RunCommand) Aliases() []string   { return []string{"r", "go"} }
func (c *RunCommand) Description() string { return "Run a batch over the enabled prompts" }
func (c *RunCommand) Usage() string       { return "run" }

func (c *RunCommand) Execute(ctx context.Context, r *REPL, _ []string) error {
	r.mu.Lock()
	images := r.images
	r.runActive = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.runActive = false
		r.mu.Unlock()
	}()

	state := r.list.Snapshot()
	opts := orchestrator.Options{
		Model:       r.prefs.Model(),
		AspectRatio: r.prefs.AspectRatio(),
		ImageSize:   r.prefs.ImageSize(),
		Temperature: r.prefs.Temperature(),
	}

	result, err := r.orch.Run(ctx, state, images, opts)
	if err != nil {
		return err
	}

	for i, task := range result.Batch.Tasks {
		if task.Status != orchestrator.StatusCompleted {
			continue
		}
		path := filepath.Join(r.outputDir, image.GenerateFilename(i+1, task.PromptName))
		if err := r.saver.Save(ctx, task.ResultURL, path); err != nil {
			fmt.Fprintf(r.err, "Failed to save %s: %v\n", task.PromptName, err)
			continue
		}
		fmt.Fprintf(r.out, "Saved: %s\n", path)
	}

	printSummary(r, result)

	if result.AuthRequired {
		r.verifier.RequestCredential()
	}

	snap := r.ledger.Snapshot()
	if err := r.store.WriteLifetimeUsage(ctx, r.userID, &remote.LifetimeUsage{
		LifetimeCost:       snap.LifetimeCost,
		LifetimeImageCount: snap.LifetimeImageCount,
	}); err != nil {
		r.log.Warn().Err(err).Msg("failed to write lifetime usage")
	}

	return nil
}

func printSummary(r *REPL, result *orchestrator.Result) {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "Summary:")
	fmt.Fprintf(r.out, "  Successful: %d/%d prompts\n", result.Completed, len(result.Batch.Tasks))
	if result.Failed > 0 {
		fmt.Fprintf(r.out, "  Failed: %d\n", result.Failed)
	}

	breakdown := r.ledger.CostBreakdown(r.prefs.Model())
	fmt.Fprintf(r.out, "  Session cost: $%.4f\n", breakdown.TotalCost)

	pending := 0
	for _, task := range result.Batch.Tasks {
		if task.Status == orchestrator.StatusPending {
			pending++
		}
	}
	if pending > 0 {
		fmt.Fprintf(r.out, "  Not run: %d (batch aborted)\n", pending)
	}
}

type ModelCommand struct{}

func (c *ModelCommand) Name() string        { return "model" }
func (c *ModelCommand) Aliases() []string   { return []string{"m"} }
func (c *ModelCommand) Description() string { return "Show or switch the active model" }
func (c *ModelCommand) Usage() string       { return "model [name]" }

func (c *ModelCommand) Execute(_ context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		fmt.Fprintf(r.out, "Current model: %s\n", r.prefs.Model())
		return nil
	}

	name := args[0]
	if name == r.prefs.Model() {
		return nil
	}
	if err := r.prefs.SetModel(name); err != nil {
		return err
	}

	// Switching models invalidates session cost comparisons.
	if err := r.ledger.Reset(); err != nil {
		r.log.Warn().Err(err).Msg("failed to persist usage snapshot")
	}
	fmt.Fprintf(r.out, "Switched to %s (session usage cleared)\n", name)
	return nil
}

type UsageCommand struct{}

func (c *UsageCommand) Name() string        { return "usage" }
func (c *UsageCommand) Aliases() []string   { return []string{"cost"} }
func (c *UsageCommand) Description() string { return "Show session and lifetime cost" }
func (c *UsageCommand) Usage() string       { return "usage" }

func (c *UsageCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	snap := r.ledger.Snapshot()
	breakdown := r.ledger.CostBreakdown(r.prefs.Model())

	fmt.Fprintln(r.out, "Session:")
	fmt.Fprintf(r.out, "  Input tokens:        %d\n", snap.Session.InputTokens)
	fmt.Fprintf(r.out, "  Output text tokens:  %d\n", snap.Session.OutputTextTokens)
	fmt.Fprintf(r.out, "  Output image tokens: %d\n", snap.Session.OutputImageTokens)
	fmt.Fprintf(r.out, "  Images:              %d\n", snap.Session.ImageCount)
	fmt.Fprintf(r.out, "  Input cost:          $%.4f\n", breakdown.InputCost)
	fmt.Fprintf(r.out, "  Output cost:         $%.4f\n", breakdown.OutputCost)
	fmt.Fprintf(r.out, "  Total cost:          $%.4f\n", breakdown.TotalCost)
	fmt.Fprintln(r.out, "Lifetime:")
	fmt.Fprintf(r.out, "  Cost:                $%.4f\n", snap.LifetimeCost)
	fmt.Fprintf(r.out, "  Images:              %d\n", snap.LifetimeImageCount)
	return nil
}

type ClearCommand struct{}

func (c *ClearCommand) Name() string        { return "clear" }
func (c *ClearCommand) Aliases() []string   { return nil }
func (c *ClearCommand) Description() string { return "Clear session usage counters" }
func (c *ClearCommand) Usage() string       { return "clear" }

func (c *ClearCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	if err := r.ledger.Reset(); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "Session usage cleared (lifetime totals kept)")
	return nil
}

type SyncCommand struct{}

func (c *SyncCommand) Name() string        { return "sync" }
func (c *SyncCommand) Aliases() []string   { return []string{"flush"} }
func (c *SyncCommand) Description() string { return "Flush pending edits to the remote store now" }
func (c *SyncCommand) Usage() string       { return "sync" }

func (c *SyncCommand) Execute(ctx context.Context, r *REPL, _ []string) error {
	if err := r.syncer.Flush(ctx); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "Synced")
	return nil
}

type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Aliases() []string   { return []string{"?"} }
func (c *HelpCommand) Description() string { return "Show available commands" }
func (c *HelpCommand) Usage() string       { return "help" }

func (c *HelpCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	seen := make(map[string]bool)
	var cmds []Command
	for _, cmd := range r.commands {
		if !seen[cmd.Name()] {
			seen[cmd.Name()] = true
			cmds = append(cmds, cmd)
		}
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name() < cmds[j].Name() })

	fmt.Fprintln(r.out, "Commands:")
	for _, cmd := range cmds {
		fmt.Fprintf(r.out, "  %-28s %s\n", cmd.Usage(), cmd.Description())
	}
	return nil
}

type QuitCommand struct{}

func (c *QuitCommand) Name() string        { return "quit" }
func (c *QuitCommand) Aliases() []string   { return []string{"exit", "q"} }
func (c *QuitCommand) Description() string { return "Flush pending edits and exit" }
func (c *QuitCommand) Usage() string       { return "quit" }

func (c *QuitCommand) Execute(ctx context.Context, r *REPL, _ []string) error {
	if err := r.syncer.Flush(ctx); err != nil {
		r.log.Warn().Err(err).Msg("final flush failed")
	}
	r.Stop()
	return nil
}
