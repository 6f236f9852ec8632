package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ohyesboy/BananaPicGen/internal/prompts"
	"github.com/ohyesboy/BananaPicGen/internal/remote"
)

func newPromptsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prompts",
		Short: "Inspect or seed the shared prompt list",
	}

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the prompt list from a .txt or .json file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return promptsImport(cmd.Context(), app, args[0])
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored prompt list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return promptsShow(cmd.Context(), app)
		},
	}

	cmd.AddCommand(importCmd, showCmd)
	return cmd
}

func promptsImport(ctx context.Context, app *App, path string) error {
	e, err := openEnv(app)
	if err != nil {
		return err
	}
	defer e.Close()

	items, err := prompts.ParseFile(path)
	if err != nil {
		return err
	}

	state := prompts.State{Items: items}
	var revision int64 = 1
	if existing, err := e.remote.ReadPromptDocument(ctx, e.userID); err == nil {
		revision = existing.Revision + 1
		state.BeforeText = existing.State.BeforeText
		state.AfterText = existing.State.AfterText
	}

	doc := &remote.Document{State: state, Revision: revision, UpdatedAt: time.Now()}
	if err := e.remote.WritePromptDocument(ctx, e.userID, doc); err != nil {
		return err
	}

	fmt.Fprintf(app.Out, "Imported %d prompt(s)\n", len(items))
	return nil
}

func promptsShow(ctx context.Context, app *App) error {
	e, err := openEnv(app)
	if err != nil {
		return err
	}
	defer e.Close()

	doc, err := e.remote.ReadPromptDocument(ctx, e.userID)
	if err == remote.ErrNotFound {
		fmt.Fprintln(app.Out, "No prompt list stored")
		return nil
	}
	if err != nil {
		return err
	}

	if doc.State.BeforeText != "" {
		fmt.Fprintf(app.Out, "Before text: %q\n", doc.State.BeforeText)
	}
	if doc.State.AfterText != "" {
		fmt.Fprintf(app.Out, "After text: %q\n", doc.State.AfterText)
	}
	for i, item := range doc.State.Items {
		marker := " "
		if item.Enabled {
			marker = "x"
		}
		name := item.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(app.Out, "%2d. [%s] %s: %s\n", i+1, marker, name, item.Text)
	}
	return nil
}
