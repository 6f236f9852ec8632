package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ohyesboy/BananaPicGen/internal/keys"
)

var flagKeysUser string

func newKeysCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage the stored API credential",
	}

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Store the Gemini API key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return keysSet(app)
		},
	}
	setCmd.Flags().StringVar(&flagKeysUser, "user", "", "user id for the allow-list check")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the stored credential (masked)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return keysShow(app)
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove the stored credential",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := keys.NewStore()
			if err != nil {
				return err
			}
			if err := store.Delete(); err != nil {
				return err
			}
			fmt.Fprintln(app.Out, "Credential removed")
			return nil
		},
	}

	cmd.AddCommand(setCmd, showCmd, deleteCmd)
	return cmd
}

func keysSet(app *App) error {
	store, err := keys.NewStore()
	if err != nil {
		return err
	}

	key, err := readSecret(app, "Enter Gemini API key: ")
	if err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	creds, err := store.Load()
	if err != nil {
		return err
	}
	creds.APIKey = key
	if flagKeysUser != "" {
		creds.UserID = flagKeysUser
	}

	if err := store.Save(creds); err != nil {
		return err
	}
	fmt.Fprintf(app.Out, "Saved credential to %s\n", store.Path())
	return nil
}

func keysShow(app *App) error {
	store, err := keys.NewStore()
	if err != nil {
		return err
	}

	creds, err := store.Load()
	if err != nil {
		return err
	}
	if creds.APIKey == "" {
		fmt.Fprintln(app.Out, "No credential stored")
		return nil
	}

	fmt.Fprintf(app.Out, "API key: %s\n", keys.MaskKey(creds.APIKey))
	if creds.UserID != "" {
		fmt.Fprintf(app.Out, "User id: %s\n", creds.UserID)
	}
	return nil
}

func readSecret(app *App, prompt string) (string, error) {
	fmt.Fprint(app.Out, prompt)

	if f, ok := app.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		data, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(app.Out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	}

	scanner := bufio.NewScanner(app.In)
	if !scanner.Scan() {
		return "", scanner.Err()
	}
	return strings.TrimSpace(scanner.Text()), nil
}
