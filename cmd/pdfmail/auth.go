package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Veraticus/pdfmail/internal/cli"
	"github.com/Veraticus/pdfmail/internal/config"
	"github.com/Veraticus/pdfmail/internal/credential"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the stored mail password",
		Long: `Store the SMTP password in the system keyring instead of the settings file.
The stored password is used whenever sender_password is empty.`,
	}

	cmd.AddCommand(authSetCmd())
	cmd.AddCommand(authDeleteCmd())

	return cmd
}

func authSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set [account]",
		Short: "Store the password for an account",
		Long: `Store the password for account, which defaults to sender_email from the
settings file. The password is read from a prompt, or from stdin when piped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := accountArg(args)
			if err != nil {
				return err
			}

			secret, err := readSecret(cmd.Context(), account)
			if err != nil {
				return err
			}
			if secret == "" {
				return errors.New("password is empty")
			}

			store, err := credential.Open()
			if err != nil {
				return err
			}
			if err := store.Set(account, secret); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Password stored for "+account))
			return nil
		},
	}
}

func authDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [account]",
		Short: "Remove the stored password for an account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := accountArg(args)
			if err != nil {
				return err
			}

			store, err := credential.Open()
			if err != nil {
				return err
			}
			if err := store.Delete(account); err != nil {
				if errors.Is(err, credential.ErrNotFound) {
					fmt.Fprintln(cmd.OutOrStdout(), cli.FormatInfo("No password stored for "+account))
					return nil
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Password removed for "+account))
			return nil
		},
	}
}

// accountArg returns the account argument or the sender from the settings.
func accountArg(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	s, err := config.Load(settingsPath(), config.LoadOptions{})
	if err != nil {
		return "", fmt.Errorf("no account given and the settings could not be read: %w", err)
	}
	if s.Email.SenderEmail == "" {
		return "", errors.New("no account given and sender_email is empty")
	}
	return s.Email.SenderEmail, nil
}

func readSecret(ctx context.Context, account string) (string, error) {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		line, err := cli.NewNonBlockingReader(os.Stdin).ReadLine(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to read password from stdin: %w", err)
		}
		return normalizeSecret(line), nil
	}

	var secret string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Password for " + account).
				Description("Use an app password if your provider requires one.").
				EchoMode(huh.EchoModePassword).
				Value(&secret),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		return "", err
	}
	return normalizeSecret(secret), nil
}

// normalizeSecret removes the blanks app passwords are displayed with.
func normalizeSecret(s string) string {
	return strings.Join(strings.Fields(s), "")
}
