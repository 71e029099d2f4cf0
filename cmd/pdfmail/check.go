package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/pdfmail/internal/cli"
	"github.com/Veraticus/pdfmail/internal/common"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Test the connection to the mail server",
		Long: `Connect and log in to the configured SMTP server, report the result and
disconnect. Nothing is sent.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.OutOrStdout(), true)
			if err != nil {
				return err
			}
			return a.check(cmd.Context())
		},
	}
}

func (a *app) check(ctx context.Context) error {
	e := a.settings.Email
	fmt.Fprintln(a.out, cli.FormatInfo(fmt.Sprintf("Connecting to %s:%d as %s...", e.SMTPServer, e.SMTPPort, e.SenderEmail)))

	m := a.manager()
	defer m.Disconnect()

	if err := m.Connect(ctx); err != nil {
		fmt.Fprintln(a.out, cli.FormatError(fmt.Sprintf("Connection failed [%s]: %v", common.Categorize(err), err)))
		if common.IsAuthError(err) {
			fmt.Fprintln(a.out, cli.RenderBox("Login was rejected", authGuidance))
		}
		return err
	}

	fmt.Fprintln(a.out, cli.FormatSuccess("Connected and logged in."))
	return nil
}

const authGuidance = `  • Check sender_email and sender_password in the settings file.
  • Gmail and most providers need an app password, not the account password.
  • App passwords require 2-step verification on the account.
  • Store the password outside the file with: pdfmail auth set`
