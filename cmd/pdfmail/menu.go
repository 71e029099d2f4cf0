package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/pdfmail/internal/cli"
	"github.com/Veraticus/pdfmail/internal/common"
)

const (
	modeSend = iota
	modeWatch
	modeQuit
)

var modeChoices = []cli.Choice{
	modeSend:  {Key: "1", Label: "Send all files now"},
	modeWatch: {Key: "2", Label: "Watch the folder for new files"},
	modeQuit:  {Key: "3", Label: "Quit"},
}

// runMenu is the root command: pick a mode, with a countdown to sending.
func runMenu(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(cmd.OutOrStdout(), true)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	fmt.Fprintln(a.out, cli.FormatTitle("pdfmail "+version))
	choice, err := a.chooser.Choose(ctx, cli.Prompt{
		Title:   "Select a mode",
		Choices: modeChoices,
		Default: modeSend,
		Timeout: countdown(a.settings.AutoSelectTimeout),
	})
	if errors.Is(err, cli.ErrCancelled) {
		return nil
	}
	if errors.Is(err, cli.ErrNoInput) {
		return common.NewUserError("No terminal to choose a mode. Run pdfmail send or pdfmail watch instead", err)
	}
	if err != nil {
		return err
	}

	switch choice {
	case modeSend:
		return a.sendAll(ctx, viper.GetBool("send.yes"))
	case modeWatch:
		return a.watch(ctx)
	default:
		return nil
	}
}
