package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/pdfmail/internal/cli"
	"github.com/Veraticus/pdfmail/internal/common"
	"github.com/Veraticus/pdfmail/internal/dispatch"
	"github.com/Veraticus/pdfmail/internal/model"
)

func sendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Email every company its documents",
		Long: `Scan the source folder, show what will be sent and email each company its
files in a single message. Sent files are moved to the completed folder.

The confirmation counts down auto_send_timeout seconds and then sends.
Press Enter to send right away or Esc to cancel.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.OutOrStdout(), true)
			if err != nil {
				return err
			}
			return a.sendAll(cmd.Context(), viper.GetBool("send.yes"))
		},
	}

	cmd.Flags().BoolP("yes", "y", false, "Send without asking for confirmation")
	_ = viper.BindPFlag("send.yes", cmd.Flags().Lookup("yes"))

	return cmd
}

var sendChoices = []cli.Choice{
	{Key: "1", Label: "Send"},
	{Key: "2", Label: "Cancel"},
}

// sendAll scans, confirms and sends one batch.
func (a *app) sendAll(ctx context.Context, yes bool) error {
	result, err := a.scan()
	if err != nil {
		return err
	}
	fmt.Fprint(a.out, a.scanReport(result))

	if len(result.Deliverable) == 0 {
		return nil
	}

	if !yes {
		choice, err := a.chooser.Choose(ctx, cli.Prompt{
			Title:   fmt.Sprintf("Send %d files to %d companies?", result.DeliverableFileCount(), len(result.Deliverable)),
			Choices: sendChoices,
			Default: 0,
			Timeout: countdown(a.settings.AutoSendTimeout),
		})
		switch {
		case errors.Is(err, cli.ErrNoInput):
			return common.NewUserError("Not sending without confirmation. Use --yes to send from scripts", err)
		case errors.Is(err, cli.ErrCancelled), err == nil && choice != 0:
			fmt.Fprintln(a.out, cli.FormatInfo("Sending canceled."))
			return nil
		case err != nil:
			return err
		}
	}

	summary, err := a.runBatch(ctx, result.Deliverable)
	if err != nil {
		return err
	}
	a.skipOversize(&summary, result.Oversize)
	fmt.Fprintln(a.out, cli.RenderSummary(summary))

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d companies were not sent", summary.Failed, len(result.Deliverable))
	}
	return nil
}

// skipOversize adds the groups held back at scan time to the summary.
func (a *app) skipOversize(summary *model.Summary, oversize map[string]model.DocumentGroup) {
	for _, name := range model.SortedKeys(oversize) {
		g := oversize[name]
		summary.Skip(model.SendOutcome{
			Company:  g.Company,
			Files:    g.Files,
			Category: model.FailureSize,
			Err:      &common.SizeExceededError{Company: g.Company, Size: g.TotalSize(), Limit: a.settings.MaxAttachmentBytes},
		})
	}
}

// runBatch sends groups in the background and waits for the result. When
// the batch outlives its time budget the user is told, and the batch is
// still allowed to finish because an in-flight SMTP transaction cannot be
// aborted safely.
func (a *app) runBatch(ctx context.Context, groups map[string]model.DocumentGroup) (model.Summary, error) {
	interrupts := cli.NewInterruptHandler(a.out, "Sending")
	ctx = interrupts.HandleInterrupts(ctx)

	manager := a.manager()
	defer manager.Disconnect()

	progress := cli.NewSendProgress(a.out, len(groups))
	runner := dispatch.NewRunner(a.dispatcher(manager, progress.Observe))

	batch, err := runner.Start(ctx, groups)
	if err != nil {
		return model.Summary{}, err
	}

	summary, err := batch.Wait(a.settings.SendBudget())
	if errors.Is(err, common.ErrBatchAbandoned) {
		a.logger.Warn("Send batch exceeded its time budget", "batch_id", batch.ID, "budget", a.settings.SendBudget())
		fmt.Fprintln(a.out, cli.FormatWarning(fmt.Sprintf(
			"Sending is taking longer than %s. Waiting for the current message to finish.", a.settings.SendBudget())))
		<-batch.Done()
		summary = batch.Summary()
	}
	return summary, nil
}
