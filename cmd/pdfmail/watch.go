package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/pdfmail/internal/classify"
	"github.com/Veraticus/pdfmail/internal/cli"
	"github.com/Veraticus/pdfmail/internal/dispatch"
	"github.com/Veraticus/pdfmail/internal/model"
	"github.com/Veraticus/pdfmail/internal/watch"
)

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Send new PDFs as they appear in the source folder",
		Long: `Keep a mail connection open and send every PDF that is added to the source
folder, including its subfolders. Files already present when watching starts
are left alone. Press Ctrl+C to stop.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.OutOrStdout(), true)
			if err != nil {
				return err
			}
			return a.watch(cmd.Context())
		},
	}
}

func (a *app) watch(ctx context.Context) error {
	interrupts := cli.NewInterruptHandler(a.out, "Watching")
	ctx = interrupts.HandleInterrupts(ctx)

	m := a.manager()
	defer m.Disconnect()
	if err := m.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to mail server: %w", err)
	}

	w, err := watch.New(a.source, watch.Options{
		Fs:      a.fs,
		Logger:  a.logger,
		Handler: a.newFileHandler(a.classifier(), a.dispatcher(m, nil)),
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, cli.FormatInfo(fmt.Sprintf("%s Watching %s for new PDFs. Press Ctrl+C to stop.", cli.FolderIcon, a.source)))
	return w.Run(ctx)
}

// newFileHandler classifies a new file on its own and sends it as a one
// file group.
func (a *app) newFileHandler(c *classify.Classifier, d *dispatch.Dispatcher) watch.Handler {
	return func(ctx context.Context, f model.FileRef) {
		result := c.Classify([]model.FileRef{f})

		switch {
		case len(result.Unmatched) > 0:
			fmt.Fprintln(a.out, cli.FormatWarning(f.RelPath+": name does not match the pattern, skipped"))
		case len(result.UnknownCompany) > 0:
			for company := range result.UnknownCompany {
				fmt.Fprintln(a.out, cli.FormatWarning(fmt.Sprintf("%s: company %q is not registered, skipped", f.RelPath, company)))
			}
		case len(result.Oversize) > 0:
			fmt.Fprintln(a.out, cli.FormatWarning(f.RelPath+": larger than the attachment limit, skipped"))
		}

		for _, g := range result.Deliverable {
			o := d.SendGroup(ctx, g)
			switch {
			case !o.Success:
				fmt.Fprintln(a.out, cli.FormatError(fmt.Sprintf("%s → %s failed [%s]: %v", f.RelPath, o.Company, o.Category, o.Err)))
			case o.ArchiveErr != nil:
				fmt.Fprintln(a.out, cli.FormatWarning(fmt.Sprintf("%s → %s sent, but not moved: %v", f.RelPath, o.Company, o.ArchiveErr)))
			default:
				fmt.Fprintln(a.out, cli.FormatSuccess(fmt.Sprintf("%s → %s", f.RelPath, o.Company)))
			}
		}
	}
}
