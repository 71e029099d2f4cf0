package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Show which files would be sent to which company",
		Long: `Scan the source folder and group PDF files by company without sending anything.

Files whose name does not match the pattern, files for companies that are not
registered and companies whose files exceed the attachment limit are listed
separately.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.OutOrStdout(), false)
			if err != nil {
				return err
			}
			result, err := a.scan()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(a.out, a.scanReport(result))
			return err
		},
	}
}
