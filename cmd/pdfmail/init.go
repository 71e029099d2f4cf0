package main

import (
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Veraticus/pdfmail/internal/cli"
	"github.com/Veraticus/pdfmail/internal/config"
)

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter settings file",
		Long: `Write a settings file with the default templates, an example company and the
default folders. Existing files are not overwritten unless --force is given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			force, _ := cmd.Flags().GetBool("force")
			return writeStarterSettings(afero.NewOsFs(), settingsPath(), force, cmd.OutOrStdout())
		},
	}

	cmd.Flags().Bool("force", false, "Overwrite an existing settings file")

	return cmd
}

func writeStarterSettings(fs afero.Fs, path string, force bool, out io.Writer) error {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return err
	}
	if exists && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite it", path)
	}

	s := config.StarterSettings()
	if err := s.Save(fs, path); err != nil {
		return err
	}
	fmt.Fprintln(out, cli.FormatSuccess("Wrote "+path))
	fmt.Fprintln(out, cli.FormatInfo("Fill in the email section, then store the password with: pdfmail auth set"))
	return nil
}
