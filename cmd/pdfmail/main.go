// Package main contains the pdfmail CLI commands.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/pdfmail/internal/common"
	"github.com/Veraticus/pdfmail/internal/config"
)

var (
	cfgFile string
	version = "dev"
	logFile *os.File
	rootCmd = &cobra.Command{
		Use:   "pdfmail",
		Short: "📧 Send PDF documents to the companies they belong to",
		Long: `pdfmail scans a folder of PDF files, works out which company each file
belongs to from its name, and emails every company its documents in one
message using a per-company template. Sent files are moved to a completed folder.

Run without a command to pick a mode from the menu.`,
		PersistentPreRunE: initConfig,
		RunE:              runMenu,
		SilenceUsage:      true,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/pdfmail/config.yaml)")
	rootCmd.PersistentFlags().String("settings", "", "settings document (default: settings.json in the working directory or next to the program)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().String("log-file", "", "also write logs to this file")

	// Bind flags to viper
	_ = viper.BindPFlag("settings", rootCmd.PersistentFlags().Lookup("settings"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("logging.file", rootCmd.PersistentFlags().Lookup("log-file"))

	// Add commands
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(sendCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(authCmd())
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received interrupt signal, shutting down gracefully...")
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	cancel() // Always cleanup

	if logFile != nil {
		_ = logFile.Close()
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	// Set up config file
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		// Search for config in standard locations
		viper.AddConfigPath(fmt.Sprintf("%s/.config/pdfmail", home))
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Environment variables
	viper.SetEnvPrefix("PDFMAIL")
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	// Set up logging
	if err := setupLogging(false); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	return nil
}

// setupLogging installs the default logger. debug overrides the configured
// level, which is how debug_mode in the settings document takes effect.
func setupLogging(debug bool) error {
	level, err := common.ParseLevel(viper.GetString("logging.level"))
	if err != nil {
		return err
	}
	if debug {
		level = slog.LevelDebug
	}

	if path := viper.GetString("logging.file"); path != "" && logFile == nil {
		f, err := os.OpenFile(config.ExpandPath(path), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = f
	}

	var extra []io.Writer
	if logFile != nil {
		extra = append(extra, logFile)
	}
	_, err = common.SetupLogger(level, viper.GetString("logging.format"), extra...)
	return err
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pdfmail %s\n", version)
		},
	}
}
