package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/Veraticus/pdfmail/internal/archive"
	"github.com/Veraticus/pdfmail/internal/classify"
	"github.com/Veraticus/pdfmail/internal/cli"
	"github.com/Veraticus/pdfmail/internal/common"
	"github.com/Veraticus/pdfmail/internal/config"
	"github.com/Veraticus/pdfmail/internal/credential"
	"github.com/Veraticus/pdfmail/internal/dispatch"
	"github.com/Veraticus/pdfmail/internal/mailer"
	"github.com/Veraticus/pdfmail/internal/model"
)

// app bundles what every command needs once the settings are loaded.
type app struct {
	fs        afero.Fs
	settings  *config.Settings
	logger    *slog.Logger
	dialer    mailer.Dialer
	chooser   *cli.Chooser
	out       io.Writer
	source    string
	completed string
}

// settingsPath returns the --settings path, or settings.json in the
// working directory, or settings.json next to the executable.
func settingsPath() string {
	if path := viper.GetString("settings"); path != "" {
		return config.ExpandPath(path)
	}
	if _, err := os.Stat(config.DefaultSettingsFile); err == nil {
		return config.DefaultSettingsFile
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), config.DefaultSettingsFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return config.DefaultSettingsFile
}

// loadApp loads and validates the settings document. Commands that talk
// to the mail server pass requireEmail.
func loadApp(out io.Writer, requireEmail bool) (*app, error) {
	path := settingsPath()
	s, err := config.Load(path, config.LoadOptions{PasswordLookup: credential.Lookup})
	if err != nil {
		if errors.Is(err, common.ErrMissingConfig) {
			return nil, common.NewUserError("No settings file. Create one with: pdfmail init", err)
		}
		return nil, err
	}

	if s.DebugMode {
		if err := setupLogging(true); err != nil {
			return nil, fmt.Errorf("failed to setup logging: %w", err)
		}
	}

	return newApp(afero.NewOsFs(), s, out, requireEmail)
}

// newApp validates s and prepares the folders.
func newApp(fs afero.Fs, s *config.Settings, out io.Writer, requireEmail bool) (*app, error) {
	if err := s.Validate(); err != nil {
		return nil, common.NewUserError("Please fix the settings file "+s.Path, err)
	}
	if requireEmail {
		if err := s.ValidateEmail(); err != nil {
			return nil, common.NewUserError("Please fill in the email section of "+s.Path, err)
		}
	}

	a := &app{
		fs:        fs,
		settings:  s,
		logger:    slog.Default(),
		dialer:    mailer.NewSMTPDialer(),
		chooser:   cli.NewChooser(),
		out:       out,
		source:    s.SourceDir(),
		completed: s.CompletedDir(),
	}
	if v := viper.GetString("folders.source"); v != "" {
		a.source = config.ExpandPath(v)
	}
	if v := viper.GetString("folders.completed"); v != "" {
		a.completed = config.ExpandPath(v)
	}

	if err := s.EnsureFolders(fs, a.source, a.completed); err != nil {
		return nil, common.NewUserError("Set create_folders to true or create the folders yourself", err)
	}
	return a, nil
}

func (a *app) classifier() *classify.Classifier {
	return classify.New(a.fs, a.settings.Matcher(), a.settings.Companies, a.settings.MaxAttachmentBytes, a.logger)
}

func (a *app) scan() (model.ClassificationResult, error) {
	result, err := a.classifier().Scan(a.source)
	if err != nil {
		return result, fmt.Errorf("failed to scan %s: %w", a.source, err)
	}
	return result, nil
}

func (a *app) scanReport(result model.ClassificationResult) string {
	return cli.RenderScan(cli.ScanReport{
		Result:    result,
		Companies: a.settings.Companies,
		Source:    a.source,
		Limit:     a.settings.MaxAttachmentBytes,
	})
}

func (a *app) manager() *mailer.Manager {
	e := a.settings.Email
	return mailer.NewManager(mailer.Config{
		Dialer: a.dialer,
		Logger: a.logger,
		Credentials: mailer.Credentials{
			Host:     e.SMTPServer,
			Port:     int(e.SMTPPort),
			User:     e.SenderEmail,
			Password: e.SenderPassword,
		},
	})
}

func (a *app) dispatcher(sender dispatch.Sender, onOutcome func(model.SendOutcome)) *dispatch.Dispatcher {
	s := a.settings
	return dispatch.New(dispatch.Config{
		Fs:                 a.fs,
		Sender:             sender,
		Archiver:           archive.New(a.fs, a.logger),
		Logger:             a.logger,
		Limiter:            dispatch.NewLimiter(s.SendRatePerMinute),
		OnOutcome:          onOutcome,
		Companies:          s.Companies,
		Templates:          s.Templates,
		CustomVariables:    s.CustomVariables,
		From:               s.Email.SenderEmail,
		CompletedDir:       a.completed,
		MaxAttachmentBytes: s.MaxAttachmentBytes,
	})
}

// countdown converts a timeout setting in seconds. Negative means wait.
func countdown(seconds int) time.Duration {
	if seconds < 0 {
		return -1
	}
	return time.Duration(seconds) * time.Second
}
