// Package dispatch sends classified document groups and archives what was
// delivered.
package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/muesli/reflow/truncate"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"github.com/Veraticus/pdfmail/internal/common"
	"github.com/Veraticus/pdfmail/internal/mailer"
	"github.com/Veraticus/pdfmail/internal/model"
	"github.com/Veraticus/pdfmail/internal/render"
)

const previewWidth = 120

// Sender runs an operation against a live SMTP session.
type Sender interface {
	WithConnection(ctx context.Context, op func(mailer.Session) error) error
}

// Mover relocates delivered files.
type Mover interface {
	Move(files []model.FileRef, destRoot string) ([]string, error)
}

// Config wires a Dispatcher.
type Config struct {
	Fs       afero.Fs
	Sender   Sender
	Archiver Mover
	Logger   *slog.Logger
	// Limiter, if set, paces consecutive sends.
	Limiter *rate.Limiter
	Now     func() time.Time
	// OnOutcome is called after each group, in send order.
	OnOutcome       func(model.SendOutcome)
	Companies       map[string]model.Company
	Templates       map[string]model.Template
	CustomVariables map[string]string
	From            string
	CompletedDir    string
	// MaxAttachmentBytes is re-checked against the files on disk at send time.
	MaxAttachmentBytes int64
}

// Dispatcher delivers document groups one at a time over a shared session.
type Dispatcher struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Dispatcher{
		cfg:    cfg,
		logger: common.OrDefault(cfg.Logger).With("component", "dispatcher"),
	}
}

// NewLimiter returns a limiter allowing perMinute sends per minute, or nil
// when perMinute is not positive.
func NewLimiter(perMinute float64) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perMinute/60), 1)
}

// SendAll sends every group in company name order. A failed group does not
// stop the batch, except for rejected credentials: logging in again for
// every remaining company could lock the account, so those groups are
// recorded as auth failures without being attempted.
func (d *Dispatcher) SendAll(ctx context.Context, batchID string, groups map[string]model.DocumentGroup) model.Summary {
	summary := model.Summary{BatchID: batchID}
	logger := d.logger.With("batch_id", batchID)
	logger.Info("Starting send batch", "companies", len(groups))

	var authErr error
	for _, company := range model.SortedKeys(groups) {
		var outcome model.SendOutcome
		if authErr != nil {
			g := groups[company]
			outcome = model.SendOutcome{
				Company:  g.Company,
				Files:    g.Files,
				Category: model.FailureAuth,
				Err:      fmt.Errorf("not attempted after login failure: %w", authErr),
			}
		} else {
			outcome = d.send(ctx, logger, groups[company])
			if outcome.Category == model.FailureAuth {
				authErr = outcome.Err
				logger.Warn("Login rejected, skipping remaining companies", "company", company)
			}
		}
		summary.Add(outcome)
		if d.cfg.OnOutcome != nil {
			d.cfg.OnOutcome(outcome)
		}
	}

	logger.Info("Send batch finished",
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"oversize", summary.Oversize,
		"archive_warnings", summary.ArchiveWarnings)
	return summary
}

// SendGroup sends a single group outside of a batch.
func (d *Dispatcher) SendGroup(ctx context.Context, g model.DocumentGroup) model.SendOutcome {
	outcome := d.send(ctx, d.logger, g)
	if d.cfg.OnOutcome != nil {
		d.cfg.OnOutcome(outcome)
	}
	return outcome
}

func (d *Dispatcher) send(ctx context.Context, logger *slog.Logger, g model.DocumentGroup) model.SendOutcome {
	start := d.cfg.Now()
	outcome := model.SendOutcome{Company: g.Company, Files: g.Files}
	fail := func(category model.FailureCategory, err error) model.SendOutcome {
		outcome.Err = err
		outcome.Category = category
		outcome.Elapsed = d.cfg.Now().Sub(start)
		common.LogError(logger, err, "Failed to send documents", common.Fields{
			"company":  g.Company,
			"files":    g.FileNames(),
			"attempts": outcome.Attempts,
		})
		return outcome
	}

	company, ok := d.cfg.Companies[g.Company]
	if !ok {
		return fail(model.FailureConfig, common.NewConfigError("companies", fmt.Errorf("company %q is not registered", g.Company)))
	}
	tmpl, ok := d.cfg.Templates[company.Template]
	if !ok {
		return fail(model.FailureConfig, common.NewConfigError("companies."+g.Company+".template", fmt.Errorf("template %q does not exist", company.Template)))
	}
	if len(g.Files) == 0 {
		return fail(model.FailureFile, errors.New("group has no files"))
	}

	files, err := d.restat(g.Files)
	if err != nil {
		return fail(model.FailureFile, err)
	}
	g.Files = files
	outcome.Files = files

	if total := g.TotalSize(); total > d.cfg.MaxAttachmentBytes {
		return fail(model.FailureSize, &common.SizeExceededError{Company: g.Company, Size: total, Limit: d.cfg.MaxAttachmentBytes})
	}

	rendered := render.Render(tmpl, render.Context{
		Company:  g.Company,
		FileName: files[0].Name(),
		Files:    g.FileNames(),
		Now:      start,
	}, d.cfg.CustomVariables)
	logger.Debug("Rendered message",
		"company", g.Company,
		"subject", rendered.Subject,
		"body", truncate.StringWithTail(rendered.Body, previewWidth, "..."))

	data, err := d.build(company, rendered, files, start)
	if err != nil {
		return fail(model.FailureFile, err)
	}

	if d.cfg.Limiter != nil {
		if err := d.cfg.Limiter.Wait(ctx); err != nil {
			return fail(model.FailureDelivery, fmt.Errorf("waiting for send slot: %w", err))
		}
	}

	err = d.cfg.Sender.WithConnection(ctx, func(s mailer.Session) error {
		outcome.Attempts++
		return s.Send(d.cfg.From, company.Emails, bytes.NewReader(data))
	})
	if err != nil {
		return fail(common.Categorize(err), err)
	}

	outcome.Success = true
	logger.Info("Sent documents",
		"company", g.Company,
		"recipients", company.Emails,
		"files", g.FileNames(),
		"size", g.TotalSize(),
		"attempts", outcome.Attempts)

	if d.cfg.Archiver != nil {
		if _, err := d.cfg.Archiver.Move(files, d.cfg.CompletedDir); err != nil {
			outcome.ArchiveErr = err
			logger.Warn("Mail delivered but some files were not archived",
				"company", g.Company,
				"error", err)
		}
	}

	outcome.Elapsed = d.cfg.Now().Sub(start)
	return outcome
}

// restat refreshes file sizes; files may have changed since the scan.
func (d *Dispatcher) restat(files []model.FileRef) ([]model.FileRef, error) {
	out := make([]model.FileRef, len(files))
	for i, f := range files {
		info, err := d.cfg.Fs.Stat(f.Path)
		if err != nil {
			return nil, fmt.Errorf("file %s is no longer readable: %w", f.RelPath, err)
		}
		f.Size = info.Size()
		out[i] = f
	}
	return out, nil
}

func (d *Dispatcher) build(company model.Company, rendered render.Result, files []model.FileRef, now time.Time) ([]byte, error) {
	attachments := make([]mailer.Attachment, 0, len(files))
	for _, f := range files {
		file, err := d.cfg.Fs.Open(f.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", f.RelPath, err)
		}
		defer file.Close()
		attachments = append(attachments, mailer.Attachment{Name: f.Name(), Content: file})
	}

	var buf bytes.Buffer
	if _, err := mailer.BuildMessage(&buf, mailer.Message{
		From:        d.cfg.From,
		To:          company.Emails,
		Subject:     rendered.Subject,
		Body:        rendered.Body,
		Date:        now,
		Attachments: attachments,
	}); err != nil {
		return nil, fmt.Errorf("failed to build message: %w", err)
	}
	return buf.Bytes(), nil
}
