// Package classify sorts discovered PDFs into deliverable groups and the
// reasons the rest cannot be sent.
package classify

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/Veraticus/pdfmail/internal/common"
	"github.com/Veraticus/pdfmail/internal/model"
	"github.com/Veraticus/pdfmail/internal/pattern"
)

// IsPDF reports whether name has a .pdf extension, ignoring case.
func IsPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// Classifier buckets files by the company named in their file name.
type Classifier struct {
	fs        afero.Fs
	matcher   *pattern.Matcher
	companies map[string]model.Company
	logger    *slog.Logger
	limit     int64
}

// New creates a Classifier. Groups larger than limit bytes are oversize.
func New(fs afero.Fs, matcher *pattern.Matcher, companies map[string]model.Company, limit int64, logger *slog.Logger) *Classifier {
	return &Classifier{
		fs:        fs,
		matcher:   matcher,
		companies: companies,
		limit:     limit,
		logger:    common.OrDefault(logger).With("component", "classifier"),
	}
}

// Scan walks root recursively and classifies every PDF found. Entries that
// cannot be read are logged and skipped; only an unreadable root fails.
func (c *Classifier) Scan(root string) (model.ClassificationResult, error) {
	var files []model.FileRef

	err := afero.Walk(c.fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			c.logger.Warn("Skipping unreadable entry", "path", path, "error", err)
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() || !IsPDF(info.Name()) {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("failed to relativize %s: %w", path, err)
		}
		files = append(files, model.FileRef{Path: path, RelPath: rel, Size: info.Size()})
		return nil
	})
	if err != nil {
		return model.NewClassificationResult(), fmt.Errorf("failed to scan %s: %w", root, err)
	}

	result := c.Classify(files)
	c.logger.Info("Scan complete",
		"root", root,
		"files", len(files),
		"deliverable", len(result.Deliverable),
		"oversize", len(result.Oversize),
		"unknown_company", len(result.UnknownCompany),
		"unmatched", len(result.Unmatched))
	return result, nil
}

// Classify places each file in exactly one bucket: unmatched, unknown
// company, oversize, or deliverable.
func (c *Classifier) Classify(files []model.FileRef) model.ClassificationResult {
	result := model.NewClassificationResult()
	groups := make(map[string]model.DocumentGroup)

	for _, f := range files {
		company, ok := c.matcher.Extract(f.Name())
		if !ok {
			c.logger.Debug("File name does not match pattern", "file", f.RelPath)
			result.Unmatched = append(result.Unmatched, f)
			continue
		}
		if _, known := c.companies[company]; !known {
			c.logger.Debug("Company not registered", "company", company, "file", f.RelPath)
			result.UnknownCompany[company] = append(result.UnknownCompany[company], f)
			continue
		}

		g := groups[company]
		g.Company = company
		g.Files = append(g.Files, f)
		groups[company] = g
	}

	for company, g := range groups {
		if g.TotalSize() > c.limit {
			c.logger.Warn("Attachments exceed size limit",
				"company", company,
				"size", g.TotalSize(),
				"limit", c.limit,
				"files", g.FileNames())
			result.Oversize[company] = g
			continue
		}
		result.Deliverable[company] = g
	}

	return result
}
