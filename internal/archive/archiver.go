// Package archive moves delivered documents into the completed folder.
package archive

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/Veraticus/pdfmail/internal/common"
	"github.com/Veraticus/pdfmail/internal/model"
)

const maxSuffix = 999

// Archiver relocates files, preserving their path relative to the source
// root.
type Archiver struct {
	fs     afero.Fs
	logger *slog.Logger
}

// New creates an Archiver over fs.
func New(fs afero.Fs, logger *slog.Logger) *Archiver {
	return &Archiver{fs: fs, logger: common.OrDefault(logger).With("component", "archiver")}
}

// Move moves each file to destRoot/RelPath and returns the final paths of
// the files that were moved. Files are independent: a failure leaves that
// file in place, does not undo earlier moves, and is reported through a
// *common.PartialArchiveError.
func (a *Archiver) Move(files []model.FileRef, destRoot string) ([]string, error) {
	moved := make([]string, 0, len(files))
	var failures []common.ArchiveFailure

	for _, f := range files {
		dst, err := a.moveOne(f.Path, filepath.Join(destRoot, f.RelPath))
		if err != nil {
			a.logger.Warn("Failed to archive file", "file", f.Path, "error", err)
			failures = append(failures, common.ArchiveFailure{Path: f.Path, Err: err})
			continue
		}
		a.logger.Debug("Archived file", "from", f.Path, "to", dst)
		moved = append(moved, dst)
	}

	if len(failures) > 0 {
		return moved, &common.PartialArchiveError{Failures: failures, Moved: len(moved)}
	}
	return moved, nil
}

func (a *Archiver) moveOne(src, dst string) (string, error) {
	if err := a.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filepath.Dir(dst), err)
	}

	dst, err := a.uniquePath(dst)
	if err != nil {
		return "", err
	}

	if err = a.fs.Rename(src, dst); err == nil {
		return dst, nil
	}
	a.logger.Debug("Rename failed, copying instead", "from", src, "to", dst, "error", err)

	if err := a.copyReplace(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// copyReplace copies src next to dst under a temporary name, renames it
// into place and removes src. Either the whole move happens or src is left
// untouched and no partial file remains.
func (a *Archiver) copyReplace(src, dst string) error {
	in, err := a.fs.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	tmp, err := afero.TempFile(a.fs, filepath.Dir(dst), ".pdfmail-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		_ = a.fs.Remove(tmpName)
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = a.fs.Remove(tmpName)
		return fmt.Errorf("failed to flush %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = a.fs.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := a.fs.Rename(tmpName, dst); err != nil {
		_ = a.fs.Remove(tmpName)
		return fmt.Errorf("failed to place %s: %w", dst, err)
	}

	_ = in.Close()
	if err := a.fs.Remove(src); err != nil {
		_ = a.fs.Remove(dst)
		return fmt.Errorf("failed to remove %s after copy: %w", src, err)
	}
	return nil
}

// uniquePath returns path, or "name (n).ext" for the first n that is free.
func (a *Archiver) uniquePath(path string) (string, error) {
	exists, err := afero.Exists(a.fs, path)
	if err != nil {
		return "", fmt.Errorf("failed to check %s: %w", path, err)
	}
	if !exists {
		return path, nil
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for n := 1; n <= maxSuffix; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if _, err := a.fs.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free name for %s", path)
}
