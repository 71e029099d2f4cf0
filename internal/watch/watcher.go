// Package watch reports PDFs that appear in the source folder while the
// program is running.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"github.com/Veraticus/pdfmail/internal/classify"
	"github.com/Veraticus/pdfmail/internal/common"
	"github.com/Veraticus/pdfmail/internal/model"
)

// DefaultDebounce is how long a new file's size must stay unchanged before
// it is handed off.
const DefaultDebounce = 2 * time.Second

// Handler processes one new file. It runs on the watcher goroutine, so
// files are handled one at a time.
type Handler func(ctx context.Context, f model.FileRef)

// Options configures a Watcher.
type Options struct {
	// Fs is used for stat calls and must be backed by the OS filesystem.
	Fs       afero.Fs
	Logger   *slog.Logger
	Handler  Handler
	Debounce time.Duration
}

type pendingFile struct {
	changed time.Time
	size    int64
}

// Watcher monitors a folder tree. Files present when Run starts are
// ignored, and every new PDF is handed to the handler at most once.
type Watcher struct {
	fs       afero.Fs
	logger   *slog.Logger
	handler  Handler
	seen     map[string]bool
	pending  map[string]*pendingFile
	ready    chan struct{}
	root     string
	debounce time.Duration
}

// New creates a Watcher for root.
func New(root string, opts Options) (*Watcher, error) {
	if opts.Handler == nil {
		return nil, errors.New("watch handler is required")
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	return &Watcher{
		fs:       opts.Fs,
		logger:   common.OrDefault(opts.Logger).With("component", "watcher", "root", abs),
		handler:  opts.Handler,
		debounce: opts.Debounce,
		root:     abs,
		seen:     make(map[string]bool),
		pending:  make(map[string]*pendingFile),
		ready:    make(chan struct{}),
	}, nil
}

// Ready is closed once the initial tree is being watched.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run watches until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.root, false); err != nil {
		return err
	}
	close(w.ready)
	w.logger.Info("Watching for new PDFs", "existing", len(w.seen))

	ticker := time.NewTicker(w.debounce / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(fw, event)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("File watcher error", "error", err)

		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

func (w *Watcher) handleEvent(fw *fsnotify.Watcher, event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		delete(w.pending, event.Name)
		return
	case !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write):
		return
	}

	info, err := w.fs.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := w.addTree(fw, event.Name, true); err != nil {
				w.logger.Warn("Failed to watch new folder", "path", event.Name, "error", err)
			}
		}
		return
	}
	w.track(event.Name, info.Size())
}

// addTree watches dir and its subfolders. PDFs found inside are either
// recorded as pre-existing or, for folders that appeared later, tracked as
// new.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string, fresh bool) error {
	return afero.Walk(w.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			return nil
		}
		if info.IsDir() {
			if err := fw.Add(path); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			return nil
		}
		if !classify.IsPDF(info.Name()) {
			return nil
		}
		if fresh {
			w.track(path, info.Size())
		} else {
			w.seen[path] = true
		}
		return nil
	})
}

func (w *Watcher) track(path string, size int64) {
	if w.seen[path] || !classify.IsPDF(path) {
		return
	}
	if p, ok := w.pending[path]; ok {
		p.size = size
		p.changed = time.Now()
		return
	}
	w.pending[path] = &pendingFile{size: size, changed: time.Now()}
}

// flush hands off files whose size has been stable for the debounce period.
func (w *Watcher) flush(ctx context.Context, now time.Time) {
	for path, p := range w.pending {
		info, err := w.fs.Stat(path)
		if err != nil {
			delete(w.pending, path)
			continue
		}
		if info.Size() != p.size {
			p.size = info.Size()
			p.changed = now
			continue
		}
		if p.size == 0 || now.Sub(p.changed) < w.debounce {
			continue
		}

		delete(w.pending, path)
		w.seen[path] = true

		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		w.logger.Info("New PDF detected", "file", rel, "size", p.size)
		w.handler(ctx, model.FileRef{Path: path, RelPath: rel, Size: p.size})
	}
}
