package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/pdfmail/internal/model"
)

type recorder struct {
	files []model.FileRef
	mu    sync.Mutex
}

func (r *recorder) handle(_ context.Context, f model.FileRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, f)
}

func (r *recorder) relPaths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.files))
	for _, f := range r.files {
		out = append(out, f.RelPath)
	}
	return out
}

func startWatcher(t *testing.T, root string, rec *recorder) {
	t.Helper()
	w, err := New(root, Options{Handler: rec.handle, Debounce: 40 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	select {
	case <-w.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher not ready")
	}
}

func TestWatcher_ReportsOnlyNewPDFs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "Acme___old.pdf"), []byte("old"), 0o644))

	rec := &recorder{}
	startWatcher(t, root, rec)

	require.NoError(t, os.WriteFile(filepath.Join(root, "Acme___new.pdf"), []byte("new"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("txt"), 0o644))

	assert.Eventually(t, func() bool {
		return len(rec.relPaths()) == 1
	}, 3*time.Second, 10*time.Millisecond)

	// Touching the file again does not re-trigger it.
	require.NoError(t, os.WriteFile(filepath.Join(root, "Acme___new.pdf"), []byte("newer"), 0o644))
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, []string{"Acme___new.pdf"}, rec.relPaths())
}

func TestWatcher_WatchesNewFolders(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	startWatcher(t, root, rec)

	sub := filepath.Join(root, "2024", "03")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	// Give the watcher a moment to register the new folders.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "Acme___Q1.pdf"), []byte("pdf"), 0o644))

	assert.Eventually(t, func() bool {
		paths := rec.relPaths()
		return len(paths) == 1 && paths[0] == filepath.Join("2024", "03", "Acme___Q1.pdf")
	}, 3*time.Second, 10*time.Millisecond)
}

func TestNew_RequiresHandler(t *testing.T) {
	_, err := New(t.TempDir(), Options{})
	assert.Error(t, err)
}
