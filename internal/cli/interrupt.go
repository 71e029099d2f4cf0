package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// InterruptHandler turns Ctrl+C into context cancellation and tells the
// user what happens to unsent files.
type InterruptHandler struct {
	writer      io.Writer
	notify      func(c chan<- os.Signal, sig ...os.Signal)
	stop        func(c chan<- os.Signal)
	action      string
	interrupted bool
	mu          sync.Mutex
}

// NewInterruptHandler creates a new interrupt handler. action names what
// is being interrupted, e.g. "Sending" or "Watching".
func NewInterruptHandler(writer io.Writer, action string) *InterruptHandler {
	if writer == nil {
		writer = os.Stdout
	}
	return &InterruptHandler{
		writer: writer,
		action: action,
		notify: signal.Notify,
		stop:   signal.Stop,
	}
}

// HandleInterrupts returns a context that is canceled on SIGINT or SIGTERM.
// Signal handling ends when the parent context is done.
func (h *InterruptHandler) HandleInterrupts(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)

	sigChan := make(chan os.Signal, 1)
	h.notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer h.stop(sigChan)
		select {
		case <-sigChan:
			h.mu.Lock()
			if !h.interrupted {
				h.interrupted = true
				h.showInterruptMessage()
			}
			h.mu.Unlock()
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx
}

func (h *InterruptHandler) showInterruptMessage() {
	msg := "\n\n" + FormatWarning(h.action+" interrupted!") +
		"\n" + FormatInfo("Files that were not sent remain in the source folder.") + "\n"

	if _, err := fmt.Fprint(h.writer, msg); err != nil {
		// Best effort - we're shutting down anyway
		fmt.Fprintf(os.Stderr, "Failed to write interrupt message: %v\n", err)
	}
}

// WasInterrupted returns true if the process was interrupted.
func (h *InterruptHandler) WasInterrupted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.interrupted
}
