package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/pdfmail/internal/common"
	"github.com/Veraticus/pdfmail/internal/model"
)

// ErrBatchRunning is returned when a batch is started while another one
// is still in flight.
var ErrBatchRunning = errors.New("a send batch is already running")

// Runner drives at most one send batch at a time on a background goroutine.
type Runner struct {
	dispatcher *Dispatcher
	running    atomic.Bool
}

// NewRunner creates a Runner for d.
func NewRunner(d *Dispatcher) *Runner {
	return &Runner{dispatcher: d}
}

// Batch is a send batch running in the background.
type Batch struct {
	done    chan struct{}
	ID      string
	summary model.Summary
}

// Start sends groups on a new goroutine and returns immediately.
func (r *Runner) Start(ctx context.Context, groups map[string]model.DocumentGroup) (*Batch, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrBatchRunning
	}

	b := &Batch{ID: uuid.NewString(), done: make(chan struct{})}
	go func() {
		defer close(b.done)
		defer r.running.Store(false)
		b.summary = r.dispatcher.SendAll(ctx, b.ID, groups)
	}()
	return b, nil
}

// Running reports whether a batch is in flight.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Done is closed when the batch has finished.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Summary blocks until the batch has finished and returns its result.
func (b *Batch) Summary() model.Summary {
	<-b.done
	return b.summary
}

// Wait blocks until the batch finishes or budget elapses. On timeout it
// returns common.ErrBatchAbandoned; the batch keeps running and its result
// stays available through Done and Summary. A budget of zero or less waits
// without limit.
func (b *Batch) Wait(budget time.Duration) (model.Summary, error) {
	if budget <= 0 {
		return b.Summary(), nil
	}

	timer := time.NewTimer(budget)
	defer timer.Stop()

	select {
	case <-b.done:
		return b.summary, nil
	case <-timer.C:
		return model.Summary{BatchID: b.ID}, common.ErrBatchAbandoned
	}
}
