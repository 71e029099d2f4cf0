package cli

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/pdfmail/internal/model"
)

// SendProgress shows one step per company group of a batch.
type SendProgress struct {
	writer io.Writer
	bar    *progressbar.ProgressBar
	done   int
	mu     sync.Mutex
}

// NewSendProgress creates a progress bar for total groups.
func NewSendProgress(writer io.Writer, total int) *SendProgress {
	p := &SendProgress{writer: writer}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Sending...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
	return p
}

// Observe advances the bar for a finished group. It has the signature of
// the dispatcher's outcome callback.
func (p *SendProgress) Observe(o model.SendOutcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	desc := fmt.Sprintf("[cyan][bold]%s[reset]", o.Company)
	if !o.Success {
		desc = fmt.Sprintf("[red][bold]%s failed[reset]", o.Company)
	}
	p.bar.Describe(desc)
	if err := p.bar.Add(1); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Done returns how many groups have been observed.
func (p *SendProgress) Done() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}
