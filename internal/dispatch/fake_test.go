package dispatch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/pdfmail/internal/mailer"
	"github.com/Veraticus/pdfmail/internal/model"
)

type delivery struct {
	from string
	to   []string
	data []byte
}

// fakeSession records deliveries. sendErrs are consumed one per Send.
type fakeSession struct {
	sendErrs   []error
	deliveries []delivery
	mu         sync.Mutex
}

func (s *fakeSession) Noop() error  { return nil }
func (s *fakeSession) Reset() error { return nil }
func (s *fakeSession) Quit() error  { return nil }
func (s *fakeSession) Close() error { return nil }

func (s *fakeSession) Send(from string, to []string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sendErrs) > 0 {
		err := s.sendErrs[0]
		s.sendErrs = s.sendErrs[1:]
		if err != nil {
			return err
		}
	}
	s.deliveries = append(s.deliveries, delivery{from: from, to: to, data: data})
	return nil
}

func (s *fakeSession) sent() []delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]delivery(nil), s.deliveries...)
}

// fakeDialer always returns the same session, or err when it is set.
type fakeDialer struct {
	err     error
	session *fakeSession
	calls   int
	mu      sync.Mutex
}

func (d *fakeDialer) Dial(context.Context, mailer.Credentials) (mailer.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return d.session, nil
}

func (d *fakeDialer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func newManager(d mailer.Dialer) *mailer.Manager {
	return mailer.NewManager(mailer.Config{
		Dialer:        d,
		Credentials:   mailer.Credentials{Host: "smtp.example.com", Port: 587, User: "ops@example.com", Password: "secret"},
		Sleep:         func(context.Context, time.Duration) error { return nil },
		ProbeInterval: -1,
	})
}

// blockingSender holds every send until release is closed.
type blockingSender struct {
	release chan struct{}
	session *fakeSession
}

func (b *blockingSender) WithConnection(ctx context.Context, op func(mailer.Session) error) error {
	select {
	case <-b.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return op(b.session)
}

type fakeMover struct {
	err   error
	moved []model.FileRef
}

func (m *fakeMover) Move(files []model.FileRef, _ string) ([]string, error) {
	m.moved = append(m.moved, files...)
	return nil, m.err
}

var errRejected = errors.New("554 5.7.1 message rejected")

type parsedMail struct {
	subject     string
	body        string
	attachments []string
}

func parseMail(t *testing.T, data []byte) parsedMail {
	t.Helper()
	mr, err := mail.CreateReader(bytes.NewReader(data))
	require.NoError(t, err)

	var out parsedMail
	out.subject, err = mr.Header.Subject()
	require.NoError(t, err)

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			b, err := io.ReadAll(p.Body)
			require.NoError(t, err)
			out.body = strings.ReplaceAll(string(b), "\r\n", "\n")
		case *mail.AttachmentHeader:
			name, err := h.Filename()
			require.NoError(t, err)
			out.attachments = append(out.attachments, name)
		}
	}
	return out
}
