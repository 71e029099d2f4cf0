package mailer

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

type sentMail struct {
	from string
	to   []string
	data []byte
}

type fakeSession struct {
	noopErr  error
	resetErr error
	sendErrs []error
	sent     []sentMail
	noops    int
	resets   int
	mu       sync.Mutex
	closed   bool
	quit     bool
}

func (s *fakeSession) Noop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noops++
	if s.closed {
		return errors.New("session closed")
	}
	return s.noopErr
}

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
	s.sent = append(s.sent, sentMail{from: from, to: to, data: data})
	return nil
}

func (s *fakeSession) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	return s.resetErr
}

func (s *fakeSession) Quit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quit = true
	s.closed = true
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) setNoopErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noopErr = err
}

func (s *fakeSession) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// fakeDialer hands out sessions in order. errs[i], when non-nil, fails the
// i-th dial.
type fakeDialer struct {
	errs     []error
	sessions []*fakeSession
	calls    int
	mu       sync.Mutex
}

func (d *fakeDialer) Dial(_ context.Context, _ Credentials) (Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	i := d.calls
	d.calls++
	if i < len(d.errs) && d.errs[i] != nil {
		return nil, d.errs[i]
	}
	s := &fakeSession{}
	d.sessions = append(d.sessions, s)
	return s, nil
}

func (d *fakeDialer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *fakeDialer) session(i int) *fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.sessions) {
		return nil
	}
	return d.sessions[i]
}

// recordSleep records requested delays without waiting.
type recordSleep struct {
	delays []time.Duration
	mu     sync.Mutex
}

func (r *recordSleep) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func newTestManager(d Dialer, sleep *recordSleep) *Manager {
	return NewManager(Config{
		Dialer:        d,
		Credentials:   Credentials{Host: "smtp.example.com", Port: 587, User: "ops@example.com", Password: "secret"},
		Sleep:         sleep.sleep,
		ProbeInterval: -1,
	})
}
