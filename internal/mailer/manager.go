package mailer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/pdfmail/internal/common"
	"github.com/Veraticus/pdfmail/internal/model"
)

// State is the lifecycle state of the managed session.
type State int

// Connection states.
const (
	Disconnected State = iota
	Connecting
	Connected
	// Degraded means the last operation failed but the session survived a
	// reset and will be verified before reuse.
	Degraded
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Degraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Config configures a Manager. Zero values select the defaults.
type Config struct {
	Dialer Dialer
	Logger *slog.Logger
	// Sleep waits between retries.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
	// Credentials are used for every (re)connect.
	Credentials Credentials
	// ConnectAttempts defaults to 3, ConnectDelay to 3s.
	ConnectAttempts int
	ConnectDelay    time.Duration
	// SendAttempts defaults to 2, SendDelay to 2s.
	SendAttempts int
	SendDelay    time.Duration
	// ProbeInterval defaults to 60s. A negative value disables the
	// background liveness check.
	ProbeInterval time.Duration
}

func (c *Config) setDefaults() {
	if c.Dialer == nil {
		c.Dialer = NewSMTPDialer()
	}
	if c.Sleep == nil {
		c.Sleep = common.SleepContext
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.ConnectAttempts <= 0 {
		c.ConnectAttempts = 3
	}
	if c.ConnectDelay == 0 {
		c.ConnectDelay = 3 * time.Second
	}
	if c.SendAttempts <= 0 {
		c.SendAttempts = 2
	}
	if c.SendDelay == 0 {
		c.SendDelay = 2 * time.Second
	}
	if c.ProbeInterval == 0 {
		c.ProbeInterval = 60 * time.Second
	}
}

// Manager owns a single lazily established SMTP session. All use of the
// session is serialized by mu; the liveness monitor is paused while an
// operation runs.
type Manager struct {
	lastActivity time.Time
	session      Session
	logger       *slog.Logger
	monitor      *monitor
	cfg          Config
	state        State
	mu           sync.Mutex
}

// NewManager creates a disconnected Manager.
func NewManager(cfg Config) *Manager {
	cfg.setDefaults()
	m := &Manager{
		cfg:    cfg,
		logger: common.OrDefault(cfg.Logger).With("component", "mailer", "addr", cfg.Credentials.Addr()),
	}
	m.monitor = newMonitor(cfg.ProbeInterval, m.probe)
	return m
}

// Connect establishes the session, replacing any existing one. Transient
// failures are retried with a fixed delay; rejected credentials are not.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.connectLocked(ctx); err != nil {
		return err
	}
	m.monitor.schedule()
	return nil
}

// VerifyAlive probes the session. A failed probe drops the session.
func (m *Manager) VerifyAlive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verifyLocked()
}

// WithConnection runs op against a verified session, reconnecting first if
// the probe fails. A failed op is retried once after SendDelay unless it is
// an auth failure. The background probe does not run while op executes.
func (m *Manager) WithConnection(ctx context.Context, op func(Session) error) error {
	m.monitor.pause()

	m.mu.Lock()
	err := common.WithRetry(ctx, func(_ int) error {
		return m.attemptLocked(ctx, op)
	}, common.RetryOptions{
		MaxAttempts: m.cfg.SendAttempts,
		Delay:       m.cfg.SendDelay,
		Sleep:       m.cfg.Sleep,
		Logger:      m.logger,
		Operation:   "smtp send",
	})
	if err != nil {
		m.dropLocked()
	}
	connected := m.session != nil
	m.mu.Unlock()

	m.monitor.resume(connected)
	return unwrapPermanent(err)
}

// Disconnect ends the session gracefully. Errors from QUIT are ignored.
func (m *Manager) Disconnect() {
	m.monitor.stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session != nil {
		if err := m.session.Quit(); err != nil {
			m.logger.Debug("QUIT failed", "error", err)
			_ = m.session.Close()
		}
	}
	m.session = nil
	m.state = Disconnected
	m.logger.Info("Disconnected from SMTP server")
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastActivity returns the time of the last successful connect or send.
func (m *Manager) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActivity
}

func (m *Manager) attemptLocked(ctx context.Context, op func(Session) error) error {
	if !m.verifyLocked() {
		if err := m.connectLocked(ctx); err != nil {
			return common.Permanent(err)
		}
	}

	if err := op(m.session); err != nil {
		if common.IsAuthError(err) {
			m.dropLocked()
			return err
		}
		m.recoverLocked(err)
		return err
	}

	m.state = Connected
	m.lastActivity = m.cfg.Now()
	return nil
}

func (m *Manager) connectLocked(ctx context.Context) error {
	m.dropLocked()
	m.state = Connecting

	creds := m.cfg.Credentials
	attempts := 0
	err := common.WithRetry(ctx, func(attempt int) error {
		attempts = attempt
		m.logger.Debug("Connecting to SMTP server", "attempt", attempt, "implicit_tls", creds.Port == ImplicitTLSPort)

		s, err := m.cfg.Dialer.Dial(ctx, creds)
		if err != nil {
			return err
		}
		m.session = s
		return nil
	}, common.RetryOptions{
		MaxAttempts: m.cfg.ConnectAttempts,
		Delay:       m.cfg.ConnectDelay,
		Sleep:       m.cfg.Sleep,
		Logger:      m.logger,
		Operation:   "smtp connect",
	})
	if err != nil {
		m.session = nil
		m.state = Disconnected

		switch common.Categorize(err) {
		case model.FailureAuth, model.FailureConfig:
			m.logger.Error("SMTP login rejected", "user", creds.User, "error", err)
			return unwrapPermanent(err)
		default:
			m.logger.Error("Could not connect to SMTP server", "attempts", attempts, "error", err)
			return &common.NetworkError{Err: err, Addr: creds.Addr(), Attempts: attempts}
		}
	}

	m.state = Connected
	m.lastActivity = m.cfg.Now()
	m.logger.Info("Connected to SMTP server", "user", creds.User, "attempts", attempts)
	return nil
}

func (m *Manager) verifyLocked() bool {
	if m.session == nil {
		m.state = Disconnected
		return false
	}
	if err := m.session.Noop(); err != nil {
		m.logger.Warn("Liveness probe failed", "error", err)
		m.dropLocked()
		return false
	}
	return true
}

// recoverLocked resets the session after a failed op so a retry starts a
// clean transaction. A session that cannot be reset is dropped.
func (m *Manager) recoverLocked(opErr error) {
	m.state = Degraded
	if err := m.session.Reset(); err != nil {
		m.logger.Debug("RSET failed, dropping session", "op_error", opErr, "error", err)
		m.dropLocked()
	}
}

// dropLocked closes and forgets the session. The handle and the state are
// always cleared together.
func (m *Manager) dropLocked() {
	if m.session != nil {
		_ = m.session.Close()
	}
	m.session = nil
	m.state = Disconnected
}

// probe is the monitor's periodic check. A failed probe reconnects in the
// background; if that fails too the monitor stays idle until the next
// successful connect.
func (m *Manager) probe() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.monitor.isPaused() || m.session == nil {
		return
	}
	if m.verifyLocked() {
		m.monitor.schedule()
		return
	}

	m.logger.Info("Reconnecting after failed liveness probe")
	if err := m.connectLocked(context.Background()); err != nil {
		return
	}
	m.monitor.schedule()
}

func unwrapPermanent(err error) error {
	var retryableErr *common.RetryableError
	if errors.As(err, &retryableErr) && !retryableErr.Retryable {
		return retryableErr.Err
	}
	return err
}
