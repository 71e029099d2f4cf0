// Package mailer owns the SMTP session used to deliver document groups.
package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/Veraticus/pdfmail/internal/common"
)

// ImplicitTLSPort is the submission port that expects TLS from the first
// byte. Every other port starts in plain text and must upgrade with STARTTLS.
const ImplicitTLSPort = 465

// Credentials identify the SMTP account.
type Credentials struct {
	Host     string
	User     string
	Password string
	Port     int
}

// Addr returns host:port.
func (c Credentials) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Session is an authenticated SMTP session.
type Session interface {
	// Noop is the liveness probe.
	Noop() error
	Send(from string, to []string, r io.Reader) error
	// Reset aborts a half-finished transaction.
	Reset() error
	Quit() error
	Close() error
}

// Dialer opens authenticated sessions.
type Dialer interface {
	Dial(ctx context.Context, creds Credentials) (Session, error)
}

// SMTPDialer dials real SMTP servers with go-smtp.
type SMTPDialer struct {
	// TLSConfig is cloned per dial; ServerName defaults to the host.
	TLSConfig *tls.Config
	// DialContext opens the TCP connection. It defaults to a net.Dialer
	// with Timeout.
	DialContext       func(ctx context.Context, network, addr string) (net.Conn, error)
	Timeout           time.Duration
	CommandTimeout    time.Duration
	SubmissionTimeout time.Duration
}

// NewSMTPDialer returns a dialer with a 30 second connect timeout.
func NewSMTPDialer() *SMTPDialer {
	return &SMTPDialer{
		Timeout:           30 * time.Second,
		CommandTimeout:    time.Minute,
		SubmissionTimeout: 5 * time.Minute,
	}
}

// Dial connects, upgrades to TLS and authenticates with AUTH PLAIN.
// Rejected credentials yield a *common.AuthError; missing server support
// for STARTTLS is permanent; everything else is a *common.NetworkError.
func (d *SMTPDialer) Dial(ctx context.Context, creds Credentials) (Session, error) {
	addr := creds.Addr()
	netDialer := &net.Dialer{Timeout: d.Timeout}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if d.TLSConfig != nil {
		tlsConfig = d.TLSConfig.Clone()
	}
	if tlsConfig.ServerName == "" {
		tlsConfig.ServerName = creds.Host
	}

	dial := d.DialContext
	if dial == nil {
		dial = netDialer.DialContext
	}
	conn, err := dial(ctx, "tcp", addr)
	if err != nil {
		return nil, &common.NetworkError{Err: err, Addr: addr}
	}
	if creds.Port == ImplicitTLSPort {
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, &common.NetworkError{Err: fmt.Errorf("tls handshake: %w", err), Addr: addr}
		}
		conn = tlsConn
	}

	c, err := d.newClient(conn, creds.Port, tlsConfig)
	if err != nil {
		if errors.Is(err, errNoStartTLS) {
			return nil, common.Permanent(common.NewConfigError("email.smtp_port",
				fmt.Errorf("%s does not offer STARTTLS; use port %d for implicit TLS", addr, ImplicitTLSPort)))
		}
		return nil, &common.NetworkError{Err: err, Addr: addr}
	}

	if err := c.Auth(sasl.NewPlainClient("", creds.User, creds.Password)); err != nil {
		_ = c.Close()
		if isPermanentReply(err) {
			return nil, &common.AuthError{Err: err, User: creds.User}
		}
		return nil, &common.NetworkError{Err: fmt.Errorf("auth: %w", err), Addr: addr}
	}

	return &smtpSession{client: c, addr: addr}, nil
}

// errNoStartTLS marks a plain text server that cannot be upgraded.
var errNoStartTLS = errors.New("server does not support STARTTLS")

// noStartTLSReply is the error text go-smtp uses when EHLO does not list
// STARTTLS. It is not an *smtp.SMTPError, so the text is all there is.
const noStartTLSReply = "smtp: server doesn't support STARTTLS"

// newClient greets the server and, unless the connection is already TLS,
// upgrades it with STARTTLS.
func (d *SMTPDialer) newClient(conn net.Conn, port int, tlsConfig *tls.Config) (*smtp.Client, error) {
	var c *smtp.Client
	if port == ImplicitTLSPort {
		c = smtp.NewClient(conn)
		if err := c.Hello("localhost"); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("ehlo: %w", err)
		}
	} else {
		var err error
		c, err = smtp.NewClientStartTLS(conn, tlsConfig)
		if err != nil {
			if err.Error() == noStartTLSReply {
				return nil, errNoStartTLS
			}
			return nil, fmt.Errorf("starttls: %w", err)
		}
	}
	if d.CommandTimeout > 0 {
		c.CommandTimeout = d.CommandTimeout
	}
	if d.SubmissionTimeout > 0 {
		c.SubmissionTimeout = d.SubmissionTimeout
	}
	return c, nil
}

type smtpSession struct {
	client *smtp.Client
	addr   string
}

func (s *smtpSession) Noop() error {
	return s.wrap(s.client.Noop())
}

// Send reports server rejections as-is and transport failures as
// *common.NetworkError.
func (s *smtpSession) Send(from string, to []string, r io.Reader) error {
	return s.wrap(s.client.SendMail(from, to, r))
}

func (s *smtpSession) Reset() error {
	return s.wrap(s.client.Reset())
}

func (s *smtpSession) Quit() error {
	return s.client.Quit()
}

func (s *smtpSession) Close() error {
	return s.client.Close()
}

func (s *smtpSession) wrap(err error) error {
	if err == nil {
		return nil
	}
	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) {
		return err
	}
	return &common.NetworkError{Err: err, Addr: s.addr}
}

func isPermanentReply(err error) bool {
	var smtpErr *smtp.SMTPError
	return errors.As(err, &smtpErr) && smtpErr.Code >= 500
}
