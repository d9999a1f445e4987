// Package notify sends short alerts as SMS through a carrier email gateway.
package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// Notifier delivers a short text message.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Config describes the SMTP account and the destination phone.
type Config struct {
	// Addr is host:port of the SMTP server.
	Addr     string
	Username string
	Password string
	Phone    string
	// Gateway is the carrier's email-to-SMS domain.
	Gateway string
	// PlainText disables implicit TLS. Only meant for loopback servers.
	PlainText bool
	TLSConfig *tls.Config
	Timeout   time.Duration
}

// SMSGateway implements Notifier over SMTP. No connection is held between calls.
type SMSGateway struct {
	cfg  Config
	host string
}

var _ Notifier = (*SMSGateway)(nil)

// New validates cfg and returns a gateway notifier.
func New(cfg Config) (*SMSGateway, error) {
	if cfg.Addr == "" {
		cfg.Addr = "smtp.gmail.com:465"
	}
	if cfg.Gateway == "" {
		cfg.Gateway = "vtext.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	host, _, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("notify: invalid smtp addr %q: %w", cfg.Addr, err)
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("notify: smtp credentials are empty")
	}
	if strings.TrimSpace(cfg.Phone) == "" {
		return nil, errors.New("notify: phone number is empty")
	}
	return &SMSGateway{cfg: cfg, host: host}, nil
}

// Recipient is the gateway address for the configured phone.
func (g *SMSGateway) Recipient() string {
	return strings.TrimSpace(g.cfg.Phone) + "@" + g.cfg.Gateway
}

// Notify opens a connection, sends message and closes the connection on every path.
func (g *SMSGateway) Notify(ctx context.Context, message string) error {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	conn, err := g.dial(ctx)
	if err != nil {
		return fmt.Errorf("notify: dial %s: %w", g.cfg.Addr, err)
	}
	defer func() { _ = conn.Close() }()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, g.host)
	if err != nil {
		return fmt.Errorf("notify: greeting: %w", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.Auth(smtp.PlainAuth("", g.cfg.Username, g.cfg.Password, g.host)); err != nil {
		return fmt.Errorf("notify: auth: %w", err)
	}
	if err := c.Mail(g.cfg.Username); err != nil {
		return fmt.Errorf("notify: mail from: %w", err)
	}
	if err := c.Rcpt(g.Recipient()); err != nil {
		return fmt.Errorf("notify: rcpt: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("notify: data: %w", err)
	}
	if _, err := fmt.Fprintf(w, "From: %s\r\nTo: %s\r\n\r\n%s\r\n", g.cfg.Username, g.Recipient(), sanitize(message)); err != nil {
		_ = w.Close()
		return fmt.Errorf("notify: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("notify: send: %w", err)
	}
	return c.Quit()
}

func (g *SMSGateway) dial(ctx context.Context) (net.Conn, error) {
	if g.cfg.PlainText {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", g.cfg.Addr)
	}
	tc := g.cfg.TLSConfig
	if tc == nil {
		tc = &tls.Config{ServerName: g.host, MinVersion: tls.VersionTLS12}
	}
	d := tls.Dialer{Config: tc}
	return d.DialContext(ctx, "tcp", g.cfg.Addr)
}

// sanitize keeps the body to a single line-oriented text block.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}
