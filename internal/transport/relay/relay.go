// Package relay implements a Transport that hands messages to an SMTP relay.
package relay

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"

	"github.com/shineum/mimemail/internal/email"
	mimetls "github.com/shineum/mimemail/internal/tls"
)

var (
	// ErrNoSender is returned when neither the envelope nor the configuration
	// names a sender.
	ErrNoSender = errors.New("no envelope sender")

	// ErrNoRecipients is returned when the envelope names no recipient.
	ErrNoRecipients = errors.New("message has no recipients")

	// ErrAuthUnsupported is returned when credentials are configured but the
	// relay does not offer AUTH.
	ErrAuthUnsupported = errors.New("relay does not support AUTH")
)

// Config holds the configuration for creating a Transport.
type Config struct {
	// Addr is the host:port of the relay.
	Addr     string
	Username string
	Password string

	// Sender is the envelope sender used when the message carries no -f
	// parameter.
	Sender string

	TLSCAFile          string
	InsecureSkipVerify bool

	// LocalName is sent with EHLO. Defaults to "localhost".
	LocalName string
}

// Transport delivers messages to a single SMTP relay. STARTTLS is used
// whenever the relay offers it.
type Transport struct {
	cfg       Config
	host      string
	tlsConfig *tls.Config
	dialer    *net.Dialer
	now       func() time.Time
}

// New creates a new Transport with the given configuration.
func New(cfg Config) (*Transport, error) {
	host, _, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("invalid relay address %q: %w", cfg.Addr, err)
	}

	tlsConfig, err := mimetls.ClientConfig(host, cfg.TLSCAFile, cfg.InsecureSkipVerify)
	if err != nil {
		return nil, fmt.Errorf("failed to configure TLS: %w", err)
	}

	if cfg.LocalName == "" {
		cfg.LocalName = "localhost"
	}

	return &Transport{
		cfg:       cfg,
		host:      host,
		tlsConfig: tlsConfig,
		dialer:    &net.Dialer{Timeout: 30 * time.Second},
		now:       time.Now,
	}, nil
}

// Send delivers env. MAIL FROM is the -f address of env, or the configured
// sender. Every To address is a recipient.
func (t *Transport) Send(ctx context.Context, env *email.Envelope) error {
	from := env.Sender()
	if from == "" {
		from = t.cfg.Sender
	}
	if from == "" {
		return ErrNoSender
	}

	rcpts := env.Recipients()
	if len(rcpts) == 0 {
		return ErrNoRecipients
	}

	msg := t.prepare(env, from).Bytes()

	if err := t.deliver(ctx, from, rcpts, msg); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("relay %s: %w", t.cfg.Addr, ctxErr)
		}
		return fmt.Errorf("relay %s: %w", t.cfg.Addr, err)
	}

	slog.Info("message relayed",
		"relay", t.cfg.Addr,
		"from", from,
		"recipients", len(rcpts),
		"bytes", len(msg),
	)
	return nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "smtp"
}

func (t *Transport) deliver(ctx context.Context, from string, rcpts []string, msg []byte) error {
	conn, err := t.dialer.DialContext(ctx, "tcp", t.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c, err := smtp.NewClient(conn, t.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to read greeting: %w", err)
	}
	defer c.Close()

	if err := c.Hello(t.cfg.LocalName); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(t.tlsConfig); err != nil {
			return fmt.Errorf("STARTTLS failed: %w", err)
		}
		slog.Debug("relay connection upgraded to TLS", "relay", t.cfg.Addr)
	}

	if t.cfg.Username != "" {
		if ok, _ := c.Extension("AUTH"); !ok {
			return ErrAuthUnsupported
		}
		if err := c.Auth(sasl.NewPlainClient("", t.cfg.Username, t.cfg.Password)); err != nil {
			return fmt.Errorf("AUTH failed: %w", err)
		}
	}

	if err := c.Mail(from, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	for _, rcpt := range rcpts {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("RCPT TO %s failed: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("message rejected: %w", err)
	}

	return c.Quit()
}

// prepare returns a copy of env with the From, Date and Message-ID headers
// a submission agent adds when they are missing.
func (t *Transport) prepare(env *email.Envelope, from string) *email.Envelope {
	var extra strings.Builder
	if env.Header("From") == "" {
		extra.WriteString("From: " + from + "\n")
	}
	if env.Header("Date") == "" {
		extra.WriteString("Date: " + t.now().Format(time.RFC1123Z) + "\n")
	}
	if env.Header("Message-ID") == "" {
		extra.WriteString("Message-ID: " + messageID(from) + "\n")
	}
	if extra.Len() == 0 {
		return env
	}

	out := *env
	out.Headers = extra.String() + env.Headers
	return &out
}

// messageID returns a new unique Message-ID in the domain of from.
func messageID(from string) string {
	domain := "localhost"
	if _, d, ok := strings.Cut(from, "@"); ok && d != "" {
		domain = d
	}
	return "<" + uuid.NewString() + "@" + domain + ">"
}
