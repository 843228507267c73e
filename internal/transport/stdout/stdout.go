// Package stdout implements a Transport that prints messages to standard output.
package stdout

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/docker/go-units"
	"jaytaylor.com/html2text"

	"github.com/shineum/mimemail/internal/email"
	"github.com/shineum/mimemail/internal/parser"
)

const (
	frame   = "========================================\n"
	divider = "----------------------------------------\n"
)

// Transport prints a readable summary of each message followed by the raw
// message as it would go on the wire.
type Transport struct {
	// writer is the output destination, defaulting to os.Stdout.
	writer io.Writer
}

// New creates a new stdout Transport that writes to os.Stdout.
func New() *Transport {
	return &Transport{writer: os.Stdout}
}

// NewWithWriter creates a new stdout Transport that writes to the given writer.
// This is useful for testing.
func NewWithWriter(w io.Writer) *Transport {
	return &Transport{writer: w}
}

// Send prints env. Only a failed write is reported as an error.
func (t *Transport) Send(_ context.Context, env *email.Envelope) error {
	raw := env.Bytes()

	var b strings.Builder
	b.WriteString(frame)

	msg, err := parser.Parse(raw)
	if err != nil {
		slog.Warn("failed to parse rendered message, printing raw only", "error", err)
	} else {
		writeSummary(&b, msg)
		b.WriteString(divider)
	}

	b.WriteString(strings.ReplaceAll(string(raw), "\r\n", "\n"))
	if !strings.HasSuffix(b.String(), "\n") {
		b.WriteString("\n")
	}
	b.WriteString(frame)

	if _, err := io.WriteString(t.writer, b.String()); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	slog.Debug("message printed", "bytes", len(raw))
	return nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "stdout"
}

func writeSummary(b *strings.Builder, msg *email.Email) {
	if msg.From != "" {
		fmt.Fprintf(b, "From: %s\n", msg.From)
	}
	fmt.Fprintf(b, "To: %s\n", strings.Join(msg.To, ", "))
	if len(msg.Cc) > 0 {
		fmt.Fprintf(b, "Cc: %s\n", strings.Join(msg.Cc, ", "))
	}
	fmt.Fprintf(b, "Subject: %s\n", msg.Subject)

	b.WriteString("Body:\n")
	b.WriteString(preview(msg) + "\n")

	if len(msg.Attachments) > 0 {
		attachments := make([]string, 0, len(msg.Attachments))
		for _, att := range msg.Attachments {
			attachments = append(attachments, fmt.Sprintf("%s (%s)", att.Filename, formatSize(len(att.Content))))
		}
		fmt.Fprintf(b, "Attachments: %s\n", strings.Join(attachments, ", "))
	}
}

// preview returns the text body, or the HTML body converted to text when
// there is no text body.
func preview(msg *email.Email) string {
	body := strings.ReplaceAll(msg.TextBody, "\r\n", "\n")
	if body != "" || msg.HtmlBody == "" {
		return body
	}

	text, err := html2text.FromString(msg.HtmlBody, html2text.Options{})
	if err != nil {
		slog.Debug("failed to convert HTML body, printing as is", "error", err)
		return msg.HtmlBody
	}
	return text
}

// formatSize formats a byte count into a human-readable string.
func formatSize(bytes int) string {
	return units.HumanSize(float64(bytes))
}
