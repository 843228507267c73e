// Package transport defines the interface for mail delivery backends.
package transport

import (
	"context"

	"github.com/shineum/mimemail/internal/email"
)

// Transport is the interface that delivery backends must implement.
// Each transport hands a rendered envelope to the target service
// (e.g., stdout, an SMTP relay, AWS SES, Microsoft Graph).
type Transport interface {
	// Send delivers env through this transport. A nil error means the
	// service accepted the message.
	Send(ctx context.Context, env *email.Envelope) error

	// Name returns the human-readable name of this transport.
	Name() string
}
