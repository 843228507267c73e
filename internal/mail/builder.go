// Package mail assembles a complete message from a subject, a text body, an
// optional HTML body and attachments, and hands it to a transport.
package mail

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shineum/mimemail/internal/attachment"
	"github.com/shineum/mimemail/internal/email"
	"github.com/shineum/mimemail/internal/header"
	"github.com/shineum/mimemail/internal/mimepart"
	"github.com/shineum/mimemail/internal/transport"
)

var (
	// ErrIncomplete is returned by Build and Send when the subject or the
	// plain-text message has not been set.
	ErrIncomplete = errors.New("subject or message was not set")

	// ErrInvalidAttachment is returned by Attach for a nil attachment or one
	// without content origin.
	ErrInvalidAttachment = errors.New("invalid attachment")
)

var lineBreak = regexp.MustCompile(`\r\n?`)

// Builder collects the parts of a single message. A Builder is not safe for
// concurrent use.
type Builder struct {
	subject     *string
	message     *string
	htmlMessage *string
	headers     *header.Store
	attachments []*attachment.Attachment

	additionalParameters string
}

// New returns a Builder whose header block starts with MIME-Version: 1.0.
func New() *Builder {
	h := header.NewStore()
	h.Set("MIME-Version", "1.0")
	return &Builder{headers: h}
}

// From sets the From header and appends "-f address" to the additional
// parameters so the envelope sender matches.
func (b *Builder) From(address, name string) *Builder {
	switch {
	case strings.TrimSpace(name) == "":
		b.headers.Set("From", address)
	case strings.Contains(name, ","):
		b.headers.Set("From", `"`+name+`" <`+address+`>`)
	default:
		b.headers.Set("From", name+" <"+address+">")
	}

	if b.additionalParameters == "" {
		b.additionalParameters = "-f " + address
	} else {
		b.additionalParameters += " -f " + address
	}
	return b
}

// Subject sets the subject line.
func (b *Builder) Subject(subject string) *Builder {
	b.subject = &subject
	return b
}

// Message sets the plain-text body.
func (b *Builder) Message(message string) *Builder {
	b.message = &message
	return b
}

// HTMLMessage sets the HTML alternative of the body.
func (b *Builder) HTMLMessage(html string) *Builder {
	b.htmlMessage = &html
	return b
}

// Header sets an extra header. Names are case-insensitive.
func (b *Builder) Header(name, value string) *Builder {
	b.headers.Set(name, value)
	return b
}

// SetAdditionalParameters replaces the transport parameters, including any
// "-f" added by From.
func (b *Builder) SetAdditionalParameters(params string) *Builder {
	b.additionalParameters = params
	return b
}

// Attach adds a to the message. Its content is read when the message is built.
func (b *Builder) Attach(a *attachment.Attachment) error {
	if !a.Valid() {
		return ErrInvalidAttachment
	}
	b.attachments = append(b.attachments, a)
	return nil
}

// Build renders the message addressed to to. The Content-Type line of the
// outermost part is moved from the body into the header block. Every returned
// string uses "\n" line endings.
func (b *Builder) Build(to string) (*email.Envelope, error) {
	if b.subject == nil || b.message == nil {
		return nil, ErrIncomplete
	}

	root, err := b.tree()
	if err != nil {
		return nil, err
	}

	headers := b.headers.Clone()
	body := headers.Eat(mimepart.Render(root))

	return &email.Envelope{
		To:          normalize(header.Encode(to)),
		Subject:     normalize(header.Encode(*b.subject)),
		Body:        normalize(body),
		Headers:     normalize(headers.Render()),
		ExtraParams: b.additionalParameters,
	}, nil
}

// Send builds the message and passes it to t. The transport's error is
// returned unchanged.
func (b *Builder) Send(ctx context.Context, t transport.Transport, to string) error {
	env, err := b.Build(to)
	if err != nil {
		return err
	}
	return t.Send(ctx, env)
}

// tree returns the MIME tree of the message: the text part, or a
// multipart/alternative of text and HTML, wrapped in multipart/mixed together
// with the attachments when there are any.
func (b *Builder) tree() (mimepart.Part, error) {
	var message mimepart.Part = mimepart.PlainText(*b.message)
	if b.htmlMessage != nil {
		message = mimepart.NewContainer("multipart/alternative",
			mimepart.PlainText(*b.message),
			mimepart.HTML(*b.htmlMessage),
		)
	}

	if len(b.attachments) == 0 {
		return message, nil
	}

	mixed := mimepart.NewContainer("multipart/mixed", message)
	for _, a := range b.attachments {
		leaf, err := mimepart.FromAttachment(a)
		if err != nil {
			return nil, fmt.Errorf("failed to build message: %w", err)
		}
		mixed.AddPart(leaf)
	}
	return mixed, nil
}

func normalize(s string) string {
	return lineBreak.ReplaceAllString(s, header.EOL)
}
