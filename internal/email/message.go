// Package email defines the message data handed to transports and the parsed
// view used to inspect a rendered message.
package email

import (
	"bufio"
	"net/mail"
	"net/textproto"
	"strings"
)

// Envelope is a rendered message ready for delivery. Every field uses "\n"
// line endings; To and Subject are already header-encoded.
type Envelope struct {
	To      string
	Subject string
	Body    string
	Headers string

	// ExtraParams holds sendmail-style options such as "-f sender@example.com".
	// Empty means absent.
	ExtraParams string
}

// Bytes returns the complete RFC 5322 message: To and Subject lines, the
// header block, an empty line and the body, with CRLF line endings.
func (e *Envelope) Bytes() []byte {
	var b strings.Builder
	b.Grow(len(e.To) + len(e.Subject) + len(e.Headers) + len(e.Body) + 32)

	b.WriteString("To: " + e.To + "\n")
	b.WriteString("Subject: " + e.Subject + "\n")
	b.WriteString(e.Headers)
	if e.Headers != "" && !strings.HasSuffix(e.Headers, "\n") {
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(e.Body)

	return []byte(toCRLF(b.String()))
}

// Sender returns the envelope sender given with -f in ExtraParams, or "" if
// there is none. When -f appears more than once the last one wins.
func (e *Envelope) Sender() string {
	var sender string
	fields := strings.Fields(e.ExtraParams)
	for i := 0; i < len(fields); i++ {
		switch {
		case fields[i] == "-f" && i+1 < len(fields):
			sender = fields[i+1]
			i++
		case strings.HasPrefix(fields[i], "-f") && len(fields[i]) > 2:
			sender = fields[i][2:]
		}
	}
	return sender
}

// Recipients returns the bare addresses listed in To.
func (e *Envelope) Recipients() []string {
	return ParseAddressList(strings.Join(strings.Fields(e.To), " "))
}

// Header returns the first value of the named header in Headers, unfolded.
func (e *Envelope) Header(name string) string {
	r := textproto.NewReader(bufio.NewReader(strings.NewReader(e.Headers + "\n")))
	h, _ := r.ReadMIMEHeader()
	return h.Get(name)
}

// Email is the parsed view of a rendered message.
type Email struct {
	From        string
	To          []string
	Cc          []string
	Subject     string
	TextBody    string
	HtmlBody    string
	Attachments []Attachment
	MessageID   string
}

// Attachment is a file recovered from a parsed message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ParseAddressList splits a comma-separated address list into individual addresses.
func ParseAddressList(raw string) []string {
	if raw == "" {
		return nil
	}

	addresses, err := mail.ParseAddressList(raw)
	if err != nil {
		// Fall back to simple comma split if RFC 5322 parsing fails
		parts := strings.Split(raw, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}

	result := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		result = append(result, addr.Address)
	}
	return result
}

func toCRLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}
