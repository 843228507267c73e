// Package parser reads a rendered RFC 5322 message back into an email.Email.
package parser

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/shineum/mimemail/internal/email"
)

// Parse parses a raw message. Header values are decoded, transfer encodings
// are undone and nested multiparts are flattened into text body, HTML body
// and attachments. Parts of unknown type without a filename are logged and
// skipped.
func Parse(raw []byte) (*email.Email, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	defer mr.Close()

	h := mr.Header
	result := &email.Email{}

	if from, err := h.Text("From"); err == nil {
		result.From = from
	} else {
		result.From = h.Get("From")
	}
	if subject, err := h.Subject(); err == nil {
		result.Subject = subject
	} else {
		result.Subject = h.Get("Subject")
	}
	result.MessageID = h.Get("Message-Id")
	result.To = addressList(h, "To")
	result.Cc = addressList(h, "Cc")

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read part: %w", err)
		}

		switch ph := part.Header.(type) {
		case *mail.InlineHeader:
			mediaType, params, _ := ph.ContentType()
			content, err := io.ReadAll(part.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to read body: %w", err)
			}

			switch {
			case mediaType == "text/plain" || mediaType == "":
				if result.TextBody == "" {
					result.TextBody = string(content)
				}
			case mediaType == "text/html":
				if result.HtmlBody == "" {
					result.HtmlBody = string(content)
				}
			case params["name"] != "":
				result.Attachments = append(result.Attachments, email.Attachment{
					Filename:    params["name"],
					ContentType: mediaType,
					Content:     content,
				})
			default:
				slog.Warn("unrecognized MIME part, skipping",
					"content_type", mediaType,
				)
			}

		case *mail.AttachmentHeader:
			mediaType, _, _ := ph.ContentType()
			filename, err := ph.Filename()
			if err != nil {
				slog.Warn("failed to decode attachment filename",
					"content_type", mediaType,
					"error", err,
				)
			}
			if filename == "" {
				filename = fallbackName(mediaType)
			}

			content, err := io.ReadAll(part.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to read attachment %q: %w", filename, err)
			}

			result.Attachments = append(result.Attachments, email.Attachment{
				Filename:    filename,
				ContentType: mediaType,
				Content:     content,
			})
		}
	}

	return result, nil
}

func addressList(h mail.Header, key string) []string {
	addrs, err := h.AddressList(key)
	if err != nil {
		slog.Warn("failed to parse address list, falling back to raw value",
			"header", key,
			"error", err,
		)
		return email.ParseAddressList(h.Get(key))
	}
	if len(addrs) == 0 {
		return nil
	}

	result := make([]string, 0, len(addrs))
	for _, a := range addrs {
		result = append(result, a.Address)
	}
	return result
}

// fallbackName names an attachment that carries no filename after its media
// type, e.g. "attachment.pdf".
func fallbackName(mediaType string) string {
	if _, sub, ok := strings.Cut(mediaType, "/"); ok && sub != "" {
		return "attachment." + sub
	}
	return "attachment"
}
