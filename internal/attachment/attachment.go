// Package attachment represents files attached to an outgoing message. An
// Attachment is backed either by a file path, read when the message is
// rendered, or by bytes supplied up front.
package attachment

import (
	"errors"
	"fmt"
	"os"
)

// ErrNoOrigin is returned when an Attachment was not created by FromFile or
// FromContent.
var ErrNoOrigin = errors.New("attachment has neither a file path nor content")

// origin is where the attachment bytes come from.
type origin interface {
	read() ([]byte, error)
}

type fileOrigin struct {
	path string
}

func (o fileOrigin) read() ([]byte, error) {
	data, err := os.ReadFile(o.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment file: %w", err)
	}
	return data, nil
}

type contentOrigin struct {
	data []byte
}

func (o contentOrigin) read() ([]byte, error) {
	return o.data, nil
}

// Attachment is a payload attached to a message. Name and content type are
// optional; an empty string means absent.
type Attachment struct {
	origin      origin
	name        string
	contentType string
}

// FromFile returns an Attachment whose content is read from path at render
// time.
func FromFile(path, contentType, name string) *Attachment {
	return &Attachment{
		origin:      fileOrigin{path: path},
		name:        SanitizeFileName(name),
		contentType: contentType,
	}
}

// FromContent returns an Attachment holding content.
func FromContent(content []byte, contentType, name string) *Attachment {
	return &Attachment{
		origin:      contentOrigin{data: content},
		name:        SanitizeFileName(name),
		contentType: contentType,
	}
}

// Valid reports whether a was created by one of the constructors.
func (a *Attachment) Valid() bool {
	return a != nil && a.origin != nil
}

// Name returns the sanitized display name, or "" when none was given.
func (a *Attachment) Name() string {
	if a == nil {
		return ""
	}
	return a.name
}

// ContentType returns the MIME type, or "" when none was given.
func (a *Attachment) ContentType() string {
	if a == nil {
		return ""
	}
	return a.contentType
}

// Content returns the attachment bytes, reading the backing file if needed.
// Read failures are returned as is and never retried.
func (a *Attachment) Content() ([]byte, error) {
	if !a.Valid() {
		return nil, ErrNoOrigin
	}
	return a.origin.read()
}

// Rename replaces the display name and returns a for chaining.
func (a *Attachment) Rename(name string) *Attachment {
	a.name = SanitizeFileName(name)
	return a
}
