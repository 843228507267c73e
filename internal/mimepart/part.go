// Package mimepart builds the MIME body of a message as a tree of parts and
// renders it to text. Leaves carry base64 encoded content; containers hold
// child parts separated by generated boundaries.
package mimepart

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/shineum/mimemail/internal/attachment"
	"github.com/shineum/mimemail/internal/header"
)

// LineLength is the width at which base64 bodies are wrapped (RFC 2045).
const LineLength = 76

const (
	contentTypePlain   = "text/plain; charset=UTF-8"
	contentTypeHTML    = "text/html; charset=UTF-8"
	contentTypeDefault = "application/octet-stream"
)

var lineBreak = regexp.MustCompile(`\r\n?|\n`)

// Part is a node of a MIME tree.
//
// Render claims one delimiter from m before doing anything else, whether or
// not the node uses it, so boundaries are numbered in pre-order across the
// whole tree. A nil m starts a new render pass.
type Part interface {
	Render(m *Mark) string
}

// Leaf is a single encoded body part. A non-empty FileName turns it into an
// attachment.
type Leaf struct {
	ContentType string
	FileName    string
	Content     []byte
}

// PlainText returns a UTF-8 text/plain leaf.
func PlainText(content string) *Leaf {
	return &Leaf{ContentType: contentTypePlain, Content: []byte(content)}
}

// HTML returns a UTF-8 text/html leaf.
func HTML(content string) *Leaf {
	return &Leaf{ContentType: contentTypeHTML, Content: []byte(content)}
}

// FromAttachment reads a and returns a leaf carrying its content, type and
// name. The type defaults to application/octet-stream.
func FromAttachment(a *attachment.Attachment) (*Leaf, error) {
	content, err := a.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to load attachment %q: %w", a.Name(), err)
	}

	contentType := a.ContentType()
	if contentType == "" {
		contentType = contentTypeDefault
	}

	return &Leaf{
		ContentType: contentType,
		FileName:    a.Name(),
		Content:     content,
	}, nil
}

// Render implements Part.
func (l *Leaf) Render(m *Mark) string {
	if m == nil {
		m = NewMark("")
	}
	m.Next()

	return renderLeaf(l.ContentType, l.FileName, l.Content)
}

// Container is a multipart node such as multipart/mixed or
// multipart/alternative.
type Container struct {
	ContentType string
	parts       []Part
}

// NewContainer returns a container of the given multipart type holding parts.
func NewContainer(contentType string, parts ...Part) *Container {
	return &Container{ContentType: contentType, parts: parts}
}

// AddPart appends p to the children of c.
func (c *Container) AddPart(p Part) {
	c.parts = append(c.parts, p)
}

// Parts returns the children of c in order.
func (c *Container) Parts() []Part {
	return c.parts
}

// Render implements Part. A container without children renders as an empty
// leaf of its own type.
func (c *Container) Render(m *Mark) string {
	if m == nil {
		m = NewMark("")
	}
	sep := m.Next()

	if len(c.parts) == 0 {
		return renderLeaf(c.ContentType, "", nil)
	}

	lines := make([]string, 0, 2*len(c.parts)+4)
	lines = append(lines, "Content-Type: "+c.ContentType+`; boundary="`+sep+`"`, "")
	for _, p := range c.parts {
		lines = append(lines, "--"+sep, p.Render(m))
	}
	lines = append(lines, "--"+sep+"--", "")

	return strings.Join(lines, header.EOL)
}

// Render renders p with a fresh Mark.
func Render(p Part) string {
	return p.Render(NewMark(""))
}

func renderLeaf(contentType, fileName string, content []byte) string {
	var name string
	if fileName != "" {
		name = header.Encode(fileName)
	}

	lines := make([]string, 0, 5)
	if name != "" {
		lines = append(lines, "Content-Type: "+contentType+`; name="`+name+`"`)
	} else {
		lines = append(lines, "Content-Type: "+contentType)
	}
	lines = append(lines, "Content-Transfer-Encoding: base64")
	if name != "" {
		lines = append(lines, `Content-Disposition: attachment; filename="`+name+`"`)
	}
	lines = append(lines, "")

	if strings.HasPrefix(contentType, "text/") {
		lines = append(lines, encodeText(content))
	} else {
		lines = append(lines, encodeBinary(content))
	}

	return strings.Join(lines, header.EOL)
}

// encodeText normalizes text to NFC with CRLF line endings before encoding it.
func encodeText(body []byte) string {
	text := norm.NFC.String(string(body))
	text = lineBreak.ReplaceAllString(text, "\r\n")
	return encodeBinary([]byte(text))
}

func encodeBinary(body []byte) string {
	return chunk(base64.StdEncoding.EncodeToString(body))
}

// chunk wraps s at LineLength, terminating every line, the last one
// included, with EOL. An empty s yields a single EOL.
func chunk(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/LineLength*len(header.EOL) + len(header.EOL))

	for len(s) > LineLength {
		b.WriteString(s[:LineLength])
		b.WriteString(header.EOL)
		s = s[LineLength:]
	}
	b.WriteString(s)
	b.WriteString(header.EOL)

	return b.String()
}
