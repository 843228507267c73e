package mimepart

import "strconv"

// DefaultPrefix is the boundary prefix used when NewMark is given none.
const DefaultPrefix = "NextPart_"

// Mark hands out the boundary delimiters of one render pass. Each call to
// Next yields the prefix followed by a hexadecimal counter, starting at 1.
// A Mark is not safe for concurrent use.
type Mark struct {
	prefix  string
	counter uint64
}

// NewMark returns a Mark using prefix, or DefaultPrefix if prefix is empty.
func NewMark(prefix string) *Mark {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Mark{prefix: prefix}
}

// Next returns the next delimiter.
func (m *Mark) Next() string {
	m.counter++
	return m.prefix + strconv.FormatUint(m.counter, 16)
}
