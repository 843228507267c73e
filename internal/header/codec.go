// Package header encodes header values as RFC 2047 encoded-words and keeps
// the ordered, case-insensitive header block of a message.
package header

import (
	"encoding/base64"
	"mime"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message/charset"
	"golang.org/x/text/unicode/norm"
)

// EOL is the line terminator used when rendering headers and MIME bodies.
const EOL = "\n"

const (
	wordPrefix = "=?UTF-8?B?"
	wordSuffix = "?="

	// maxWordLen is the RFC 2047 upper bound for a single encoded-word.
	maxWordLen = 75

	// fold separates consecutive encoded-words of one unsafe run.
	fold = EOL + " "
)

// maxWordBytes is the largest payload whose base64 form still fits in one
// encoded-word.
const maxWordBytes = (maxWordLen - len(wordPrefix) - len(wordSuffix)) / 4 * 3

var (
	// runPattern splits a value into alternating runs of safe characters
	// (CR, LF and printable ASCII) and everything else.
	runPattern = regexp.MustCompile(`[\r\n\x20-\x7E]+|[^\r\n\x20-\x7E]+`)

	wordPattern = regexp.MustCompile(`=\?[^?\s]+\?[bBqQ]\?[^?\s]*\?=`)

	wordDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}
)

// Encode returns value with every run of non-ASCII or control characters
// replaced by folded "B" encoded-words. Runs of printable ASCII, CR and LF are
// copied unchanged, so an ASCII-only value is returned as is.
//
// Runs are encoded independently of word boundaries: "Grüße!" becomes
// "Gr", an encoded "üß" and "e!".
//
// Decode(Encode(v)) == v except in two cases. A fold (EOL followed by
// whitespace) that sits between two non-ASCII runs is dropped by Decode.
// ASCII text that already has the form of an encoded-word is copied
// unchanged and is then decoded.
func Encode(value string) string {
	return runPattern.ReplaceAllStringFunc(value, func(run string) string {
		if isSafe(run[0]) {
			return run
		}
		return encodeWords(norm.NFC.String(run))
	})
}

// Decode replaces the RFC 2047 encoded-words in value by the text they carry.
// Folding whitespace between two adjacent encoded-words is dropped; any other
// text, including plain spaces, is kept. Words that cannot be decoded are
// left verbatim. A fold between two encoded-words is always treated as
// folding, even when it was part of the encoded value.
func Decode(value string) string {
	locs := wordPattern.FindAllStringIndex(value, -1)
	if len(locs) == 0 {
		return value
	}

	var b strings.Builder
	b.Grow(len(value))

	prevEnd := 0
	prevDecoded := false
	for _, loc := range locs {
		gap := value[prevEnd:loc[0]]
		word := value[loc[0]:loc[1]]
		prevEnd = loc[1]

		text, err := wordDecoder.Decode(word)
		if err != nil {
			b.WriteString(gap)
			b.WriteString(word)
			prevDecoded = false
			continue
		}

		if !prevDecoded || !isFold(gap) {
			b.WriteString(gap)
		}
		b.WriteString(text)
		prevDecoded = true
	}
	b.WriteString(value[prevEnd:])

	return b.String()
}

// encodeWords encodes s as a sequence of encoded-words joined by folds. A
// UTF-8 sequence is never split across two words.
func encodeWords(s string) string {
	var words []string
	for len(s) > 0 {
		n := 0
		for n < len(s) {
			_, size := utf8.DecodeRuneInString(s[n:])
			if n > 0 && n+size > maxWordBytes {
				break
			}
			n += size
		}
		words = append(words, wordPrefix+base64.StdEncoding.EncodeToString([]byte(s[:n]))+wordSuffix)
		s = s[n:]
	}
	return strings.Join(words, fold)
}

func isSafe(c byte) bool {
	return c == '\r' || c == '\n' || (c >= 0x20 && c <= 0x7E)
}

func isFold(s string) bool {
	return strings.ContainsAny(s, "\r\n") && strings.Trim(s, " \t\r\n") == ""
}
