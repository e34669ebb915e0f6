package irc

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
)

var crlf = []byte("\r\n")

// Framer turns a byte stream into parsed messages.
//
// It holds exactly the bytes received so far that do not yet form a
// complete CRLF-terminated line. A Framer is owned by one goroutine.
type Framer struct {
	buf     []byte
	charset encoding.Encoding
}

// NewFramer returns a Framer decoding lines with charset (nil for UTF-8)
func NewFramer(charset encoding.Encoding) *Framer {
	return &Framer{charset: charset}
}

// Feed appends data to the buffer and returns the messages of every line
// it completes, in arrival order. Empty lines are dropped.
func (f *Framer) Feed(data []byte) []*Message {
	f.buf = append(f.buf, data...)

	var out []*Message
	consumed := false
	for {
		i := bytes.Index(f.buf, crlf)
		if i < 0 {
			break
		}
		line := f.decode(f.buf[:i])
		f.buf = f.buf[i+len(crlf):]
		consumed = true

		if line == "" {
			continue
		}
		if msg, ok := Parse(line); ok {
			out = append(out, msg)
		}
	}

	if consumed {
		f.buf = append([]byte(nil), f.buf...)
	}
	return out
}

// Buffered returns the incomplete tail waiting for its terminator
func (f *Framer) Buffered() string {
	return string(f.buf)
}

// Reset drops any buffered partial line
func (f *Framer) Reset() {
	f.buf = nil
}

func (f *Framer) decode(line []byte) string {
	if f.charset == nil {
		if utf8.Valid(line) {
			return string(line)
		}
		return strings.ToValidUTF8(string(line), "\uFFFD")
	}
	s, err := f.charset.NewDecoder().Bytes(line)
	if err != nil {
		return strings.ToValidUTF8(string(line), "\uFFFD")
	}
	return string(s)
}
