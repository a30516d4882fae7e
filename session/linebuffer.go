package session

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// LineBuffer reassembles chunks into '\n'-terminated lines.
//
// Raw bytes are accumulated and a line is decoded only once its terminator
// has arrived, so a multi-byte character split across chunks is never
// decoded in halves. '\r' is left in place. A LineBuffer is not safe for
// concurrent use.
type LineBuffer struct {
	dec  *encoding.Decoder
	tail []byte
}

// NewLineBuffer returns an empty buffer decoding with enc (UTF-8 if nil)
func NewLineBuffer(enc encoding.Encoding) *LineBuffer {
	if enc == nil {
		enc = unicode.UTF8
	}
	return &LineBuffer{dec: enc.NewDecoder()}
}

// Feed appends chunk and returns the lines it completed, in order. Bytes
// after the last '\n' are kept as the tail. An empty chunk is a no-op.
func (b *LineBuffer) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}

	data := chunk
	if len(b.tail) > 0 {
		data = append(b.tail, chunk...)
	}

	var lines []string
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, b.decode(data[:i]))
		data = data[i+1:]
	}

	// chunk belongs to the caller; copy what is left
	b.tail = append(b.tail[:0], data...)
	return lines
}

// Tail returns the unterminated fragment, decoded
func (b *LineBuffer) Tail() string {
	return b.decode(b.tail)
}

// Reset drops the tail
func (b *LineBuffer) Reset() {
	b.tail = b.tail[:0]
}

func (b *LineBuffer) decode(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	out, err := b.dec.Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "�")
	}
	return string(out)
}

// LookupEncoding resolves a WHATWG encoding label such as "utf-8",
// "iso-8859-1" or "shift_jis". Only encodings that represent '\n' as the
// single byte 0x0A are accepted, since lines are split on raw bytes.
func LookupEncoding(name string) (encoding.Encoding, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown encoding %q", ErrValidation, name)
	}
	nl, err := enc.NewEncoder().Bytes([]byte("\n"))
	if err != nil || !bytes.Equal(nl, []byte("\n")) {
		return nil, fmt.Errorf("%w: encoding %q is not ASCII compatible", ErrValidation, name)
	}
	return enc, nil
}
