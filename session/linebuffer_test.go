package session_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allbin/serialmon/session"
)

func TestLineBufferSplitsAcrossChunks(t *testing.T) {
	b := session.NewLineBuffer(nil)

	assert.Equal(t, []string{"A"}, b.Feed([]byte("A\nB")))
	assert.Equal(t, "B", b.Tail())

	assert.Equal(t, []string{"B"}, b.Feed([]byte("\n")))
	assert.Equal(t, "", b.Tail())
}

func TestLineBufferEmptyChunk(t *testing.T) {
	b := session.NewLineBuffer(nil)
	b.Feed([]byte("partial"))

	assert.Empty(t, b.Feed(nil))
	assert.Empty(t, b.Feed([]byte{}))
	assert.Equal(t, "partial", b.Tail())
}

func TestLineBufferEdgeCases(t *testing.T) {
	tests := []struct {
		name  string
		input string
		lines []string
		tail  string
	}{
		{"lone newline", "\n", []string{""}, ""},
		{"blank lines", "\n\n\n", []string{"", "", ""}, ""},
		{"carriage return kept", "OK\r\nERROR\r\n", []string{"OK\r", "ERROR\r"}, ""},
		{"bare carriage return", "a\rb", nil, "a\rb"},
		{"no terminator", "no newline", nil, "no newline"},
		{"trailing fragment", "one\ntwo\nthr", []string{"one", "two"}, "thr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := session.NewLineBuffer(nil)
			lines := b.Feed([]byte(tt.input))
			assert.Equal(t, tt.lines, lines)
			assert.Equal(t, tt.tail, b.Tail())
		})
	}
}

func TestLineBufferChunkingInvariance(t *testing.T) {
	stream := []byte("héllo\r\nwörld €\n\n日本語\nlast")
	want := session.NewLineBuffer(nil).Feed(stream)
	require.Equal(t, []string{"héllo\r", "wörld €", "", "日本語"}, want)

	// Every two-cut split, including cuts inside multi-byte characters
	for i := 0; i <= len(stream); i++ {
		for j := i; j <= len(stream); j++ {
			b := session.NewLineBuffer(nil)
			var got []string
			got = append(got, b.Feed(stream[:i])...)
			got = append(got, b.Feed(stream[i:j])...)
			got = append(got, b.Feed(stream[j:])...)

			require.Equal(t, want, got, "cuts at %d and %d", i, j)
			require.Equal(t, "last", b.Tail(), "cuts at %d and %d", i, j)
		}
	}
}

func TestLineBufferByteAtATime(t *testing.T) {
	stream := []byte("ÅÄÖ\r\n€uro\n")
	b := session.NewLineBuffer(nil)

	var got []string
	for i := range stream {
		got = append(got, b.Feed(stream[i:i+1])...)
	}
	assert.Equal(t, []string{"ÅÄÖ\r", "€uro"}, got)
}

func TestLineBufferDoesNotRetainChunk(t *testing.T) {
	b := session.NewLineBuffer(nil)
	chunk := []byte("abc")
	b.Feed(chunk)
	copy(chunk, "xyz")

	assert.Equal(t, []string{"abcdef"}, b.Feed([]byte("def\n")))
}

func TestLineBufferInvalidUTF8(t *testing.T) {
	b := session.NewLineBuffer(nil)
	lines := b.Feed([]byte{0xff, 'o', 'k', '\n'})

	require.Len(t, lines, 1)
	assert.Equal(t, "�ok", lines[0])
}

func TestLineBufferReset(t *testing.T) {
	b := session.NewLineBuffer(nil)
	b.Feed([]byte("stale"))
	b.Reset()

	assert.Equal(t, "", b.Tail())
	assert.Equal(t, []string{"fresh"}, b.Feed([]byte("fresh\n")))
}

func TestLineBufferSingleByteEncoding(t *testing.T) {
	enc, err := session.LookupEncoding("iso-8859-1")
	require.NoError(t, err)

	b := session.NewLineBuffer(enc)
	lines := b.Feed([]byte{'c', 'a', 'f', 0xE9, '\n'})
	assert.Equal(t, []string{"café"}, lines)
}

func TestLookupEncoding(t *testing.T) {
	for _, name := range []string{"utf-8", "UTF8", "latin1", "windows-1252", "shift_jis"} {
		_, err := session.LookupEncoding(name)
		assert.NoError(t, err, name)
	}

	_, err := session.LookupEncoding("utf-16le")
	assert.ErrorIs(t, err, session.ErrValidation)
	assert.True(t, strings.Contains(err.Error(), "not ASCII compatible"))

	_, err = session.LookupEncoding("klingon")
	assert.ErrorIs(t, err, session.ErrValidation)
}
