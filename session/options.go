package session

import (
	"log/slog"

	"golang.org/x/text/encoding"
)

const defaultChunkSize = 4096

type options struct {
	logger    *slog.Logger
	encoding  encoding.Encoding
	chunkSize int
}

// Option configures a Session
type Option func(*options)

// WithLogger sets the logger used for state transitions and faults
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEncoding sets the text encoding for both directions (default UTF-8).
// See LookupEncoding for the encodings that can be used.
func WithEncoding(enc encoding.Encoding) Option {
	return func(o *options) {
		if enc != nil {
			o.encoding = enc
		}
	}
}

// WithChunkSize sets the size of the read loop buffer
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}
