package session

import (
	"errors"
	"fmt"
	"io"
)

// readLoop pulls chunks from c until the session leaves Connected or the
// transport fails. readDone is closed on every exit path.
func (s *Session) readLoop(c *connection) {
	defer close(c.readDone)

	buf := make([]byte, s.chunkSize)
	for s.State() == StateConnected {
		n, err := c.transport.ReadContext(c.readCtx, buf)
		if n > 0 {
			s.deliver(c, buf[:n])
		}
		if err == nil {
			continue
		}

		// A teardown already started; the error is its cancellation
		if c.readCtx.Err() != nil || s.State() != StateConnected {
			return
		}

		if errors.Is(err, io.EOF) {
			err = fmt.Errorf("%w: end of stream", ErrReadFault)
		} else {
			err = fmt.Errorf("%w: %w", ErrReadFault, err)
		}
		s.teardown(c, ReasonReadFault, err, false)
		return
	}
}

// deliver feeds a chunk to the line buffer and forwards completed lines
func (s *Session) deliver(c *connection, chunk []byte) {
	s.mu.Lock()
	if s.conn != c || s.State() != StateConnected {
		s.mu.Unlock()
		return
	}
	lines := s.buf.Feed(chunk)
	s.mu.Unlock()

	for _, line := range lines {
		s.sink.OnLine(line, KindIncoming)
	}
}
