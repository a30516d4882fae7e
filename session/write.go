package session

import (
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
)

// LineTerminator ends every outgoing command, whatever the incoming data uses
const LineTerminator = "\r\n"

// Send writes command followed by CR+LF as one frame.
//
// The command is trimmed; an empty command is dropped with ErrEmptyCommand
// and a session that is not Connected yields ErrNotConnected, both without
// touching the transport. Concurrent calls are serialized. A failed write
// tears the connection down and returns an error wrapping ErrWriteFault.
// Cancelling ctx abandons the write and returns ctx.Err().
func (s *Session) Send(ctx context.Context, command string) error {
	command = strings.TrimSpace(command)
	if command == "" {
		return ErrEmptyCommand
	}

	frame, err := encoding.ReplaceUnsupported(s.encoding.NewEncoder()).Bytes([]byte(command + LineTerminator))
	if err != nil {
		return fmt.Errorf("%w: cannot encode command: %w", ErrValidation, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	c := s.conn
	connected := s.State() == StateConnected
	s.mu.Unlock()
	if !connected || c == nil {
		s.sink.OnLine("No active serial connection", KindError)
		return ErrNotConnected
	}

	s.sink.OnLine(command, KindOutgoing)

	wctx, stop := joinContexts(ctx, c.writeCtx)
	defer stop()

	err = writeFrame(wctx, c.transport, frame)
	if err == nil {
		return nil
	}

	switch {
	case c.writeCtx.Err() != nil || s.State() != StateConnected:
		// The write side was released by a teardown
		return ErrNotConnected
	case ctx.Err() != nil:
		s.logger.Warn("send abandoned", "port", c.transport.Name(), "error", ctx.Err())
		return ctx.Err()
	}

	fault := fmt.Errorf("%w: %w", ErrWriteFault, err)
	s.teardown(c, ReasonWriteFault, fault, true)
	s.sink.OnLine(fmt.Sprintf("Failed to send %q", command), KindError)
	return fault
}

// writeFrame writes all of frame, continuing after short writes
func writeFrame(ctx context.Context, t Transport, frame []byte) error {
	for len(frame) > 0 {
		n, err := t.WriteContext(ctx, frame)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		frame = frame[n:]
	}
	return nil
}

// joinContexts returns a context done when either parent is
func joinContexts(parent, other context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(other, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
