package session

import (
	"fmt"
)

// teardown returns the session to Disconnected after c was connected.
//
// It is idempotent: when c is no longer the live connection it returns at
// once, and when another teardown of c is running it waits for that one if
// wait is set. The read loop passes wait=false because teardown itself waits
// for the read loop to exit.
func (s *Session) teardown(c *connection, reason DisconnectReason, cause error, wait bool) {
	s.mu.Lock()
	if c == nil || s.conn != c {
		s.mu.Unlock()
		return
	}
	if s.State() == StateDisconnecting {
		done := s.teardownDone
		s.mu.Unlock()
		if wait {
			<-done
		}
		return
	}

	done := make(chan struct{})
	s.teardownDone = done
	s.setState(StateDisconnecting)
	s.mu.Unlock()

	name := c.transport.Name()
	s.logger.Debug("tearing down", "port", name, "reason", reason)

	c.stopWatch()
	// Unblocks a read in flight instead of waiting for the next chunk
	c.cancelRead()
	c.cancelWrite()
	if err := c.transport.Close(); err != nil {
		s.logger.Debug("close failed during teardown", "port", name, "error", err)
	}
	if wait {
		<-c.readDone
	}

	s.mu.Lock()
	s.buf.Reset()
	s.transport = nil
	s.conn = nil
	s.teardownDone = nil
	s.setState(StateDisconnected)
	s.mu.Unlock()
	close(done)

	s.notifyDisconnect(name, reason, cause)
}

func (s *Session) notifyDisconnect(name string, reason DisconnectReason, cause error) {
	if reason == ReasonUserRequested {
		s.logger.Info("disconnected", "port", name, "reason", reason)
		s.sink.OnLine(reason.Message(), KindInfo)
	} else {
		s.logger.Warn("connection lost", "port", name, "reason", reason, "error", cause)
		msg := fmt.Sprintf("%s (%s)", reason.Message(), name)
		if cause != nil {
			msg = fmt.Sprintf("%s: %v", msg, cause)
		}
		s.sink.OnLine(msg, KindError)
	}

	if o, ok := s.sink.(DisconnectObserver); ok {
		o.OnDisconnect(reason, cause)
	}
}
