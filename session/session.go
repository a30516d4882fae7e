package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Session owns one transport at a time and drives the read loop, the write
// path and teardown for it. Create it once with New and reuse it for every
// reconnect.
type Session struct {
	provider  Provider
	sink      Sink
	logger    *slog.Logger
	encoding  encoding.Encoding
	chunkSize int

	// state mirrors the guarded state so the read loop can poll it without
	// taking mu. It is only stored with mu held.
	state atomic.Int32

	mu            sync.Mutex
	// transport is set from port selection until teardown completes, so it
	// is still nil while Connecting waits on RequestPort.
	transport     Transport
	conn          *connection // set while Connected or Disconnecting
	buf           *LineBuffer
	connectCancel context.CancelFunc
	connectDone   chan struct{} // closed when the running connect attempt settles
	teardownDone  chan struct{} // closed when the running teardown finishes
	unsupported   error

	// writeMu serializes frames on the wire
	writeMu sync.Mutex
}

// connection holds what one successful connect set up
type connection struct {
	transport Transport

	readCtx     context.Context
	cancelRead  context.CancelFunc
	writeCtx    context.Context
	cancelWrite context.CancelFunc
	watchCtx    context.Context
	stopWatch   context.CancelFunc

	// readDone is closed when the read loop has let go of the read side
	readDone chan struct{}
}

func newConnection(t Transport) *connection {
	c := &connection{
		transport: t,
		readDone:  make(chan struct{}),
	}
	c.readCtx, c.cancelRead = context.WithCancel(context.Background())
	c.writeCtx, c.cancelWrite = context.WithCancel(context.Background())
	c.watchCtx, c.stopWatch = context.WithCancel(context.Background())
	return c
}

// New creates a Disconnected session. If the provider reports that
// transports are unsupported, the sink is told right away and every
// Connect fails with ErrTransportUnavailable.
func New(provider Provider, sink Sink, opts ...Option) *Session {
	o := options{
		logger:    slog.Default(),
		encoding:  unicode.UTF8,
		chunkSize: defaultChunkSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if sink == nil {
		sink = discardSink{}
	}

	s := &Session{
		provider:  provider,
		sink:      sink,
		logger:    o.logger,
		encoding:  o.encoding,
		chunkSize: o.chunkSize,
		buf:       NewLineBuffer(o.encoding),
	}

	if err := provider.Check(); err != nil {
		s.unsupported = err
		s.logger.Warn("serial transport unsupported", "error", err)
		s.sink.OnLine(fmt.Sprintf("Serial ports are not supported in this environment: %v", err), KindError)
	}
	return s
}

// State returns the current state without blocking
func (s *Session) State() State {
	return State(s.state.Load())
}

// Port returns the name of the selected transport, or "" when there is none
func (s *Session) Port() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transport == nil {
		return ""
	}
	return s.transport.Name()
}

// PendingTail returns the unterminated fragment of the incoming stream
func (s *Session) PendingTail() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Tail()
}

// setState must be called with mu held
func (s *Session) setState(st State) {
	prev := State(s.state.Swap(int32(st)))
	if prev == st {
		return
	}
	s.logger.Debug("session state changed", "from", prev, "to", st)
	s.sink.OnStateChange(st)
}

// Connect selects a port, opens it at rate and starts the read loop.
//
// A connected session is torn down first. A request arriving while another
// connect is in flight fails with ErrConnectInProgress. Validation failures
// and cancelled port selection leave the state untouched.
func (s *Session) Connect(ctx context.Context, rate int) error {
	cfg, err := ValidateRate(rate)
	if err != nil {
		s.sink.OnLine(err.Error(), KindError)
		return err
	}
	if s.unsupported != nil {
		s.sink.OnLine("Serial ports are not supported in this environment", KindError)
		return fmt.Errorf("%w: %w", ErrTransportUnavailable, s.unsupported)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := s.beginConnect(cancel); err != nil {
		return err
	}

	t, err := s.provider.RequestPort(ctx)
	if err != nil {
		s.abortConnect()
		if errors.Is(err, ErrPortSelectionCancelled) || ctx.Err() != nil {
			s.sink.OnLine("Port selection cancelled", KindInfo)
			if errors.Is(err, ErrPortSelectionCancelled) {
				return err
			}
			return fmt.Errorf("%w: %w", ErrPortSelectionCancelled, err)
		}
		s.sink.OnLine(fmt.Sprintf("No port available: %v", err), KindError)
		return fmt.Errorf("%w: %w", ErrTransportUnavailable, err)
	}

	s.mu.Lock()
	s.transport = t
	s.mu.Unlock()

	s.sink.OnLine(fmt.Sprintf("Connecting to %s at %d baud...", t.Name(), cfg.Rate), KindInfo)
	if err := t.Open(ctx, cfg); err != nil {
		s.abortConnect()
		if ctx.Err() != nil {
			s.sink.OnLine("Connection attempt cancelled", KindInfo)
			return ctx.Err()
		}
		category := openCategory(err)
		s.logger.Warn("open failed", "port", t.Name(), "category", categoryLabel(category), "error", err)
		s.sink.OnLine(fmt.Sprintf("Failed to open %s (%s): %v", t.Name(), categoryLabel(category), err), KindError)
		if errors.Is(err, category) {
			return err
		}
		return fmt.Errorf("%w: %w", category, err)
	}

	if err := s.establish(ctx, t); err != nil {
		// Disconnect was requested while the port was opening
		if cerr := t.Close(); cerr != nil {
			s.logger.Debug("close after cancelled connect failed", "error", cerr)
		}
		s.abortConnect()
		s.sink.OnLine("Connection attempt cancelled", KindInfo)
		return err
	}

	s.logger.Info("connected", "port", t.Name(), "rate", cfg.Rate)
	s.sink.OnLine(fmt.Sprintf("Connected to %s - ready for commands", t.Name()), KindSuccess)
	return nil
}

// beginConnect moves the session to Connecting, tearing down or waiting out
// whatever connection is still around.
func (s *Session) beginConnect(cancel context.CancelFunc) error {
	for {
		s.mu.Lock()
		switch s.State() {
		case StateConnecting:
			s.mu.Unlock()
			s.sink.OnLine("A connection attempt is already in progress", KindInfo)
			return ErrConnectInProgress
		case StateConnected:
			c := s.conn
			s.mu.Unlock()
			s.teardown(c, ReasonUserRequested, nil, true)
			continue
		case StateDisconnecting:
			done := s.teardownDone
			s.mu.Unlock()
			<-done
			continue
		}

		s.connectCancel = cancel
		s.connectDone = make(chan struct{})
		s.setState(StateConnecting)
		s.mu.Unlock()
		return nil
	}
}

// abortConnect returns a failed connect attempt to Disconnected. No
// transport was opened, so there is nothing to tear down.
func (s *Session) abortConnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transport = nil
	s.connectCancel = nil
	s.setState(StateDisconnected)
	close(s.connectDone)
}

// establish publishes the opened transport and starts the read loop and the
// removal watch. It fails if the connect attempt was cancelled meanwhile.
func (s *Session) establish(ctx context.Context, t Transport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	c := newConnection(t)
	s.conn = c
	s.transport = t
	s.connectCancel = nil
	s.buf.Reset()
	s.setState(StateConnected)
	close(s.connectDone)

	go s.readLoop(c)
	go s.watchRemoval(c)
	return nil
}

// watchRemoval runs the physical-disconnect subscription for c
func (s *Session) watchRemoval(c *connection) {
	removed := c.transport.NotifyDisconnect(c.watchCtx)
	select {
	case <-removed:
		s.logger.Info("device removed", "port", c.transport.Name())
		s.teardown(c, ReasonDeviceRemoved, nil, true)
	case <-c.watchCtx.Done():
	}
}

// Disconnect tears down the current connection and returns once the session
// is Disconnected. It is a no-op when already Disconnected, cancels an
// attempt still Connecting and waits for a teardown that is already running.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.State() == StateConnecting {
		done := s.connectDone
		if s.connectCancel != nil {
			s.connectCancel()
		}
		s.mu.Unlock()
		<-done
		s.mu.Lock()
	}
	switch s.State() {
	case StateDisconnected, StateConnecting:
		// Connecting again means a new attempt started after ours settled
		s.mu.Unlock()
		return
	}
	c := s.conn
	s.mu.Unlock()

	s.teardown(c, ReasonUserRequested, nil, true)
}
