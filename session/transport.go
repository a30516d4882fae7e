package session

import (
	"context"
	"fmt"
)

// Accepted range for the rate parameter
const (
	MinRate = 300
	MaxRate = 4_000_000
)

// OpenConfig is what a Transport is opened with
type OpenConfig struct {
	Rate uint32
}

// ValidateRate checks rate against [MinRate, MaxRate]. Whether the device
// accepts a rate inside the range is decided by Transport.Open.
func ValidateRate(rate int) (OpenConfig, error) {
	if rate < MinRate || rate > MaxRate {
		return OpenConfig{}, fmt.Errorf("%w: %d (allowed %d-%d)", ErrInvalidRate, rate, MinRate, MaxRate)
	}
	return OpenConfig{Rate: uint32(rate)}, nil
}

// Provider hands out transports. It is the host environment's side of port
// selection; the session never enumerates devices itself.
type Provider interface {
	// Check reports why transports cannot be used here, or nil.
	Check() error
	// RequestPort selects a port. A dismissed selection returns an error
	// wrapping ErrPortSelectionCancelled.
	RequestPort(ctx context.Context) (Transport, error)
}

// Transport is a bidirectional byte stream to a device.
//
// ReadContext and WriteContext must return promptly once their context is
// done, and the handle must stay valid for calls still in flight when Close
// runs. Open failures should wrap ErrPortAlreadyOpen,
// ErrUnsupportedConfiguration or ErrTransportUnavailable.
type Transport interface {
	Name() string
	Open(ctx context.Context, cfg OpenConfig) error
	// ReadContext returns at least one byte, io.EOF at end of stream, or an error.
	ReadContext(ctx context.Context, p []byte) (int, error)
	WriteContext(ctx context.Context, p []byte) (int, error)
	// NotifyDisconnect returns a channel that is closed when the device is
	// physically removed. The subscription ends when ctx is done.
	NotifyDisconnect(ctx context.Context) <-chan struct{}
	Close() error
}

// Sink receives everything the session wants to show. Calls arrive from the
// caller's goroutine and from the read loop, so implementations must be safe
// for concurrent use and must not call back into Connect, Send or Disconnect.
type Sink interface {
	OnLine(text string, kind LineKind)
	OnStateChange(state State)
}

// DisconnectObserver is an optional Sink extension that gets the reason of
// every completed teardown.
type DisconnectObserver interface {
	OnDisconnect(reason DisconnectReason, cause error)
}

type discardSink struct{}

func (discardSink) OnLine(string, LineKind) {}
func (discardSink) OnStateChange(State)     {}
