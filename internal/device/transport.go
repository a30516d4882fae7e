package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	serial "github.com/allbin/serialmon"
	"github.com/allbin/serialmon/session"
)

// Transport is a session.Transport over a serial.Port
type Transport struct {
	path   string
	opts   []serial.Option
	logger *slog.Logger

	mu   sync.Mutex
	port serial.Port
}

var _ session.Transport = (*Transport)(nil)

// NewTransport returns an unopened transport for path
func NewTransport(path string, logger *slog.Logger, opts ...serial.Option) *Transport {
	return &Transport{
		path:   path,
		opts:   opts,
		logger: logger,
	}
}

// Name returns the device path
func (t *Transport) Name() string {
	return t.path
}

// Open opens the device at cfg.Rate
func (t *Transport) Open(ctx context.Context, cfg session.OpenConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	opts := append(slices.Clone(t.opts), serial.WithBaudRate(int(cfg.Rate)))
	p, err := serial.Open(t.path, opts...)
	if err != nil {
		return classify(err)
	}

	t.mu.Lock()
	t.port = p
	t.mu.Unlock()

	t.logger.Debug("port opened", "port", t.path, "rate", cfg.Rate)
	return nil
}

// classify wraps a serial open error in its session category
func classify(err error) error {
	switch {
	case errors.Is(err, serial.ErrDeviceInUse):
		return fmt.Errorf("%w: %w", session.ErrPortAlreadyOpen, err)
	case errors.Is(err, serial.ErrInvalidBaudRate), errors.Is(err, serial.ErrInvalidConfig):
		return fmt.Errorf("%w: %w", session.ErrUnsupportedConfiguration, err)
	default:
		return fmt.Errorf("%w: %w", session.ErrTransportUnavailable, err)
	}
}

func (t *Transport) current() (serial.Port, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil, serial.ErrPortClosed
	}
	return t.port, nil
}

// ReadContext reads one chunk. A hang-up surfaces as io.EOF or EIO.
func (t *Transport) ReadContext(ctx context.Context, p []byte) (int, error) {
	port, err := t.current()
	if err != nil {
		return 0, err
	}
	return port.ReadContext(ctx, p)
}

// WriteContext writes p. When ctx ends the write early, whatever is still
// queued in the driver is discarded.
func (t *Transport) WriteContext(ctx context.Context, p []byte) (int, error) {
	port, err := t.current()
	if err != nil {
		return 0, err
	}

	n, err := port.WriteContext(ctx, p)
	if err != nil && ctx.Err() != nil {
		if ferr := port.FlushOutput(); ferr != nil {
			t.logger.Debug("flush after cancelled write failed", "port", t.path, "error", ferr)
		}
	}
	return n, err
}

// NotifyDisconnect watches the device node. If the watch cannot be set up
// the returned channel never fires; the read loop still notices the hang-up.
func (t *Transport) NotifyDisconnect(ctx context.Context) <-chan struct{} {
	removed, err := serial.WatchRemoval(ctx, t.path)
	if err != nil {
		t.logger.Warn("device removal watch unavailable", "port", t.path, "error", err)
		return make(chan struct{})
	}
	return removed
}

// Close closes the port. Calls still in flight return serial.ErrPortClosed.
func (t *Transport) Close() error {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()

	if port == nil {
		return nil
	}
	return port.Close()
}
