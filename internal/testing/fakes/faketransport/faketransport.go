// Package faketransport provides scriptable session.Transport and
// session.Provider implementations for testing.
package faketransport

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/allbin/serialmon/session"
)

type readResult struct {
	data []byte
	err  error
}

// Transport is a fake transport. Incoming data is queued with Push, read
// failures with Fail or EOF; everything written is captured.
type Transport struct {
	name string

	mu          sync.Mutex
	opened      bool
	openCfg     session.OpenConfig
	openErr     error
	openBlock   chan struct{}
	closeCount  int
	closeErr    error
	writes      [][]byte
	written     bytes.Buffer
	writeErr    error
	writeDelay  time.Duration
	writeBlock  chan struct{}
	inFlight    int
	overlapped  bool
	subscribed  int
	unsubscribe int

	incoming chan readResult
	removed  chan struct{}
	closed   chan struct{}
}

var _ session.Transport = (*Transport)(nil)

// New creates a fake transport with the given port name
func New(name string) *Transport {
	return &Transport{
		name:     name,
		incoming: make(chan readResult, 64),
		removed:  make(chan struct{}),
		closed:   make(chan struct{}),
	}
}

// SetOpenError makes Open fail with err
func (t *Transport) SetOpenError(err error) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.openErr = err
	return t
}

// BlockOpen makes Open wait until the returned function is called or its
// context is done.
func (t *Transport) BlockOpen() (release func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan struct{})
	t.openBlock = ch
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// SetCloseError makes Close report err (after closing)
func (t *Transport) SetCloseError(err error) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeErr = err
	return t
}

// SetWriteError makes every following write fail with err
func (t *Transport) SetWriteError(err error) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeErr = err
	return t
}

// SetWriteDelay makes each write take d, to widen race windows
func (t *Transport) SetWriteDelay(d time.Duration) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writeDelay = d
	return t
}

// BlockWrites makes writes wait until the returned function is called or
// their context is done.
func (t *Transport) BlockWrites() (release func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan struct{})
	t.writeBlock = ch
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Push queues a chunk for the read loop
func (t *Transport) Push(data string) {
	t.incoming <- readResult{data: []byte(data)}
}

// PushBytes queues a raw chunk for the read loop
func (t *Transport) PushBytes(data []byte) {
	t.incoming <- readResult{data: append([]byte(nil), data...)}
}

// Fail makes the next read return err
func (t *Transport) Fail(err error) {
	t.incoming <- readResult{err: err}
}

// EOF makes the next read report end of stream
func (t *Transport) EOF() {
	t.Fail(io.EOF)
}

// Remove simulates the device being unplugged
func (t *Transport) Remove() {
	close(t.removed)
}

// Name implements session.Transport
func (t *Transport) Name() string {
	return t.name
}

// Open implements session.Transport
func (t *Transport) Open(ctx context.Context, cfg session.OpenConfig) error {
	t.mu.Lock()
	block := t.openBlock
	t.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.openErr != nil {
		return t.openErr
	}
	t.opened = true
	t.openCfg = cfg
	return nil
}

// ReadContext implements session.Transport
func (t *Transport) ReadContext(ctx context.Context, p []byte) (int, error) {
	select {
	case r := <-t.incoming:
		if r.err != nil {
			return 0, r.err
		}
		return copy(p, r.data), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-t.closed:
		return 0, io.ErrClosedPipe
	}
}

// WriteContext implements session.Transport
func (t *Transport) WriteContext(ctx context.Context, p []byte) (int, error) {
	t.mu.Lock()
	t.inFlight++
	if t.inFlight > 1 {
		t.overlapped = true
	}
	delay, block, werr := t.writeDelay, t.writeBlock, t.writeErr
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.inFlight--
		t.mu.Unlock()
	}()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	if werr != nil {
		return 0, werr
	}

	// Write in two halves so interleaving writers would be visible
	half := len(p) / 2
	t.record(p[:half])
	if delay > 0 {
		time.Sleep(delay)
	}
	t.record(p[half:])

	t.mu.Lock()
	t.writes = append(t.writes, append([]byte(nil), p...))
	t.mu.Unlock()
	return len(p), nil
}

func (t *Transport) record(p []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.written.Write(p)
}

// NotifyDisconnect implements session.Transport
func (t *Transport) NotifyDisconnect(ctx context.Context) <-chan struct{} {
	t.mu.Lock()
	t.subscribed++
	t.mu.Unlock()

	out := make(chan struct{})
	go func() {
		select {
		case <-t.removed:
			close(out)
		case <-ctx.Done():
			t.mu.Lock()
			t.unsubscribe++
			t.mu.Unlock()
		}
	}()
	return out
}

// Close implements session.Transport
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeCount++
	if t.closeCount == 1 {
		close(t.closed)
	}
	return t.closeErr
}

// Opened reports whether Open succeeded, and with which config
func (t *Transport) Opened() (bool, session.OpenConfig) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opened, t.openCfg
}

// CloseCount returns how many times Close was called
func (t *Transport) CloseCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeCount
}

// Written returns every byte written, in wire order
func (t *Transport) Written() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.written.String()
}

// Writes returns each completed write call
func (t *Transport) Writes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.writes))
	for i, w := range t.writes {
		out[i] = string(w)
	}
	return out
}

// Overlapped reports whether two writes were ever in flight at once
func (t *Transport) Overlapped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.overlapped
}

// Subscriptions returns how many disconnect subscriptions were registered
// and how many of them were released.
func (t *Transport) Subscriptions() (registered, released int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.subscribed, t.unsubscribe
}

// Provider hands out queued transports
type Provider struct {
	mu         sync.Mutex
	checkErr   error
	queue      []*Transport
	requestErr error
	requests   int
	block      chan struct{}
}

var _ session.Provider = (*Provider)(nil)

// NewProvider creates a provider that returns the given transports in order
func NewProvider(transports ...*Transport) *Provider {
	return &Provider{queue: transports}
}

// Add queues more transports
func (p *Provider) Add(transports ...*Transport) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, transports...)
	return p
}

// SetCheckError makes Check report err
func (p *Provider) SetCheckError(err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkErr = err
	return p
}

// SetRequestError makes RequestPort fail with err
func (p *Provider) SetRequestError(err error) *Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requestErr = err
	return p
}

// BlockRequests makes RequestPort wait for release or its context
func (p *Provider) BlockRequests() (release func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan struct{})
	p.block = ch
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Requests returns how many times RequestPort was called
func (p *Provider) Requests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests
}

// Check implements session.Provider
func (p *Provider) Check() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checkErr
}

// RequestPort implements session.Provider
func (p *Provider) RequestPort(ctx context.Context) (session.Transport, error) {
	p.mu.Lock()
	p.requests++
	block := p.block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.requestErr != nil {
		return nil, p.requestErr
	}
	if len(p.queue) == 0 {
		return nil, session.ErrPortSelectionCancelled
	}
	t := p.queue[0]
	p.queue = p.queue[1:]
	return t, nil
}
