// Package fakesink provides a recording session.Sink for tests.
package fakesink

import (
	"strings"
	"sync"
	"time"

	"github.com/allbin/serialmon/session"
)

// Line is one recorded OnLine call
type Line struct {
	Text string
	Kind session.LineKind
}

// Disconnect is one recorded OnDisconnect call
type Disconnect struct {
	Reason session.DisconnectReason
	Cause  error
}

// Sink records everything a session reports. It is safe for concurrent use.
type Sink struct {
	mu          sync.Mutex
	lines       []Line
	states      []session.State
	disconnects []Disconnect
	changed     chan struct{}
}

var (
	_ session.Sink               = (*Sink)(nil)
	_ session.DisconnectObserver = (*Sink)(nil)
)

// New creates an empty sink
func New() *Sink {
	return &Sink{changed: make(chan struct{})}
}

// OnLine implements session.Sink
func (s *Sink) OnLine(text string, kind session.LineKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, Line{Text: text, Kind: kind})
	s.notify()
}

// OnStateChange implements session.Sink
func (s *Sink) OnStateChange(st session.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, st)
	s.notify()
}

// OnDisconnect implements session.DisconnectObserver
func (s *Sink) OnDisconnect(reason session.DisconnectReason, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnects = append(s.disconnects, Disconnect{Reason: reason, Cause: cause})
	s.notify()
}

// notify wakes waiters; mu must be held
func (s *Sink) notify() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// Lines returns a copy of all recorded lines
func (s *Sink) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Line(nil), s.lines...)
}

// Texts returns the text of every line of the given kind
func (s *Sink) Texts(kind session.LineKind) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, l := range s.lines {
		if l.Kind == kind {
			out = append(out, l.Text)
		}
	}
	return out
}

// States returns every reported state, in order
func (s *Sink) States() []session.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]session.State(nil), s.states...)
}

// Disconnects returns every reported disconnect, in order
func (s *Sink) Disconnects() []Disconnect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Disconnect(nil), s.disconnects...)
}

// HasLine reports whether a line of kind containing substr was recorded
func (s *Sink) HasLine(kind session.LineKind, substr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.lines {
		if l.Kind == kind && strings.Contains(l.Text, substr) {
			return true
		}
	}
	return false
}

// WaitFor polls cond each time something is recorded, until it holds or
// timeout passes. It reports whether cond held.
func (s *Sink) WaitFor(cond func(*Sink) bool, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		s.mu.Lock()
		changed := s.changed
		s.mu.Unlock()

		if cond(s) {
			return true
		}
		select {
		case <-changed:
		case <-deadline.C:
			return cond(s)
		}
	}
}

// WaitForDisconnect waits until n disconnects were reported
func (s *Sink) WaitForDisconnect(n int, timeout time.Duration) bool {
	return s.WaitFor(func(s *Sink) bool { return len(s.Disconnects()) >= n }, timeout)
}

// WaitForLines waits until n lines of kind were recorded
func (s *Sink) WaitForLines(kind session.LineKind, n int, timeout time.Duration) bool {
	return s.WaitFor(func(s *Sink) bool { return len(s.Texts(kind)) >= n }, timeout)
}
