package models

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	serial "github.com/allbin/serialmon"
	"github.com/allbin/serialmon/internal/tui/components"
	"github.com/allbin/serialmon/session"
)

// LineMsg carries one line reported by the session
type LineMsg struct {
	Entry components.Entry
}

// StateMsg reports a session state change
type StateMsg struct {
	State session.State
}

// DisconnectMsg reports a completed teardown
type DisconnectMsg struct {
	Reason session.DisconnectReason
	Cause  error
}

// PickPortMsg asks the user to pick one of several ports. Reply must be
// called exactly once; an empty path cancels the selection.
type PickPortMsg struct {
	Ports []serial.PortInfo
	reply chan string
}

func (m PickPortMsg) Reply(path string) {
	select {
	case m.reply <- path:
	default:
	}
}

// EventsMsg is a batch of queued session events, oldest first
type EventsMsg []tea.Msg

// Bridge feeds session callbacks into a bubbletea program. Callbacks only
// append to a queue, so the session is never blocked by the UI; the program
// drains the queue through Wait.
type Bridge struct {
	mu    sync.Mutex
	queue []tea.Msg
	ready chan struct{}

	done      chan struct{}
	closeOnce sync.Once

	now func() time.Time
}

func NewBridge() *Bridge {
	return &Bridge{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
		now:   time.Now,
	}
}

func (b *Bridge) push(msg tea.Msg) {
	b.mu.Lock()
	b.queue = append(b.queue, msg)
	b.mu.Unlock()

	select {
	case b.ready <- struct{}{}:
	default:
	}
}

func (b *Bridge) OnLine(text string, kind session.LineKind) {
	b.push(LineMsg{Entry: components.Entry{Timestamp: b.now(), Text: text, Kind: kind}})
}

func (b *Bridge) OnStateChange(state session.State) {
	b.push(StateMsg{State: state})
}

func (b *Bridge) OnDisconnect(reason session.DisconnectReason, cause error) {
	b.push(DisconnectMsg{Reason: reason, Cause: cause})
}

// Choose asks the program to show the port picker and waits for the answer.
// Its signature matches device.Chooser.
func (b *Bridge) Choose(ctx context.Context, ports []serial.PortInfo) (string, error) {
	reply := make(chan string, 1)
	b.push(PickPortMsg{Ports: ports, reply: reply})

	select {
	case path := <-reply:
		if path == "" {
			return "", session.ErrPortSelectionCancelled
		}
		return path, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-b.done:
		return "", session.ErrPortSelectionCancelled
	}
}

// Wait returns a command that blocks until events are queued and delivers
// them as one EventsMsg. It yields nothing once the bridge is closed.
func (b *Bridge) Wait() tea.Cmd {
	return func() tea.Msg {
		for {
			b.mu.Lock()
			if len(b.queue) > 0 {
				msgs := b.queue
				b.queue = nil
				b.mu.Unlock()
				return EventsMsg(msgs)
			}
			b.mu.Unlock()

			select {
			case <-b.ready:
			case <-b.done:
				return nil
			}
		}
	}
}

// Close releases pending Wait and Choose calls
func (b *Bridge) Close() {
	b.closeOnce.Do(func() { close(b.done) })
}
