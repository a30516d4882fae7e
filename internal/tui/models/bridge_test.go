package models

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serial "github.com/allbin/serialmon"
	"github.com/allbin/serialmon/session"
)

// await runs cmd on its own goroutine and returns its message
func await(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	require.NotNil(t, cmd)

	out := make(chan tea.Msg, 1)
	go func() { out <- cmd() }()
	select {
	case msg := <-out:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("command did not return")
		return nil
	}
}

func TestBridgeQueuesInOrder(t *testing.T) {
	b := NewBridge()
	defer b.Close()

	b.OnStateChange(session.StateConnecting)
	b.OnLine("hello", session.KindIncoming)
	b.OnDisconnect(session.ReasonReadFault, session.ErrReadFault)

	msg := await(t, b.Wait())
	events, ok := msg.(EventsMsg)
	require.True(t, ok, "got %T", msg)
	require.Len(t, events, 3)

	assert.Equal(t, StateMsg{State: session.StateConnecting}, events[0])
	line := events[1].(LineMsg)
	assert.Equal(t, "hello", line.Entry.Text)
	assert.Equal(t, session.KindIncoming, line.Entry.Kind)
	assert.False(t, line.Entry.Timestamp.IsZero())
	assert.Equal(t, session.ReasonReadFault, events[2].(DisconnectMsg).Reason)
}

func TestBridgeWaitBlocksUntilEvent(t *testing.T) {
	b := NewBridge()
	defer b.Close()

	out := make(chan tea.Msg, 1)
	go func() { out <- b.Wait()() }()

	select {
	case <-out:
		t.Fatal("Wait returned without events")
	case <-time.After(50 * time.Millisecond):
	}

	b.OnLine("late", session.KindInfo)
	select {
	case msg := <-out:
		assert.Len(t, msg.(EventsMsg), 1)
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not wake up")
	}
}

func TestBridgeCloseReleasesWait(t *testing.T) {
	b := NewBridge()
	b.Close()
	b.Close()

	assert.Nil(t, await(t, b.Wait()))
}

func TestBridgeChoose(t *testing.T) {
	ports := []serial.PortInfo{{Name: "ttyUSB0", Path: "/dev/ttyUSB0"}, {Name: "ttyUSB1", Path: "/dev/ttyUSB1"}}

	t.Run("reply", func(t *testing.T) {
		b := NewBridge()
		defer b.Close()

		result := make(chan string, 1)
		go func() {
			path, _ := b.Choose(context.Background(), ports)
			result <- path
		}()

		events := await(t, b.Wait()).(EventsMsg)
		pick := events[0].(PickPortMsg)
		assert.Equal(t, ports, pick.Ports)
		pick.Reply("/dev/ttyUSB1")
		pick.Reply("/dev/ttyUSB0") // ignored

		select {
		case path := <-result:
			assert.Equal(t, "/dev/ttyUSB1", path)
		case <-time.After(2 * time.Second):
			t.Fatal("Choose did not return")
		}
	})

	t.Run("empty reply cancels", func(t *testing.T) {
		b := NewBridge()
		defer b.Close()

		errc := make(chan error, 1)
		go func() {
			_, err := b.Choose(context.Background(), ports)
			errc <- err
		}()

		events := await(t, b.Wait()).(EventsMsg)
		events[0].(PickPortMsg).Reply("")
		assert.ErrorIs(t, <-errc, session.ErrPortSelectionCancelled)
	})

	t.Run("context", func(t *testing.T) {
		b := NewBridge()
		defer b.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := b.Choose(ctx, ports)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("closed", func(t *testing.T) {
		b := NewBridge()
		b.Close()
		_, err := b.Choose(context.Background(), ports)
		assert.ErrorIs(t, err, session.ErrPortSelectionCancelled)
	})
}
