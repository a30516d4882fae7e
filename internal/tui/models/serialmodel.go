package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/serialmon/internal/tui/components"
	"github.com/allbin/serialmon/internal/tui/keys"
	"github.com/allbin/serialmon/internal/tui/styles"
	"github.com/allbin/serialmon/session"
)

// InputMode represents the current input mode (vim-like)
type InputMode int

const (
	InputModeNormal InputMode = iota
	InputModeInsert
)

func (m InputMode) String() string {
	switch m {
	case InputModeNormal:
		return "NORMAL"
	case InputModeInsert:
		return "INSERT"
	default:
		return "NORMAL"
	}
}

// Session is the part of session.Session the console drives
type Session interface {
	Connect(ctx context.Context, rate int) error
	Send(ctx context.Context, command string) error
	Disconnect()
	State() session.State
	Port() string
}

// DefaultSendTimeout bounds a single command write
const DefaultSendTimeout = 5 * time.Second

// Options configures a SerialModel
type Options struct {
	Rate        int
	Port        string // label shown before a port is selected
	Info        components.ConnectionInfo
	SendTimeout time.Duration
	Scrollback  int
	AutoConnect bool
}

type connectDoneMsg struct {
	err error
}

type sendDoneMsg struct {
	command string
	err     error
}

// SerialModel is the interactive console: a scrolling view of session
// lines, a command input and a status bar.
type SerialModel struct {
	session Session
	bridge  *Bridge
	opts    Options

	terminal  *components.Terminal
	statusBar *components.StatusBar
	input     *components.Input
	picker    *components.PortPicker
	pick      *PickPortMsg
	help      help.Model
	keys      keys.ConnectKeys

	inputMode  InputMode
	ready      bool
	width      int
	connecting bool

	// Commands waiting to be written, oldest first. Only one is in flight.
	sendQueue []string
	sending   bool
}

func NewSerialModel(s Session, bridge *Bridge, opts Options) *SerialModel {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}

	m := &SerialModel{
		session:   s,
		bridge:    bridge,
		opts:      opts,
		terminal:  components.NewTerminal(0, 0), // sized by WindowSizeMsg
		statusBar: components.NewStatusBar(opts.Info),
		input:     components.NewInput("Type a command and press Enter to send..."),
		help:      help.New(),
		keys:      keys.NewConnectKeys(),
		inputMode: InputModeNormal,
	}
	if opts.Scrollback > 0 {
		m.terminal.SetScrollback(opts.Scrollback)
	}
	if opts.Port != "" {
		m.statusBar.SetPort(opts.Port)
	}
	m.statusBar.SetState(s.State())
	return m
}

func (m *SerialModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.bridge.Wait()}
	if m.opts.AutoConnect {
		cmds = append(cmds, m.connect())
	}
	return tea.Batch(cmds...)
}

func (m *SerialModel) GetInputMode() InputMode {
	return m.inputMode
}

func (m *SerialModel) IsInInsertMode() bool {
	return m.inputMode == InputModeInsert
}

func (m *SerialModel) SetInputMode(mode InputMode) {
	m.inputMode = mode
	if mode == InputModeInsert {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

// Entries returns what the console currently shows
func (m *SerialModel) Entries() []components.Entry {
	return m.terminal.Entries()
}

// Picking reports whether the port picker is open
func (m *SerialModel) Picking() bool {
	return m.picker != nil
}

// Pending returns the commands queued behind the one being written
func (m *SerialModel) Pending() []string {
	return m.sendQueue
}

// connect starts a connect attempt unless one is already running
func (m *SerialModel) connect() tea.Cmd {
	if m.connecting {
		return nil
	}
	m.connecting = true
	s, rate := m.session, m.opts.Rate
	return func() tea.Msg {
		return connectDoneMsg{err: s.Connect(context.Background(), rate)}
	}
}

func (m *SerialModel) disconnect() tea.Cmd {
	s := m.session
	return func() tea.Msg {
		s.Disconnect()
		return nil
	}
}

func (m *SerialModel) quit() tea.Cmd {
	if m.pick != nil {
		m.closePicker("")
	}
	s, b := m.session, m.bridge
	return func() tea.Msg {
		s.Disconnect()
		b.Close()
		return tea.Quit()
	}
}

// enqueue adds a command and starts writing it if nothing is in flight
func (m *SerialModel) enqueue(command string) tea.Cmd {
	m.sendQueue = append(m.sendQueue, command)
	return m.dispatch()
}

func (m *SerialModel) dispatch() tea.Cmd {
	if m.sending || len(m.sendQueue) == 0 {
		return nil
	}
	command := m.sendQueue[0]
	m.sendQueue = m.sendQueue[1:]
	m.sending = true

	s, timeout := m.session, m.opts.SendTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return sendDoneMsg{command: command, err: s.Send(ctx, command)}
	}
}

func (m *SerialModel) note(text string, kind session.LineKind) {
	m.terminal.Add(components.Entry{Timestamp: time.Now(), Text: text, Kind: kind})
}

func (m *SerialModel) openPicker(msg PickPortMsg) {
	if m.pick != nil {
		m.pick.Reply("")
	}
	m.pick = &msg
	m.picker = components.NewPortPicker(msg.Ports, m.width)
}

func (m *SerialModel) closePicker(path string) {
	m.pick.Reply(path)
	m.pick = nil
	m.picker = nil
	if path != "" {
		m.statusBar.SetPort(path)
	}
}

// handleEvent applies one session event
func (m *SerialModel) handleEvent(msg tea.Msg) {
	switch msg := msg.(type) {
	case LineMsg:
		m.terminal.Add(msg.Entry)

	case StateMsg:
		m.statusBar.SetState(msg.State)
		if msg.State == session.StateDisconnected && m.pick != nil {
			// the attempt that asked was cancelled
			m.closePicker("")
		}
		if port := m.session.Port(); port != "" {
			m.statusBar.SetPort(port)
		}

	case DisconnectMsg:
		if msg.Reason != session.ReasonUserRequested {
			m.statusBar.SetNotice(msg.Reason.String())
		}

	case PickPortMsg:
		m.openPicker(msg)
	}
}

func (m *SerialModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// Input area (with border), status bar and the content top border
		inputHeight := 3
		statusBarHeight := 1
		borderHeight := 1
		verticalMarginHeight := inputHeight + statusBarHeight + borderHeight

		m.width = msg.Width
		m.terminal.SetSize(msg.Width, msg.Height-verticalMarginHeight)
		m.input.SetWidth(msg.Width)
		m.statusBar.SetWidth(msg.Width)
		m.help.Width = msg.Width
		if m.picker != nil {
			m.picker.SetWidth(msg.Width)
		}
		m.ready = true

	case EventsMsg:
		for _, ev := range msg {
			m.handleEvent(ev)
		}
		return m, m.bridge.Wait()

	case connectDoneMsg:
		m.connecting = false
		return m, nil

	case sendDoneMsg:
		m.sending = false
		if errors.Is(msg.err, context.DeadlineExceeded) {
			m.note(fmt.Sprintf("Send of %q timed out", msg.command), session.KindError)
		}
		return m, m.dispatch()

	case tea.KeyMsg:
		if m.picker != nil {
			return m, m.updatePicker(msg)
		}
		if m.IsInInsertMode() {
			if cmd, handled := m.updateInsert(msg); handled {
				return m, cmd
			}
		} else {
			return m, m.updateNormal(msg)
		}
	}

	// Update components (only update input in insert mode)
	var cmd tea.Cmd
	if m.IsInInsertMode() {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	_, cmd = m.terminal.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *SerialModel) updatePicker(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Enter):
		m.closePicker(m.picker.Selected())
		return nil
	case key.Matches(msg, m.keys.Escape), msg.String() == "q":
		m.closePicker("")
		return nil
	case msg.Type == tea.KeyCtrlC:
		return m.quit()
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	return cmd
}

// updateInsert handles the keys insert mode reserves. Everything else goes
// to the text input.
func (m *SerialModel) updateInsert(msg tea.KeyMsg) (tea.Cmd, bool) {
	// Only bindings without printable keys apply here
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m.quit(), true
	case key.Matches(msg, m.keys.Escape):
		m.SetInputMode(InputModeNormal)
		return nil, true
	case key.Matches(msg, m.keys.Enter):
		command := strings.TrimSpace(m.input.Value())
		m.input.SetValue("")
		if command == "" {
			return nil, true
		}
		m.input.AddToHistory(command)
		m.terminal.GotoBottom()
		return m.enqueue(command), true
	case msg.Type == tea.KeyUp:
		m.input.NavigateHistoryUp()
		return nil, true
	case msg.Type == tea.KeyDown:
		m.input.NavigateHistoryDown()
		return nil, true
	}
	return nil, false
}

func (m *SerialModel) updateNormal(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.InsertMode):
		m.SetInputMode(InputModeInsert)

	case key.Matches(msg, m.keys.Connect):
		return m.connect()

	case key.Matches(msg, m.keys.Disconnect):
		return m.disconnect()

	case key.Matches(msg, m.keys.Clear):
		m.terminal.Clear()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.ToggleHex):
		m.terminal.ToggleHex()

	case key.Matches(msg, m.keys.ToggleTimestamps):
		m.terminal.ToggleTimestamps()

	case key.Matches(msg, m.keys.Up):
		m.terminal.Scroll(-1)

	case key.Matches(msg, m.keys.Down):
		m.terminal.Scroll(1)

	case key.Matches(msg, m.keys.GotoTop):
		m.terminal.GotoTop()

	case key.Matches(msg, m.keys.GotoBottom):
		m.terminal.GotoBottom()
	}
	return nil
}

func (m *SerialModel) View() string {
	var content string
	switch {
	case !m.ready:
		content = "Initializing..."
	case m.picker != nil:
		content = m.picker.View()
	case m.help.ShowAll:
		content = m.help.View(m.keys)
	default:
		content = m.terminal.View()
	}

	connected := m.statusBar.State() == session.StateConnected
	input := m.input.ViewWithMode(m.IsInInsertMode(), connected)

	timestamp := time.Now().Format("15:04:05")
	statusBar := m.statusBar.View(m.GetInputMode().String(), timestamp)

	contentWithBorder := styles.ContentBorderStyle.Render(content)

	return lipgloss.JoinVertical(
		lipgloss.Left,
		contentWithBorder,
		input,
		statusBar,
	)
}
