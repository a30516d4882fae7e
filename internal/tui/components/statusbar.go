package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/serialmon/internal/tui/colors"
	"github.com/allbin/serialmon/internal/tui/styles"
	"github.com/allbin/serialmon/session"
)

// ConnectionInfo is the line configuration shown on the right of the bar
type ConnectionInfo struct {
	BaudRate    int
	DataBits    int
	Parity      string
	StopBits    int
	FlowControl string
	Encoding    string
}

// String renders e.g. "115200 8N1"
func (c ConnectionInfo) String() string {
	parity := "N"
	if c.Parity != "" {
		parity = strings.ToUpper(c.Parity[:1])
	}
	s := fmt.Sprintf("%d %d%s%d", c.BaudRate, c.DataBits, parity, c.StopBits)
	if c.FlowControl != "" && c.FlowControl != "none" {
		s += " " + c.FlowControl
	}
	if c.Encoding != "" && c.Encoding != "utf-8" {
		s += " " + c.Encoding
	}
	return s
}

type StatusBar struct {
	portName       string
	state          session.State
	notice         string
	width          int
	connectionInfo ConnectionInfo
}

func NewStatusBar(info ConnectionInfo) *StatusBar {
	return &StatusBar{
		connectionInfo: info,
		portName:       "no port",
	}
}

func (sb *StatusBar) SetWidth(width int) {
	sb.width = width
}

func (sb *StatusBar) SetState(st session.State) {
	sb.state = st
	if st == session.StateConnecting || st == session.StateConnected {
		sb.notice = ""
	}
}

func (sb *StatusBar) State() session.State {
	return sb.state
}

func (sb *StatusBar) SetPort(name string) {
	sb.portName = name
}

// SetNotice shows a short message next to the state, e.g. why the last
// connection ended.
func (sb *StatusBar) SetNotice(notice string) {
	sb.notice = notice
}

func (sb *StatusBar) Notice() string {
	return sb.notice
}

// View renders the status bar
func (sb *StatusBar) View(inputMode, timestamp string) string {
	terminalWidth := sb.width
	if terminalWidth <= 0 {
		terminalWidth = 80
	}

	// Section 1: Mode indicator (like NORMAL in nvim)
	modeStyle := lipgloss.NewStyle().
		Foreground(colors.Base).
		Background(colors.Blue).
		Bold(true).
		Padding(0, 1)
	if inputMode == "INSERT" {
		modeStyle = modeStyle.Background(colors.Green)
	}
	mode := modeStyle.Render(inputMode)

	// Section 2: Port name
	port := lipgloss.NewStyle().
		Foreground(colors.Mauve).
		Bold(true).
		Padding(0, 1).
		Render(sb.portName)

	// Section 3: Session state
	stateStyle, glyph := styles.StateStyle(sb.state)
	state := stateStyle.Render(fmt.Sprintf("%s %s", glyph, sb.state))

	var notice string
	if sb.notice != "" {
		notice = lipgloss.NewStyle().
			Foreground(colors.Peach).
			Padding(0, 1).
			Render(sb.notice)
	}

	// Section 4: Line configuration
	connectionDetails := lipgloss.NewStyle().
		Foreground(colors.Subtext0).
		Padding(0, 1).
		Render("⚡ " + sb.connectionInfo.String())

	// Section 5: Clock
	clock := lipgloss.NewStyle().
		Foreground(colors.Subtext1).
		Padding(0, 1).
		Render(timestamp)

	divider := lipgloss.NewStyle().
		Foreground(colors.Surface2).
		Padding(0, 1).
		Render("│")

	leftSide := lipgloss.JoinHorizontal(lipgloss.Left, mode, port, state, notice, divider)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Left, connectionDetails, divider, clock)

	spacerWidth := terminalWidth - lipgloss.Width(leftSide) - lipgloss.Width(rightSide)
	if spacerWidth < 1 {
		spacerWidth = 1
	}
	spacer := lipgloss.NewStyle().Width(spacerWidth).Render("")

	statusBarStyle := lipgloss.NewStyle().
		Foreground(colors.Text).
		Background(colors.Surface0).
		Width(terminalWidth)

	return statusBarStyle.Render(lipgloss.JoinHorizontal(lipgloss.Left, leftSide, spacer, rightSide))
}
