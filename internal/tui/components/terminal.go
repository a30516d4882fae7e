package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// DefaultScrollback is how many entries the terminal keeps
const DefaultScrollback = 5000

type Terminal struct {
	viewport   viewport.Model
	formatter  *DataFormatter
	entries    []Entry
	data       []string
	scrollback int
}

func NewTerminal(width, height int) *Terminal {
	vp := viewport.New(width, height)
	return &Terminal{
		viewport:   vp,
		formatter:  NewDataFormatter(false, true),
		scrollback: DefaultScrollback,
	}
}

func (t *Terminal) SetSize(width, height int) {
	if height < 1 {
		height = 1
	}
	t.viewport.Width = width
	t.viewport.Height = height
}

func (t *Terminal) GetViewport() viewport.Model {
	return t.viewport
}

// SetScrollback limits how many entries are kept
func (t *Terminal) SetScrollback(n int) {
	if n > 0 {
		t.scrollback = n
		t.trim()
	}
}

// Add appends an entry. The view follows new output only while it is
// scrolled to the bottom.
func (t *Terminal) Add(e Entry) {
	follow := t.viewport.AtBottom()

	t.entries = append(t.entries, e)
	if t.trim() {
		t.data = t.formatter.FormatEntries(t.entries)
	} else {
		t.data = append(t.data, t.formatter.FormatEntry(e)...)
	}

	t.viewport.SetContent(strings.Join(t.data, "\n"))
	if follow {
		t.viewport.GotoBottom()
	}
}

// trim drops the oldest entries beyond the scrollback and reports whether
// anything was dropped.
func (t *Terminal) trim() bool {
	over := len(t.entries) - t.scrollback
	if over <= 0 {
		return false
	}
	t.entries = append(t.entries[:0], t.entries[over:]...)
	return true
}

// Entries returns the entries currently held
func (t *Terminal) Entries() []Entry {
	return t.entries
}

// Refresh re-renders every entry with the current display mode
func (t *Terminal) Refresh() {
	t.data = t.formatter.FormatEntries(t.entries)
	t.viewport.SetContent(strings.Join(t.data, "\n"))
	t.viewport.GotoBottom()
}

func (t *Terminal) Clear() {
	t.entries = nil
	t.data = nil
	t.viewport.SetContent("")
	t.viewport.GotoTop()
}

func (t *Terminal) ToggleHex() {
	t.formatter.ToggleHex()
	t.Refresh()
}

func (t *Terminal) ToggleTimestamps() {
	t.formatter.ToggleTimestamps()
	t.Refresh()
}

func (t *Terminal) GetDisplayMode() DisplayMode {
	return t.formatter.GetDisplayMode()
}

// Scroll moves the view by n rows, up when n is negative
func (t *Terminal) Scroll(n int) {
	t.viewport.SetYOffset(t.viewport.YOffset + n)
}

func (t *Terminal) GotoTop() {
	t.viewport.GotoTop()
}

func (t *Terminal) GotoBottom() {
	t.viewport.GotoBottom()
}

func (t *Terminal) Update(msg tea.Msg) (viewport.Model, tea.Cmd) {
	// Only pass certain message types to viewport to prevent it from consuming our key bindings
	switch msg.(type) {
	case tea.WindowSizeMsg, tea.MouseMsg:
		var cmd tea.Cmd
		t.viewport, cmd = t.viewport.Update(msg)
		return t.viewport, cmd
	default:
		return t.viewport, nil
	}
}

func (t *Terminal) View() string {
	return t.viewport.View()
}
