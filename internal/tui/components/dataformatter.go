package components

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/lipgloss"

	"github.com/allbin/serialmon/internal/tui/colors"
	"github.com/allbin/serialmon/session"
)

// Entry is one line of console output
type Entry struct {
	Timestamp time.Time
	Text      string
	Kind      session.LineKind
}

type DisplayMode struct {
	ShowHex        bool
	ShowTimestamps bool
}

type DataFormatter struct {
	mode DisplayMode
}

func NewDataFormatter(showHex, showTimestamps bool) *DataFormatter {
	return &DataFormatter{
		mode: DisplayMode{
			ShowHex:        showHex,
			ShowTimestamps: showTimestamps,
		},
	}
}

func (df *DataFormatter) GetDisplayMode() DisplayMode {
	return df.mode
}

func (df *DataFormatter) ToggleHex() {
	df.mode.ShowHex = !df.mode.ShowHex
}

func (df *DataFormatter) ToggleTimestamps() {
	df.mode.ShowTimestamps = !df.mode.ShowTimestamps
}

// DisplayRows splits a line for display. Carriage returns, alone or before a
// newline, start a new row; a trailing one is dropped. Other control
// characters are shown as dots.
func DisplayRows(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")

	rows := strings.Split(text, "\n")
	for i, row := range rows {
		rows[i] = strings.Map(func(r rune) rune {
			if r != '\t' && unicode.IsControl(r) {
				return '.'
			}
			return r
		}, row)
	}
	return rows
}

func indicator(kind session.LineKind) string {
	var color lipgloss.Color
	var text string

	switch kind {
	case session.KindIncoming:
		color, text = colors.Incoming, "↙ RX"
	case session.KindOutgoing:
		color, text = colors.Outgoing, "↗ TX"
	case session.KindError:
		color, text = colors.Failure, "✗"
	case session.KindSuccess:
		color, text = colors.Success, "✓"
	default:
		color, text = colors.Notice, "•"
	}

	return lipgloss.NewStyle().
		Foreground(color).
		Bold(true).
		Render(text)
}

// FormatEntry renders an entry as one or more terminal rows
func (df *DataFormatter) FormatEntry(e Entry) []string {
	var prefix []string
	if df.mode.ShowTimestamps {
		prefix = append(prefix, lipgloss.NewStyle().
			Foreground(colors.Subtext0).
			Render(fmt.Sprintf("[%s]", e.Timestamp.Format("15:04:05.000"))))
	}
	prefix = append(prefix, indicator(e.Kind))
	head := strings.Join(prefix, " ") + " "

	isData := e.Kind == session.KindIncoming || e.Kind == session.KindOutgoing

	var rows []string
	if isData && df.mode.ShowHex {
		rows = []string{fmt.Sprintf("HEX: % X", []byte(e.Text))}
	} else {
		rows = DisplayRows(e.Text)
	}

	textStyle := lipgloss.NewStyle()
	switch e.Kind {
	case session.KindError:
		textStyle = textStyle.Foreground(colors.Failure)
	case session.KindSuccess:
		textStyle = textStyle.Foreground(colors.Success)
	case session.KindInfo:
		textStyle = textStyle.Foreground(colors.Subtext1)
	}

	pad := strings.Repeat(" ", lipgloss.Width(head))
	out := make([]string, len(rows))
	for i, row := range rows {
		lead := pad
		if i == 0 {
			lead = head
		}
		out[i] = lead + textStyle.Render(row)
	}
	return out
}

func (df *DataFormatter) FormatEntries(entries []Entry) []string {
	var formatted []string
	for _, e := range entries {
		formatted = append(formatted, df.FormatEntry(e)...)
	}
	return formatted
}
