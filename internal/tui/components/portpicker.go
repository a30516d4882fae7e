package components

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/evertras/bubble-table/table"

	serial "github.com/allbin/serialmon"
	"github.com/allbin/serialmon/internal/tui/colors"
	"github.com/allbin/serialmon/internal/tui/styles"
)

const (
	columnKeyPath    = "path"
	columnKeyType    = "type"
	columnKeyUSB     = "usb"
	columnKeyProduct = "product"
)

// PortColumns are the columns used wherever ports are shown as a table
func PortColumns() []table.Column {
	return []table.Column{
		table.NewColumn(columnKeyPath, "Port", 22),
		table.NewColumn(columnKeyType, "Type", 26),
		table.NewColumn(columnKeyUSB, "VID:PID", 10),
		table.NewFlexColumn(columnKeyProduct, "Device", 1),
	}
}

// PortRows turns port details into table rows
func PortRows(ports []serial.PortInfo) []table.Row {
	rows := make([]table.Row, 0, len(ports))
	for _, p := range ports {
		usb := ""
		if p.IsUSB() {
			usb = fmt.Sprintf("%s:%s", p.VendorID, p.ProductID)
		}
		product := p.Product
		if p.Manufacturer != "" {
			product = fmt.Sprintf("%s %s", p.Manufacturer, p.Product)
		}
		rows = append(rows, table.NewRow(table.RowData{
			columnKeyPath:    p.Path,
			columnKeyType:    p.Description,
			columnKeyUSB:     usb,
			columnKeyProduct: product,
		}))
	}
	return rows
}

// PortPicker lets the user pick one port out of a list
type PortPicker struct {
	table table.Model
	count int
}

func NewPortPicker(ports []serial.PortInfo, width int) *PortPicker {
	t := table.New(PortColumns()).
		WithRows(PortRows(ports)).
		Focused(true).
		BorderRounded().
		HeaderStyle(lipgloss.NewStyle().Bold(true).Foreground(colors.Mauve)).
		HighlightStyle(lipgloss.NewStyle().Foreground(colors.Text).Background(colors.Surface1)).
		WithPageSize(10)

	p := &PortPicker{table: t, count: len(ports)}
	p.SetWidth(width)
	return p
}

func (p *PortPicker) SetWidth(width int) {
	if width < 60 {
		width = 60
	}
	p.table = p.table.WithTargetWidth(width)
}

// Selected returns the path of the highlighted port
func (p *PortPicker) Selected() string {
	if p.count == 0 {
		return ""
	}
	path, _ := p.table.HighlightedRow().Data[columnKeyPath].(string)
	return path
}

func (p *PortPicker) Update(msg tea.Msg) (*PortPicker, tea.Cmd) {
	var cmd tea.Cmd
	p.table, cmd = p.table.Update(msg)
	return p, cmd
}

func (p *PortPicker) View() string {
	title := styles.PickerTitleStyle.Render("Select a serial port")
	hint := styles.PickerHintStyle.Render("↑/↓ move • enter connect • esc cancel")
	return lipgloss.JoinVertical(lipgloss.Left, title, p.table.View(), hint)
}
