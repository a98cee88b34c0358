// Package ui holds the lipgloss palette, styles and key bindings shared by
// the audit viewer and the command line summary.
package ui

import (
	"fmt"
	"strings"
	"txmanager/pkg/log"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	PrimaryColor   = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7C3AED"}
	SecondaryColor = lipgloss.AdaptiveColor{Light: "#EE6FF8", Dark: "#06B6D4"}
	SuccessColor   = lipgloss.AdaptiveColor{Light: "#02BA84", Dark: "#10B981"}
	WarningColor   = lipgloss.AdaptiveColor{Light: "#FF8C00", Dark: "#F59E0B"}
	ErrorColor     = lipgloss.AdaptiveColor{Light: "#FF5F56", Dark: "#EF4444"}
	MutedColor     = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#94A3B8"}
	FgColor        = lipgloss.AdaptiveColor{Light: "#1E1E2E", Dark: "#CDD6F4"}
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true).
			Padding(0, 1).
			MarginBottom(1)

	HeaderStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Bold(true).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(PrimaryColor).
			Padding(0, 1)

	SelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(PrimaryColor).
				Bold(true).
				Padding(0, 1)

	ItemStyle = lipgloss.NewStyle().
			Foreground(FgColor).
			Padding(0, 1)

	TableHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(SecondaryColor).
				Bold(true).
				Padding(0, 1)

	CellStyle = lipgloss.NewStyle().
			Foreground(FgColor).
			Padding(0, 1)

	DetailStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(PrimaryColor).
			Padding(1, 2).
			MarginTop(1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Bold(true)

	ValueStyle = lipgloss.NewStyle().
			Foreground(FgColor)

	HelpStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			MarginTop(1).
			Padding(0, 1)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(PrimaryColor).
			Padding(0, 1).
			MarginTop(1)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true).
			Padding(1)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true).
			Padding(0, 1)
)

type CommonKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Back   key.Binding
	Filter key.Binding
	Quit   key.Binding
}

var CommonKeys = CommonKeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "move up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "move down"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter", " "),
		key.WithHelp("enter/space", "select"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc", "backspace"),
		key.WithHelp("esc", "back"),
	),
	Filter: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "cycle filter"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RecordBadge renders the icon and name of an audit record type.
func RecordBadge(r *log.LogRecord) string {
	var color lipgloss.AdaptiveColor
	var icon, name string

	switch r.Type {
	case log.HeaderRecord:
		color, icon, name = MutedColor, "#", "RUN     "
	case log.BeginRecord:
		color, icon, name = SuccessColor, "▶", "BEGIN   "
	case log.ReadRecord:
		color, icon, name = SecondaryColor, "◇", "READ    "
	case log.WriteRecord:
		color, icon, name = PrimaryColor, "◆", "WRITE   "
	case log.CommitRecord:
		color, icon, name = SuccessColor, "✓", "COMMIT  "
	case log.AbortRecord:
		color, icon, name = ErrorColor, "✗", "ABORT   "
	default:
		color, icon, name = MutedColor, "?", "UNKNOWN "
	}

	if (r.Type == log.ReadRecord || r.Type == log.WriteRecord) && !r.Granted {
		color, icon = WarningColor, "⏸"
	}
	return lipgloss.NewStyle().Foreground(color).Render(icon + " " + name)
}

// StatusBadge colors a transaction status letter.
func StatusBadge(letter byte) string {
	color := MutedColor
	switch letter {
	case 'P':
		color = SuccessColor
	case 'W':
		color = WarningColor
	case 'C':
		color = PrimaryColor
	case 'A':
		color = ErrorColor
	}
	return lipgloss.NewStyle().Foreground(color).Bold(true).Render(string(letter))
}

func RenderError(err error) string {
	return ErrorStyle.Render(lipgloss.JoinVertical(
		lipgloss.Left,
		"Error: "+err.Error(),
		"",
		"Press q to quit.",
	))
}

func RenderTitle(icon, title string) string {
	return TitleStyle.Render(icon + "  " + title)
}

func RenderHeaderWithCount(text string, count int) string {
	if count >= 0 {
		return HeaderStyle.Render(fmt.Sprintf(" %s (%d) ", text, count))
	}
	return HeaderStyle.Render(" " + text + " ")
}

// RenderTable renders rows under headers. Column widths grow to the widest
// cell. selectedRow < 0 highlights nothing.
func RenderTable(headers []string, data [][]string, selectedRow int) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range data {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder

	cells := make([]string, len(headers))
	for i, h := range headers {
		cells[i] = TableHeaderStyle.Render(PadString(h, widths[i]))
	}
	b.WriteString(strings.Join(cells, " ") + "\n")

	separator := make([]string, len(widths))
	for i, w := range widths {
		separator[i] = strings.Repeat("─", w+2)
	}
	b.WriteString(lipgloss.NewStyle().Foreground(MutedColor).Render(strings.Join(separator, "┼")) + "\n")

	for rowIdx, row := range data {
		cells := make([]string, 0, len(row))
		for colIdx, cell := range row {
			if colIdx >= len(widths) {
				break
			}
			content := PadString(cell, widths[colIdx])
			if rowIdx == selectedRow {
				cells = append(cells, SelectedItemStyle.Render(content))
			} else {
				cells = append(cells, CellStyle.Render(content))
			}
		}
		b.WriteString(strings.Join(cells, " ") + "\n")
	}

	return b.String()
}

// PadString pads a string to the specified width with spaces
func PadString(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// TruncateString truncates a string to maxWidth with ellipsis
func TruncateString(s string, maxWidth int) string {
	if len(s) <= maxWidth {
		return s
	}
	if maxWidth < 3 {
		return s[:maxWidth]
	}
	return s[:maxWidth-3] + "..."
}
