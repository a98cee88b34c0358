package main

import (
	"fmt"
	"os"
	"strings"
	"txmanager/pkg/debug/ui"
	"txmanager/pkg/log"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Back   key.Binding
	Filter key.Binding
	Quit   key.Binding
}

var keys = keyMap{
	Up:     ui.CommonKeys.Up,
	Down:   ui.CommonKeys.Down,
	Select: ui.CommonKeys.Select,
	Back:   ui.CommonKeys.Back,
	Filter: ui.CommonKeys.Filter,
	Quit:   ui.CommonKeys.Quit,
}

type filter int

const (
	filterAll filter = iota
	filterBlocked
	filterTerminations
)

func (f filter) String() string {
	switch f {
	case filterBlocked:
		return "blocked requests"
	case filterTerminations:
		return "commits and aborts"
	default:
		return "all records"
	}
}

func (f filter) keep(r *log.LogRecord) bool {
	switch f {
	case filterBlocked:
		return (r.Type == log.ReadRecord || r.Type == log.WriteRecord) && !r.Granted
	case filterTerminations:
		return r.Type == log.CommitRecord || r.Type == log.AbortRecord
	default:
		return true
	}
}

type model struct {
	records    []*log.LogRecord
	visible    []*log.LogRecord
	filter     filter
	cursor     int
	selected   *log.LogRecord
	viewport   viewport.Model
	width      int
	height     int
	detailMode bool
	loaded     bool
	err        error
	logPath    string
}

func initialModel(logPath string) model {
	return model{logPath: logPath}
}

func (m model) Init() tea.Cmd {
	return loadRecords(m.logPath)
}

type recordsLoadedMsg struct {
	records []*log.LogRecord
	err     error
}

func loadRecords(logPath string) tea.Cmd {
	return func() tea.Msg {
		reader, err := log.NewLogReader(logPath)
		if err != nil {
			return recordsLoadedMsg{err: err}
		}
		defer reader.Close()

		records, err := reader.ReadAll()
		if err != nil {
			return recordsLoadedMsg{err: err}
		}
		return recordsLoadedMsg{records: records}
	}
}

func (m *model) applyFilter() {
	visible := make([]*log.LogRecord, 0, len(m.records))
	for _, r := range m.records {
		if m.filter.keep(r) {
			visible = append(visible, r)
		}
	}
	m.visible = visible
	if m.cursor >= len(m.visible) {
		m.cursor = max(0, len(m.visible)-1)
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case recordsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.records = msg.records
		m.loaded = true
		m.applyFilter()
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport = viewport.New(msg.Width-4, msg.Height-10)
		return m, nil

	case tea.KeyMsg:
		if m.err != nil {
			if key.Matches(msg, keys.Quit) {
				return m, tea.Quit
			}
			return m, nil
		}

		if m.detailMode {
			switch {
			case key.Matches(msg, keys.Back):
				m.detailMode = false
				return m, nil
			case key.Matches(msg, keys.Quit):
				return m, tea.Quit
			}
		} else {
			switch {
			case key.Matches(msg, keys.Quit):
				return m, tea.Quit
			case key.Matches(msg, keys.Up):
				if m.cursor > 0 {
					m.cursor--
				}
			case key.Matches(msg, keys.Down):
				if m.cursor < len(m.visible)-1 {
					m.cursor++
				}
			case key.Matches(msg, keys.Filter):
				m.filter = (m.filter + 1) % 3
				m.applyFilter()
			case key.Matches(msg, keys.Select):
				if m.cursor < len(m.visible) {
					m.selected = m.visible[m.cursor]
					m.detailMode = true
					m.viewport.SetContent(m.renderDetailView())
				}
			}
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if m.err != nil {
		return ui.RenderError(m.err)
	}
	if !m.loaded {
		return "Loading audit records...\n"
	}

	var b strings.Builder
	b.WriteString(ui.RenderTitle("🔒", "Transaction Audit Viewer") + "\n\n")

	if m.detailMode {
		b.WriteString(m.viewport.View())
		b.WriteString("\n\n")
		b.WriteString(ui.HelpStyle.Render("Press esc to go back | q to quit"))
	} else {
		b.WriteString(m.renderListView())
	}

	b.WriteString("\n" + m.renderStatusBar())
	return b.String()
}

func (m model) renderListView() string {
	var b strings.Builder

	b.WriteString(ui.RenderHeaderWithCount(m.filter.String(), len(m.visible)) + "\n\n")

	visibleStart := max(0, m.cursor-10)
	visibleEnd := min(len(m.visible), visibleStart+20)
	for i := visibleStart; i < visibleEnd; i++ {
		line := formatRecordLine(m.visible[i], i)
		if i == m.cursor {
			line = ui.SelectedItemStyle.Render("▶ " + line)
		} else {
			line = ui.ItemStyle.Render("  " + line)
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n")
	b.WriteString(ui.HelpStyle.Render("↑/↓: navigate | enter: view details | f: filter | q: quit"))
	return b.String()
}

func formatRecordLine(r *log.LogRecord, index int) string {
	badge := ui.RecordBadge(r)
	if r.Type == log.HeaderRecord {
		return fmt.Sprintf("[%3d] %s │ %s", index+1, badge, r.RunID)
	}

	tid := ui.LabelStyle.Render("TX:") + " " + ui.ValueStyle.Render(r.TID.String())

	var what string
	switch r.Type {
	case log.ReadRecord, log.WriteRecord:
		if r.Granted {
			what = fmt.Sprintf("obj %d → %d %s", r.Object, r.Value, ui.StatusBadge(r.Status))
		} else {
			what = fmt.Sprintf("obj %d waits for %s", r.Object, r.BlockedBy)
		}
	case log.CommitRecord, log.AbortRecord:
		what = fmt.Sprintf("released %d", len(r.Released))
	case log.BeginRecord:
		what = fmt.Sprintf("kind %c", r.Kind)
	}
	return fmt.Sprintf("[%3d] %s │ %s │ %s", index+1, badge, tid, what)
}

func (m model) renderDetailView() string {
	if m.selected == nil {
		return "No record selected"
	}
	r := m.selected

	var b strings.Builder
	b.WriteString(ui.LabelStyle.Render("Record Details") + "\n\n")
	b.WriteString(ui.LabelStyle.Render("Type: ") + ui.RecordBadge(r) + "\n\n")
	b.WriteString(renderKeyValue("LSN", fmt.Sprintf("%d", r.LSN)))

	switch r.Type {
	case log.HeaderRecord:
		b.WriteString(renderKeyValue("Run", r.RunID))
	case log.BeginRecord:
		b.WriteString(renderKeyValue("Transaction", r.TID.String()))
		b.WriteString(renderKeyValue("Kind", string(r.Kind)))
	case log.ReadRecord, log.WriteRecord:
		b.WriteString(renderKeyValue("Transaction", r.TID.String()))
		b.WriteString(renderKeyValue("Object", fmt.Sprintf("%d", r.Object)))
		if r.Granted {
			b.WriteString(renderKeyValue("Value after", fmt.Sprintf("%d", r.Value)))
			b.WriteString(renderKeyValue("Delay", fmt.Sprintf("%d", r.Delay)))
			b.WriteString(renderKeyValue("Status", ui.StatusBadge(r.Status)))
		} else {
			b.WriteString(renderKeyValue("Blocked by", r.BlockedBy.String()))
		}
	case log.CommitRecord, log.AbortRecord:
		b.WriteString(renderKeyValue("Transaction", r.TID.String()))
		if len(r.Released) > 0 {
			rows := make([][]string, 0, len(r.Released))
			for _, rel := range r.Released {
				rows = append(rows, []string{fmt.Sprintf("%d", rel.Object), fmt.Sprintf("%d", rel.Value)})
			}
			b.WriteString("\n" + ui.RenderTable([]string{"Object", "Value"}, rows, -1))
		}
	}

	b.WriteString("\n" + ui.HelpStyle.Render(r.Raw))
	return ui.DetailStyle.Render(b.String())
}

func renderKeyValue(key, value string) string {
	return fmt.Sprintf("%s %s\n", ui.LabelStyle.Render(key+":"), ui.ValueStyle.Render(value))
}

func (m model) renderStatusBar() string {
	position := fmt.Sprintf("%d/%d", m.cursor+1, len(m.visible))
	if m.detailMode {
		return ui.StatusBarStyle.Render(fmt.Sprintf(" Detail View | Position: %s ", position))
	}
	return ui.StatusBarStyle.Render(fmt.Sprintf(" List View | Position: %s | %s ", position, m.logPath))
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: auditreader <path-to-audit-log>")
		os.Exit(1)
	}

	p := tea.NewProgram(initialModel(os.Args[1]), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
