package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"gpuselect/internal/device"
)

type StatusFunc func() ([]device.Record, error)

type statusMsg struct {
	records []device.Record
	err     error
	at      time.Time
	manual  bool
}

type tickMsg time.Time

// WatchModel polls a StatusFunc and renders it as a live table. It only
// reads; it never selects or binds devices.
type WatchModel struct {
	fetch    StatusFunc
	interval time.Duration
	table    table.Model
	records  []device.Record
	updated  time.Time
	err      error
	width    int
	height   int
}

func NewWatchModel(fetch StatusFunc, interval time.Duration) WatchModel {
	columns := []table.Column{
		{Title: "ID", Width: 4},
		{Title: "NAME", Width: 32},
		{Title: "UTIL", Width: 6},
		{Title: "MEM", Width: 6},
		{Title: "PROCS", Width: 6},
		{Title: "PSTATE", Width: 7},
		{Title: "POWER", Width: 10},
		{Title: "TEMP", Width: 6},
	}

	styles := table.DefaultStyles()
	styles.Header = headerStyle
	styles.Selected = selectedRowStyle

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(8),
		table.WithStyles(styles),
	)

	return WatchModel{
		fetch:    fetch,
		interval: interval,
		table:    t,
		width:    80,
		height:   24,
	}
}

func (m WatchModel) Init() tea.Cmd {
	return m.refresh(false)
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// title, blank line, status line, blank line, help
		if h := msg.Height - 6; h > 2 {
			m.table.SetHeight(h)
		}
		return m, nil

	case statusMsg:
		m.err = msg.err
		if msg.err == nil {
			m.records = msg.records
			m.updated = msg.at
			m.table.SetRows(watchRows(msg.records))
		}
		if msg.manual {
			return m, nil
		}
		return m, tea.Tick(m.interval, func(t time.Time) tea.Msg {
			return tickMsg(t)
		})

	case tickMsg:
		return m, m.refresh(false)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "r":
			return m, m.refresh(true)
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m WatchModel) refresh(manual bool) tea.Cmd {
	fetch := m.fetch
	return func() tea.Msg {
		records, err := fetch()
		return statusMsg{records: records, err: err, at: time.Now(), manual: manual}
	}
}

func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("GPU Status"))
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n\n")

	switch {
	case m.err != nil:
		b.WriteString(errorBoxStyle.Render(fmt.Sprintf("✗ Error: %v", m.err)))
	case m.updated.IsZero():
		b.WriteString(dimStyle.Render("Querying devices..."))
	default:
		idle := 0
		for _, r := range m.records {
			if r.Util == 0 && r.MemUtil == 0 && r.Processes == 0 {
				idle++
			}
		}
		summary := idleStyle.Render(fmt.Sprintf("%d idle", idle))
		if busy := len(m.records) - idle; busy > 0 {
			summary += dimStyle.Render(" / ") + busyStyle.Render(fmt.Sprintf("%d busy", busy))
		}
		b.WriteString(summary)
		b.WriteString(dimStyle.Render(fmt.Sprintf("   updated %s, every %s", m.updated.Format("15:04:05"), m.interval)))
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ move • r refresh • q quit"))
	return b.String()
}

func watchRows(records []device.Record) []table.Row {
	rows := make([]table.Row, 0, len(records))
	for _, r := range statusRows(records) {
		rows = append(rows, table.Row(r))
	}
	return rows
}

func RunWatch(fetch StatusFunc, interval time.Duration) error {
	p := tea.NewProgram(NewWatchModel(fetch, interval), tea.WithAltScreen())
	finalModel, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := finalModel.(WatchModel); ok && m.err != nil {
		return m.err
	}
	return nil
}
