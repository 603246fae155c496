package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gmsas95/pillpal/internal/app"
	"github.com/gmsas95/pillpal/internal/doses"
)

const dashboardRefresh = 30 * time.Second

type tickMsg time.Time

// dashboard is an interactive view of today's doses.
type dashboard struct {
	app    *app.App
	table  table.Model
	today  []doses.Dose
	day    time.Time
	status string
}

func newDashboard(a *app.App) dashboard {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Time", Width: 6},
			{Title: "Medication", Width: 18},
			{Title: "Dosage", Width: 10},
			{Title: "Status", Width: 9},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	m := dashboard{app: a, table: t}
	m.reload()
	return m
}

func (m *dashboard) reload() {
	m.day, _ = doses.DayWindow(m.app.Tracker.Now())
	m.today = m.app.Tracker.TodayDoses()

	rows := make([]table.Row, 0, len(m.today))
	for _, d := range m.today {
		name, dosage := d.MedicationID, ""
		if med, ok := m.app.Tracker.Medication(d.MedicationID); ok {
			name, dosage = med.Name, med.Dosage
		}
		rows = append(rows, table.Row{d.ScheduledTime.Format("15:04"), name, dosage, string(d.Status)})
	}
	m.table.SetRows(rows)
}

func (m *dashboard) mark(status doses.Status) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.today) {
		return
	}
	d, applied, err := m.app.Tracker.SetDoseStatus(context.Background(), m.today[i].ID, status)
	switch {
	case err != nil:
		m.status = err.Error()
	case applied:
		m.status = fmt.Sprintf("%s %s marked %s", d.ScheduledTime.Format("15:04"), m.table.SelectedRow()[1], d.Status)
	}
	m.reload()
}

func tick() tea.Cmd {
	return tea.Tick(dashboardRefresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m dashboard) Init() tea.Cmd {
	return tick()
}

func (m dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "t", "enter":
			m.mark(doses.StatusTaken)
			return m, nil
		case "s":
			m.mark(doses.StatusSkipped)
			return m, nil
		case "r":
			m.app.Tracker.Refresh(context.Background())
			m.reload()
			m.status = "refreshed"
			return m, nil
		}

	case tickMsg:
		changed := m.app.Tracker.Refresh(context.Background())
		day, _ := doses.DayWindow(m.app.Tracker.Now())
		switch {
		case !day.Equal(m.day):
			m.status = "new day"
		case changed:
			m.status = "refreshed"
		}
		m.reload()
		return m, tick()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m dashboard) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("PillPal · " + m.app.Tracker.Now().Format("Mon Jan 2")))
	b.WriteString("\n\n")
	if len(m.today) == 0 {
		b.WriteString("No doses scheduled today.\n")
	} else {
		b.WriteString(m.table.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.app.Tracker.Adherence().Summary())
	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(mutedStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(mutedStyle.Render("↑/↓ move · t take · s skip · r refresh · q quit"))
	b.WriteString("\n")
	return b.String()
}

// RunDashboard opens the interactive dashboard until the user quits.
func RunDashboard(a *app.App) error {
	if !stdoutIsTerminal() {
		return fmt.Errorf("dashboard needs an interactive terminal")
	}
	_, err := tea.NewProgram(newDashboard(a), tea.WithAltScreen()).Run()
	return err
}
