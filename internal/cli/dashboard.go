package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/agent-pulse/internal/observability"
)

// Dashboard panel indices.
const (
	panelEndpoints = iota
	panelErrors
	panelAlerts
	panelCount
)

const dashboardRefresh = 2 * time.Second

type dashboardModel struct {
	activePanel int
	width       int
	height      int

	snap *observability.Snapshot
	err  error
}

// snapshotLoadedMsg carries a reloaded snapshot back to the model.
type snapshotLoadedMsg struct {
	snap *observability.Snapshot
	err  error
}

type tickMsg time.Time

// Style definitions.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	severityCritical = lipgloss.NewStyle().Foreground(lipgloss.Color("201")).Bold(true)
	severityHigh     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	severityMedium   = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	severityLow      = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newDashboardModel() dashboardModel {
	return dashboardModel{activePanel: panelEndpoints}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(loadSnapshotCmd, tickCmd())
}

func loadSnapshotCmd() tea.Msg {
	snap, err := loadSnapshot()
	return snapshotLoadedMsg{snap: snap, err: err}
}

func tickCmd() tea.Cmd {
	return tea.Tick(dashboardRefresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.activePanel = (m.activePanel + 1) % panelCount
			return m, nil
		case "shift+tab":
			m.activePanel = (m.activePanel - 1 + panelCount) % panelCount
			return m, nil
		case "r":
			return m, loadSnapshotCmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m, tea.Batch(loadSnapshotCmd, tickCmd())

	case snapshotLoadedMsg:
		m.snap = msg.snap
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

func (m dashboardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" Agent Pulse Dashboard ")
	help := helpStyle.Render("tab: switch panel | r: refresh | q: quit")

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  %s\n\n%s", title, m.err, help)
	}
	if m.snap == nil {
		return fmt.Sprintf("%s\n\n  Loading snapshot...\n\n%s", title, help)
	}

	panels := []string{
		m.renderPanel(panelEndpoints, "Endpoints", m.renderEndpoints()),
		m.renderPanel(panelErrors, "Errors", m.renderErrors()),
		m.renderPanel(panelAlerts, "Alerts", m.renderAlerts()),
	}

	body := lipgloss.JoinVertical(lipgloss.Left, panels...)
	age := time.Since(m.snap.Timestamp).Round(time.Second)
	status := helpStyle.Render(fmt.Sprintf("snapshot age: %s", age))
	return fmt.Sprintf("%s\n%s\n%s\n%s", title, body, status, help)
}

func (m dashboardModel) renderPanel(index int, name, content string) string {
	style := panelStyle
	if m.activePanel == index {
		style = activePanelStyle
	}
	header := headerStyle.Render(name)
	return style.Width(m.width - 4).Render(header + "\n" + content)
}

func (m dashboardModel) renderEndpoints() string {
	stats := m.snap.Metrics.ResponseTimeStats
	if len(stats) == 0 {
		return "No requests recorded."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-28s %7s %9s %9s %7s\n", "endpoint", "count", "avg_ms", "p95_ms", "err%")
	for _, endpoint := range sortedKeys(stats) {
		s := stats[endpoint]
		fmt.Fprintf(&b, "%-28s %7d %9.1f %9.1f %7.1f\n",
			endpoint, s.Count, s.AvgMS, s.P95MS, m.snap.Metrics.ErrorRates[endpoint])
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m dashboardModel) renderErrors() string {
	s := m.snap.Errors
	var b strings.Builder
	fmt.Fprintf(&b, "unique: %d  total: %d  rate: %.2f/min  last hour: %d\n",
		s.TotalUniqueErrors, s.TotalErrorCount, s.ErrorRatePerMinute, s.RecentErrorsCount)
	for i, e := range s.TopErrors {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&b, "%5dx %s\n", e.Count, e.Message)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m dashboardModel) renderAlerts() string {
	if len(m.snap.Alerts) == 0 {
		return "No alerts."
	}
	var b strings.Builder
	for i, alert := range m.snap.Alerts {
		if i >= 8 {
			break
		}
		fmt.Fprintf(&b, "%s %s\n", renderSeverity(alert.Severity), alert.Message)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSeverity(severity observability.AlertSeverity) string {
	label := fmt.Sprintf("[%s]", strings.ToUpper(string(severity)))
	switch severity {
	case observability.SeverityCritical:
		return severityCritical.Render(label)
	case observability.SeverityHigh:
		return severityHigh.Render(label)
	case observability.SeverityMedium:
		return severityMedium.Render(label)
	default:
		return severityLow.Render(label)
	}
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Live terminal dashboard over exported snapshots",
	Long: `Render a terminal dashboard of endpoint latencies, error summaries, and
alerts, reloading the exported snapshot every few seconds.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := tea.NewProgram(newDashboardModel(), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("running dashboard: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}
