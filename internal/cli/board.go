package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/valter-silva-au/agent-factory/pkg/models"
)

// Board panel indices.
const (
	panelTasks = iota
	panelMetrics
	panelAlerts
	panelCount
)

const boardRefreshInterval = 2 * time.Second

type boardModel struct {
	activePanel int
	width       int
	height      int

	tasks       table.Model
	counters    models.Counters
	consistent  bool
	lastUpdated string
	metricsData *metricsSnapshot
	alerts      []alertSnapshot

	loading bool
	err     error
}

type metricsSnapshot struct {
	staged       int
	completed    int
	failed       int
	readFailures int
	fallbacks    int
	eventCount   int
}

type alertSnapshot struct {
	severity string
	message  string
	time     string
}

// boardLoadedMsg carries loaded data back to the model.
type boardLoadedMsg struct {
	board   *models.Board
	metrics *metricsSnapshot
	alerts  []alertSnapshot
	err     error
}

// refreshTickMsg triggers the periodic reload.
type refreshTickMsg time.Time

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

	statusPending   = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	statusCompleted = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusError     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	severityHigh   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	severityMedium = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	severityLow    = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))

	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newTaskTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "#", Width: 4},
			{Title: "Task", Width: 28},
			{Title: "Status", Width: 10},
			{Title: "Date", Width: 10},
			{Title: "Time", Width: 8},
			{Title: "Link", Width: 36},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("62"))
	t.SetStyles(s)
	return t
}

func newBoardModel() boardModel {
	return boardModel{
		activePanel: panelTasks,
		tasks:       newTaskTable(),
		loading:     true,
	}
}

func (m boardModel) Init() tea.Cmd {
	return tea.Batch(loadBoardData, refreshTick())
}

func refreshTick() tea.Cmd {
	return tea.Tick(boardRefreshInterval, func(t time.Time) tea.Msg {
		return refreshTickMsg(t)
	})
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
			m.loading = true
			return m, loadBoardData
		}
		if m.activePanel == panelTasks {
			var cmd tea.Cmd
			m.tasks, cmd = m.tasks.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if h := msg.Height - 16; h > 3 {
			m.tasks.SetHeight(h)
		}
		return m, nil

	case refreshTickMsg:
		return m, tea.Batch(loadBoardData, refreshTick())

	case boardLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.counters = msg.board.Counters
		m.consistent = msg.board.Counters == models.CountRows(msg.board.Tasks)
		m.lastUpdated = msg.board.LastUpdated
		m.tasks.SetRows(taskRows(msg.board.Tasks))
		m.metricsData = msg.metrics
		m.alerts = msg.alerts
		return m, nil
	}

	return m, nil
}

func taskRows(tasks []models.Task) []table.Row {
	rows := make([]table.Row, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, table.Row{strconv.Itoa(t.Seq), t.Name, string(t.Status), t.Date, t.Time, t.Link})
	}
	return rows
}

func (m boardModel) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	title := titleStyle.Render(" Agent Factory ")
	help := helpStyle.Render("tab: switch panel | ↑/↓: scroll tasks | r: refresh | q: quit")

	if m.loading && m.lastUpdated == "" {
		return fmt.Sprintf("%s\n\n  Loading board...\n\n%s", title, help)
	}

	if m.err != nil {
		return fmt.Sprintf("%s\n\n  Error: %s\n\n%s", title, m.err, help)
	}

	availableWidth := m.width - 2
	panelWidth := availableWidth - 4
	if panelWidth < 20 {
		panelWidth = 20
	}

	tasksPanel := m.applyPanelStyle(panelTasks, m.renderTasksPanel(), panelWidth)
	metricsPanel := m.renderMetricsPanel()
	alertsPanel := m.renderAlertsPanel()

	var lower string
	if availableWidth > 100 {
		colWidth := availableWidth/2 - 4
		lower = lipgloss.JoinHorizontal(lipgloss.Top,
			m.applyPanelStyle(panelMetrics, metricsPanel, colWidth),
			m.applyPanelStyle(panelAlerts, alertsPanel, colWidth))
	} else {
		lower = lipgloss.JoinVertical(lipgloss.Left,
			m.applyPanelStyle(panelMetrics, metricsPanel, panelWidth),
			m.applyPanelStyle(panelAlerts, alertsPanel, panelWidth))
	}

	body := lipgloss.JoinVertical(lipgloss.Left, tasksPanel, lower)
	return fmt.Sprintf("%s  %s\n\n%s\n\n%s", title, helpStyle.Render("updated "+m.lastUpdated), body, help)
}

func (m boardModel) applyPanelStyle(panel int, content string, width int) string {
	style := panelStyle
	if m.activePanel == panel {
		style = activePanelStyle
	}
	return style.Width(width).Render(content)
}

func (m boardModel) renderTasksPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Tasks"))
	b.WriteString("\n")
	b.WriteString(renderCounters(m.counters))
	if !m.consistent {
		b.WriteString("\n")
		b.WriteString(statusError.Render("counters disagree with rows, run factory reconcile"))
	}
	b.WriteString("\n\n")

	if len(m.tasks.Rows()) == 0 {
		b.WriteString("  No tasks yet. Drop a document into the Inbox.")
		return b.String()
	}
	b.WriteString(m.tasks.View())
	return b.String()
}

// renderCounters formats the board counters on one line.
func renderCounters(c models.Counters) string {
	return fmt.Sprintf("Total %d  %s  %s  %s",
		c.Total,
		statusCompleted.Render(fmt.Sprintf("Completed %d", c.Completed)),
		statusPending.Render(fmt.Sprintf("Pending %d", c.Pending)),
		statusError.Render(fmt.Sprintf("Errors %d", c.Errors)))
}

func (m boardModel) renderMetricsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Metrics (24h)"))
	b.WriteString("\n")

	if m.metricsData == nil {
		b.WriteString("  No metrics available.")
		return b.String()
	}

	md := m.metricsData
	lines := []struct {
		label string
		value int
	}{
		{"Events", md.eventCount},
		{"Staged", md.staged},
		{"Completed", md.completed},
		{"Failed", md.failed},
		{"Read failures", md.readFailures},
		{"Fallbacks", md.fallbacks},
	}

	for _, l := range lines {
		b.WriteString(fmt.Sprintf("  %-14s %d\n", l.label, l.value))
	}

	return b.String()
}

func (m boardModel) renderAlertsPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Alerts"))
	b.WriteString("\n")

	if len(m.alerts) == 0 {
		b.WriteString("  No active alerts.")
		return b.String()
	}

	for _, a := range m.alerts {
		sev := styleForSeverity(a.severity).Render(fmt.Sprintf("[%s]", strings.ToUpper(a.severity)))
		b.WriteString(fmt.Sprintf("  %s %s\n", sev, a.message))
	}

	b.WriteString(fmt.Sprintf("\n  Total: %d alert(s)", len(m.alerts)))

	return b.String()
}

func styleForStatus(status models.TaskStatus) lipgloss.Style {
	switch status {
	case models.StatusPending:
		return statusPending
	case models.StatusCompleted:
		return statusCompleted
	case models.StatusError:
		return statusError
	default:
		return lipgloss.NewStyle()
	}
}

func styleForSeverity(severity string) lipgloss.Style {
	switch strings.ToLower(severity) {
	case "high":
		return severityHigh
	case "medium":
		return severityMedium
	case "low":
		return severityLow
	default:
		return lipgloss.NewStyle()
	}
}

func loadBoardData() tea.Msg {
	var result boardLoadedMsg

	if Board == nil {
		result.err = fmt.Errorf("status board not initialized")
		return result
	}
	b, err := Board.Snapshot()
	if err != nil {
		result.err = fmt.Errorf("loading board: %w", err)
		return result
	}
	result.board = b

	if MetricsCalc != nil {
		metrics, err := MetricsCalc.Calculate(time.Now().UTC().Add(-24 * time.Hour))
		if err != nil {
			result.err = fmt.Errorf("loading metrics: %w", err)
			return result
		}
		result.metrics = &metricsSnapshot{
			staged:       metrics.TasksStaged,
			completed:    metrics.TasksCompleted,
			failed:       metrics.TasksFailed,
			readFailures: metrics.ReadFailures,
			fallbacks:    metrics.Fallbacks,
			eventCount:   metrics.EventCount,
		}
	}

	if AlertEngine != nil {
		alerts, err := AlertEngine.Evaluate()
		if err != nil {
			result.err = fmt.Errorf("loading alerts: %w", err)
			return result
		}
		result.alerts = make([]alertSnapshot, 0, len(alerts))

		// High first, then medium, then low.
		sort.SliceStable(alerts, func(i, j int) bool {
			return severityRank(string(alerts[i].Severity)) < severityRank(string(alerts[j].Severity))
		})

		for _, a := range alerts {
			result.alerts = append(result.alerts, alertSnapshot{
				severity: string(a.Severity),
				message:  a.Message,
				time:     a.TriggeredAt.Format("2006-01-02 15:04"),
			})
		}
	}

	return result
}

func severityRank(s string) int {
	switch s {
	case "high":
		return 0
	case "medium":
		return 1
	case "low":
		return 2
	default:
		return 3
	}
}

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Live terminal view of the status board, metrics and alerts",
	Long: `Launch an interactive terminal view of the status board. The view reloads
Dashboard.md every two seconds and shows the task rows, the counters, recent
metrics from the event log and any active alerts.

Navigate between panels with Tab, scroll the task table with the arrow keys,
refresh with r, quit with q.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Board == nil {
			return fmt.Errorf("status board not initialized")
		}
		p := tea.NewProgram(newBoardModel(), tea.WithAltScreen())
		_, err := p.Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(boardCmd)
}
