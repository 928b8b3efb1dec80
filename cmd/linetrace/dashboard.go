package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/linetrace/pkg/control"
	"github.com/gwillem/linetrace/pkg/robot"
)

const (
	headerHeight = 4 // title, sensors, status, blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border

	// Chart refresh cap; the control loop runs far faster than a terminal.
	redrawInterval = 50 * time.Millisecond
)

// Wheel colors
var wheelColors = map[robot.Side]string{
	robot.Left:  "51",  // cyan
	robot.Right: "201", // magenta
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	onStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("10"))
	offStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Background(lipgloss.Color("236"))
	lostStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

type dashboardModel struct {
	ctrl      *control.Controller
	chart     *streamlinechart.Model
	width     int      // terminal width
	height    int      // terminal height
	logs      []string // last N log messages
	quitting  bool
	state     control.State
	lastDraw  time.Time
	rateStart time.Time
	rateCycle uint64
	rate      float64 // cycles per second
}

func (m *dashboardModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// Messages from the controller
type stateMsg control.State
type logMsg string

func waitForState(ctrl *control.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(ctrl *control.Controller) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ctrl.Logs())
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *dashboardModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20 // default size before we know terminal size
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-legendHeight-footerHeight-borderSize, 10)
	return width, height
}

func newDashboardModel(ctrl *control.Controller) dashboardModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(robot.MinSpeed, robot.MaxSpeed),
	)
	for side, color := range wheelColors {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
		chart.SetDataSetStyles(string(side), runes.ThinLineStyle, style)
	}

	return dashboardModel{
		ctrl:      ctrl,
		chart:     &chart,
		rateStart: time.Now(),
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.ctrl),
	)
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chart.Resize(m.chartSize())
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case stateMsg:
		m.state = control.State(msg)
		if m.state.Error != nil {
			m.addLog(fmt.Sprintf("[%s] %v", m.state.Timestamp.Format("15:04:05"), m.state.Error))
		}

		now := time.Now()
		if now.Sub(m.lastDraw) >= redrawInterval {
			m.chart.PushDataSet(string(robot.Left), float64(m.state.Command.Left))
			m.chart.PushDataSet(string(robot.Right), float64(m.state.Command.Right))
			m.chart.DrawAll()
			m.lastDraw = now
		}
		if elapsed := now.Sub(m.rateStart); elapsed >= time.Second {
			m.rate = float64(m.state.Cycle-m.rateCycle) / elapsed.Seconds()
			m.rateStart = now
			m.rateCycle = m.state.Cycle
		}
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.ctrl)
	}

	return m, nil
}

func renderSensor(label string, on bool) string {
	if on {
		return onStyle.Render(" " + label + " ")
	}
	return offStyle.Render(" " + label + " ")
}

func (m dashboardModel) View() string {
	if m.quitting {
		return "Line following stopped.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("linetrace"))
	sb.WriteString(fmt.Sprintf(" - %.0f cycles/s", m.rate))
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n")

	// Sensors and decision
	r := m.state.Reading
	sb.WriteString(renderSensor("L", r.Left) + " " + renderSensor("C", r.Center) + " " + renderSensor("R", r.Right))
	rule := string(m.state.Rule)
	if m.state.Rule == control.LineLost {
		rule = lostStyle.Render("line lost")
	}
	sb.WriteString(fmt.Sprintf("  %s  %s\n", rule, m.state.Command))
	sb.WriteString(statusStyle.Render(fmt.Sprintf("cycle %d", m.state.Cycle)))
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	// Legend
	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20)).
		Foreground(lipgloss.Color("9")) // bright red

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Press 'q' to quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func renderLegend() string {
	var items []string
	for _, side := range []robot.Side{robot.Left, robot.Right} {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(wheelColors[side])).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+string(side)+" wheel")
	}
	return strings.Join(items, "  ")
}
