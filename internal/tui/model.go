package tui

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	minRefreshInterval = 500 * time.Millisecond
	maxRefreshInterval = 30 * time.Second
	chartHeight        = 8
	maxChartBars       = 10
)

// Fetcher is the data dependency of the dashboard, satisfied by *Client.
type Fetcher interface {
	LiveMetrics() (LiveMetrics, error)
	Health() (Health, error)
}

type tickMsg time.Time

type dataMsg struct {
	live   LiveMetrics
	health Health
	err    error
}

// DashboardModel renders the live collection cycle as a metric table with a
// bar chart of the largest numeric values.
type DashboardModel struct {
	fetcher  Fetcher
	keys     KeyMap
	interval time.Duration

	width    int
	height   int
	selected int
	paused   bool

	live      LiveMetrics
	health    Health
	fetchErr  error
	lastFetch time.Time
}

// NewDashboardModel creates a dashboard polling fetcher every interval.
func NewDashboardModel(fetcher Fetcher, interval time.Duration) *DashboardModel {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &DashboardModel{
		fetcher:  fetcher,
		keys:     DefaultKeyMap(),
		interval: interval,
	}
}

func (m *DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.tick())
}

func (m *DashboardModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *DashboardModel) fetch() tea.Cmd {
	fetcher := m.fetcher
	return func() tea.Msg {
		live, err := fetcher.LiveMetrics()
		if err != nil {
			return dataMsg{err: err}
		}
		health, err := fetcher.Health()
		if err != nil {
			return dataMsg{err: err}
		}
		return dataMsg{live: live, health: health}
	}
}

func (m *DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		if m.paused {
			return m, m.tick()
		}
		return m, tea.Batch(m.fetch(), m.tick())

	case dataMsg:
		m.fetchErr = msg.err
		if msg.err == nil {
			m.live = msg.live
			m.health = msg.health
			m.lastFetch = time.Now()
			if m.selected >= len(m.live.Metrics) {
				m.selected = max(0, len(m.live.Metrics)-1)
			}
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit), key.Matches(msg, m.keys.ForceQuit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.selected > 0 {
				m.selected--
			}
		case key.Matches(msg, m.keys.Down):
			if m.selected < len(m.live.Metrics)-1 {
				m.selected++
			}
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
		case key.Matches(msg, m.keys.IntervalUp):
			m.interval = max(m.interval/2, minRefreshInterval)
		case key.Matches(msg, m.keys.IntervalDown):
			m.interval = min(m.interval*2, maxRefreshInterval)
		}
	}
	return m, nil
}

func (m *DashboardModel) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}

	var sections []string
	sections = append(sections, m.renderHeader(width))
	if chart := m.renderChart(width); chart != "" {
		sections = append(sections, chart)
	}
	sections = append(sections, m.renderTable(width))
	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *DashboardModel) renderHeader(width int) string {
	title := titleStyle.Render("flatstat")

	var status string
	switch {
	case m.fetchErr != nil:
		status = errorStyle.Render("disconnected: " + m.fetchErr.Error())
	case m.paused:
		status = pausedStyle.Render("PAUSED")
	default:
		status = statusStyle.Render(fmt.Sprintf(
			"up %s | %d metrics | %d bad lines | refresh %s",
			m.health.Uptime, len(m.live.Metrics), m.health.BadLines, m.interval,
		))
	}

	gap := width - lipgloss.Width(title) - lipgloss.Width(status)
	if gap < 1 {
		gap = 1
	}
	return title + strings.Repeat(" ", gap) + status
}

// renderChart draws the largest numeric metrics as horizontal-labelless bars.
func (m *DashboardModel) renderChart(width int) string {
	type bar struct {
		name  string
		value float64
	}
	var bars []bar
	for _, row := range m.live.Metrics {
		if v, ok := numericValue(row.Value); ok {
			bars = append(bars, bar{name: row.Name, value: math.Abs(v)})
		}
	}
	if len(bars) == 0 {
		return ""
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].value > bars[j].value })
	if len(bars) > maxChartBars {
		bars = bars[:maxChartBars]
	}

	chartWidth := width - 2
	if chartWidth < 20 {
		chartWidth = 20
	}

	bc := barchart.New(chartWidth, chartHeight,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(3),
		barchart.WithNoAxis(),
	)
	for _, b := range bars {
		bc.Push(barchart.BarData{
			Label: "",
			Values: []barchart.BarValue{
				{Name: b.name, Value: b.value, Style: barStyle},
			},
		})
	}
	bc.Draw()

	var names []string
	for i, b := range bars {
		names = append(names, fmt.Sprintf("%d:%s", i+1, b.name))
	}
	legend := helpStyle.Render(truncate(strings.Join(names, "  "), chartWidth))

	return lipgloss.JoinVertical(lipgloss.Left, bc.View(), legend)
}

func (m *DashboardModel) renderTable(width int) string {
	nameWidth := width * 5 / 10
	kindWidth := 8
	if nameWidth < 10 {
		nameWidth = 10
	}

	header := headerRowStyle.Render(fmt.Sprintf("%-*s %-*s %s", nameWidth, "NAME", kindWidth, "KIND", "VALUE"))
	lines := []string{header}

	if len(m.live.Metrics) == 0 {
		lines = append(lines, helpStyle.Render("waiting for metrics..."))
	}

	for i, row := range m.live.Metrics {
		line := fmt.Sprintf("%-*s %-*s %v",
			nameWidth, truncate(row.Name, nameWidth),
			kindWidth, row.Kind,
			row.Value,
		)
		if i == m.selected {
			lines = append(lines, selectedRowStyle.Render(truncate(line, width)))
		} else {
			styled := fmt.Sprintf("%-*s %s %v",
				nameWidth, truncate(row.Name, nameWidth),
				kindStyle(row.Kind).Render(fmt.Sprintf("%-*s", kindWidth, row.Kind)),
				row.Value,
			)
			lines = append(lines, styled)
		}
	}

	return strings.Join(lines, "\n")
}

func (m *DashboardModel) renderFooter() string {
	bindings := []key.Binding{
		m.keys.Up, m.keys.Down, m.keys.Pause,
		m.keys.IntervalUp, m.keys.IntervalDown, m.keys.Quit,
	}
	var parts []string
	for _, b := range bindings {
		parts = append(parts, b.Help().Key+" "+b.Help().Desc)
	}
	return helpStyle.Render(strings.Join(parts, " · "))
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func truncate(s string, width int) string {
	if width <= 0 || len(s) <= width {
		return s
	}
	if width <= 1 {
		return s[:width]
	}
	return s[:width-1] + "…"
}
