package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/isolate/pool"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	classStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB")).
			Width(10)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// classOrder fixes the display order of the pool's resource classes.
var classOrder = []string{"memories", "tables", "stacks", "instances"}

type monitorModel struct {
	pool     *pool.Pool
	stats    *stats
	capacity int
	bars     map[string]progress.Model
	live     map[string]int
}

type tickMsg time.Time

func newMonitorModel(p *pool.Pool, s *stats, capacity int) *monitorModel {
	bars := make(map[string]progress.Model, len(classOrder))
	for _, class := range classOrder {
		bars[class] = progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))
	}
	return &monitorModel{
		pool:     p,
		stats:    s,
		capacity: capacity,
		bars:     bars,
		live:     map[string]int{},
	}
}

func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *monitorModel) Init() tea.Cmd {
	return tick()
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}

	case tickMsg:
		m.live = m.pool.Live()
		return m, tick()
	}
	return m, nil
}

func (m *monitorModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("poolmon"))
	b.WriteString(fmt.Sprintf("  %d slots per class\n\n", m.capacity))

	for _, class := range classOrder {
		used := m.live[class]
		frac := float64(used) / float64(m.capacity)
		b.WriteString(classStyle.Render(class))
		b.WriteString(m.bars[class].ViewAs(frac))
		b.WriteString(fmt.Sprintf("  %3d/%d\n", used, m.capacity))
	}

	b.WriteString("\n")
	b.WriteString(countStyle.Render(fmt.Sprintf("cycles %d", m.stats.cycles.Load())))
	b.WriteString(countStyle.Render(fmt.Sprintf("  traps %d", m.stats.traps.Load())))
	b.WriteString(warnStyle.Render(fmt.Sprintf("  exhaustions %d", m.stats.exhaustions.Load())))
	if f := m.stats.failures.Load(); f > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("  FAILURES %d", f)))
	}
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("q quit"))
	b.WriteString("\n")

	return b.String()
}

func runMonitor(p *pool.Pool, s *stats, capacity int) error {
	prog := tea.NewProgram(newMonitorModel(p, s, capacity), tea.WithAltScreen())
	_, err := prog.Run()
	return err
}
