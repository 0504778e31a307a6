package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/xela07ax/shuma-dashboard/internal/domain"
	"github.com/xela07ax/shuma-dashboard/internal/route"
	"github.com/xela07ax/shuma-dashboard/internal/store"
	"github.com/xela07ax/shuma-dashboard/internal/telemetry"
)

// Controller: то, что терминальному UI нужно от рантайма.
type Controller interface {
	State() *store.State
	Telemetry() telemetry.RuntimeTelemetry
	ApplyActiveTab(raw string, opts route.Options) domain.Tab
	RefreshTab(tab domain.Tab, reason domain.RefreshReason) error
	SetVisible(visible bool)
	LastRedirect() string
}

// StateMsg приходит из Bridge на каждое изменение стора.
type StateMsg struct {
	State *store.State
}

// RedirectMsg: админ-API потребовал повторный логин.
type RedirectMsg struct {
	URL string
}

type refreshDoneMsg struct {
	tab domain.Tab
	err error
}

var (
	activeTabStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Padding(0, 1)
	tabStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1)
	staleMark      = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render("*")
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	okStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	headerStyle    = lipgloss.NewStyle().Bold(true)
)

// Model: Bubble Tea модель с полосой вкладок, статусом активной вкладки и телеметрией.
type Model struct {
	ctrl     Controller
	state    *store.State
	redirect string
	lastErr  string
	width    int
	quitting bool
}

func NewModel(ctrl Controller) Model {
	return Model{ctrl: ctrl, state: ctrl.State(), redirect: ctrl.LastRedirect()}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	// Фокус терминала заменяет видимость документа
	case tea.FocusMsg:
		m.ctrl.SetVisible(true)
		return m, nil

	case tea.BlurMsg:
		m.ctrl.SetVisible(false)
		return m, nil

	case StateMsg:
		m.state = msg.State
		return m, nil

	case RedirectMsg:
		m.redirect = msg.URL
		return m, nil

	case refreshDoneMsg:
		m.lastErr = ""
		if msg.err != nil {
			m.lastErr = fmt.Sprintf("%s: %v", msg.tab, msg.err)
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "r":
		tab := m.state.ActiveTab()
		ctrl := m.ctrl
		return m, func() tea.Msg {
			return refreshDoneMsg{tab: tab, err: ctrl.RefreshTab(tab, domain.ReasonManual)}
		}

	case "1", "2", "3", "4", "5":
		tabs := domain.Tabs()
		idx := int(key[0] - '1')
		if idx < len(tabs) {
			m.ctrl.ApplyActiveTab(string(tabs[idx]), route.Options{SyncHash: true})
			m.state = m.ctrl.State()
		}
		return m, nil
	}

	navKey := key
	switch key {
	case "h":
		navKey = "left"
	case "l", "tab":
		navKey = "right"
	case "shift+tab":
		navKey = "left"
	}
	if next, ok := route.KeyNavTarget(m.state.ActiveTab(), navKey); ok {
		m.ctrl.ApplyActiveTab(string(next), route.Options{SyncHash: true})
		m.state = m.ctrl.State()
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	s := m.state
	active := s.ActiveTab()
	status := s.TabStatus(active)

	switch {
	case !s.Authenticated() && m.redirect != "":
		b.WriteString(errorStyle.Render("Session expired, log in again: " + m.redirect))
	case !s.Authenticated():
		b.WriteString(dimStyle.Render("Not authenticated"))
	case status.Loading:
		msg := status.Message
		if msg == "" {
			msg = "Loading..."
		}
		b.WriteString(dimStyle.Render(msg))
	case status.Error != "":
		b.WriteString(errorStyle.Render("Error: " + status.Error))
	case status.Empty:
		b.WriteString(dimStyle.Render("No data yet"))
	case status.UpdatedAt != "":
		b.WriteString(okStyle.Render("Updated " + status.UpdatedAt))
	default:
		b.WriteString(dimStyle.Render("Waiting for first refresh"))
	}
	b.WriteString("\n")

	if m.lastErr != "" {
		b.WriteString(errorStyle.Render(m.lastErr))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderTelemetry())
	b.WriteString("\n\n")
	b.WriteString(dimStyle.Render("←/→ switch tab • 1-5 jump • r refresh • q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderTabs() string {
	active := m.state.ActiveTab()
	parts := make([]string, 0, len(domain.Tabs()))
	for _, t := range domain.Tabs() {
		label := string(t)
		if m.state.IsStale(t) {
			label += staleMark
		}
		if t == active {
			parts = append(parts, activeTabStyle.Render(label))
		} else {
			parts = append(parts, tabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) renderTelemetry() string {
	t := m.ctrl.Telemetry()
	lines := []string{
		headerStyle.Render("Telemetry"),
		fmt.Sprintf("fetch   last %.0fms  avg %.0fms  p95 %.0fms  (%d samples)",
			t.Refresh.FetchLatencyMs.Last, t.Refresh.FetchLatencyMs.Avg, t.Refresh.FetchLatencyMs.P95, t.Refresh.FetchLatencyMs.Samples),
		fmt.Sprintf("render  last %.0fms  avg %.0fms", t.Refresh.RenderTimingMs.Last, t.Refresh.RenderTimingMs.Avg),
	}
	polling := fmt.Sprintf("polling every %s", formatInterval(t.Polling.IntervalMs))
	if t.Polling.LastSkipReason != "" {
		polling += fmt.Sprintf("  last skip: %s", t.Polling.LastSkipReason)
	}
	lines = append(lines, polling)
	return strings.Join(lines, "\n")
}

func formatInterval(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	if ms%1000 == 0 {
		return fmt.Sprintf("%ds", ms/1000)
	}
	return fmt.Sprintf("%dms", ms)
}
