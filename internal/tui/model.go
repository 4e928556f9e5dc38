package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/cellnode/internal/events"
)

const maxEventLog = 50

// HealthState tracks node health from /healthz polling.
type HealthState struct {
	Status        string
	UptimeSeconds int64
	QueueDepth    int
	Connected     bool
	LastCheck     time.Time
}

// Model is the BubbleTea model for the watch TUI.
type Model struct {
	bridgeURL string
	token     string

	width  int
	height int

	health   HealthState
	board    *Board
	eventLog []events.Event
	lastID   int64

	activity Activity
	channels table.Model
	theme    Theme

	hubEvents chan events.Event
	lastError string
}

// New creates a watch model reading from the bridge at bridgeURL.
func New(bridgeURL, token string) *Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Channel", Width: 32},
			{Title: "Msgs", Width: 8},
		}),
		table.WithHeight(10),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	t.SetStyles(s)

	return &Model{
		bridgeURL: bridgeURL,
		token:     token,
		board:     NewBoard(),
		eventLog:  make([]events.Event, 0),
		channels:  t,
		theme:     NewDefaultTheme(),
		hubEvents: make(chan events.Event, 100),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.bridgeURL, m.token, 0, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		func() tea.Msg { return fetchHealth(m.bridgeURL) },
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.activity.Decay(time.Time(msg))
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case eventMsg:
		e := events.Event(msg)
		m.lastID = e.ID

		// Newest first.
		m.eventLog = append([]events.Event{e}, m.eventLog...)
		if len(m.eventLog) > maxEventLog {
			m.eventLog = m.eventLog[:maxEventLog]
		}

		m.board.Apply(e)
		m.activity.OnEvent(time.Now())
		m.updateChannels()

		m.health.Connected = true
		m.lastError = ""
		return m, receiveNextEvent(m.hubEvents)

	case healthMsg:
		m.health.Status = msg.Status
		m.health.UptimeSeconds = msg.UptimeSeconds
		m.health.QueueDepth = msg.QueueDepth
		m.health.Connected = true
		m.health.LastCheck = time.Now()
		m.lastError = ""

		return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg {
			return fetchHealth(m.bridgeURL)
		})

	case sseDisconnectedMsg:
		m.health.Connected = false
		m.lastError = "event stream disconnected, reconnecting..."
		// The receiveNextEvent goroutine keeps waiting on hubEvents and picks
		// up events from the new subscription.
		return m, tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return reconnectMsg(msg)
		})

	case reconnectMsg:
		return m, subscribeToEvents(m.bridgeURL, m.token, msg.lastID, m.hubEvents)

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(5*time.Second, func(time.Time) tea.Msg {
			return fetchHealth(m.bridgeURL)
		})
	}

	return m, nil
}

func (m *Model) updateChannels() {
	counts := m.board.ChannelCounts()
	rows := make([]table.Row, 0, len(counts))
	for _, c := range counts {
		rows = append(rows, table.Row{c.Channel, fmt.Sprintf("%d", c.Count)})
	}
	m.channels.SetRows(rows)
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing cellnode watch..."
	}

	parts := []string{
		renderHeader(m.health, m.activity, m.theme, m.width),
		renderCompetition(m.board, m.theme, m.width),
		m.theme.Panel.Width(m.width - 4).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				m.theme.Title.Render("CHANNELS"),
				m.channels.View(),
			),
		),
		renderEventStream(m.eventLog, m.theme, m.width),
	}
	if m.lastError != "" {
		parts = append(parts, m.theme.LinkDown.Render(fmt.Sprintf(" ⚠ %s", m.lastError)))
	}
	parts = append(parts, lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(" [q] Quit"))

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}
