package app

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tda/internal/client"
	"tda/internal/logging"
	"tda/internal/notify"
	"tda/internal/store"
	"tda/internal/types"
)

const (
	tickInterval     = 100 * time.Millisecond
	maxEventsPerTick = 64
	historyLimit     = 200
	minListWidth     = 24
	maxListWidth     = 40
	minViewportWidth = 20
	minContentHeight = 6
	blinkDuration    = 1500 * time.Millisecond
)

type paneFocus int

const (
	focusSidebar paneFocus = iota
	focusChat
)

type reconfigModal struct {
	visible bool
	message string
}

// Model is the root bubbletea model. It owns all mutable UI state and is the
// notify.Sink the dispatcher writes into; both run on the update goroutine,
// so none of this needs locking.
type Model struct {
	api        *client.Client
	stateStore *store.FileStateStore
	log        logging.Logger

	uiState    *types.UIState
	dispatcher *notify.Dispatcher
	events     <-chan notify.StreamEvent

	sessionList  *SessionList
	statusWindow *StatusWindow
	genie        *GenieTrace
	agent        *AgentTrace

	viewport viewport.Model
	loader   spinner.Model

	turns   []chatTurn
	connSt  types.ConnState
	focus   paneFocus
	width   int
	height  int
	loading bool
	status  string

	indicators     map[string]bool
	caseBlinkUntil time.Time
	knowBlinkUntil time.Time

	reconfig reconfigModal

	sidebarCollapsed bool

	toastText  string
	toastLevel toastLevel
	toastUntil time.Time
}

func NewModel(api *client.Client, stateStore *store.FileStateStore, events <-chan notify.StreamEvent, log logging.Logger) *Model {
	if log == nil {
		log = logging.Nop()
	}
	vp := viewport.New(minViewportWidth, minContentHeight)
	loader := spinner.New()
	loader.Spinner = spinner.Line
	loader.Style = lipgloss.NewStyle()

	m := &Model{
		api:          api,
		stateStore:   stateStore,
		log:          log,
		uiState:      &types.UIState{},
		events:       events,
		sessionList:  NewSessionList(minListWidth, minContentHeight),
		statusWindow: NewStatusWindow(),
		genie:        NewGenieTrace(),
		agent:        NewAgentTrace(),
		viewport:     vp,
		loader:       loader,
		connSt:       types.ConnDisconnected,
		indicators:   map[string]bool{},
		status:       "connecting",
	}
	m.dispatcher = notify.NewDispatcher(m.uiState, m, m.genie, m.agent, log)
	if stateStore != nil {
		if persisted, err := stateStore.Load(); err == nil && persisted != nil {
			m.uiState.ActiveSessionID = persisted.ActiveSessionID
			m.sidebarCollapsed = persisted.SidebarCollapsed
		}
	}
	return m
}

// Run wires the subscriber to the model and blocks until the UI exits.
func Run(api *client.Client, stateStore *store.FileStateStore, initial, max time.Duration, retries int, log logging.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := notify.NewSubscriber(api, func() string {
		if user := api.Auth().User(); user != nil {
			return user.UUID
		}
		return ""
	}, initial, max, retries, log)
	go sub.Run(ctx)

	model := NewModel(api, stateStore, sub.Events(), log)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(fetchSessionsCmd(m.api), m.loader.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSessionsCmd(api *client.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sessions, err := api.ListSessions(ctx)
		return sessionsMsg{sessions: sessions, err: err}
	}
}

func fetchHistoryCmd(api *client.Client, sessionID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		turns, err := api.ChatHistory(ctx, sessionID, historyLimit)
		return historyMsg{sessionID: sessionID, turns: turns, err: err}
	}
}

func (m *Model) saveStateCmd() tea.Cmd {
	if m.stateStore == nil {
		return nil
	}
	persisted := &store.PersistedState{
		ActiveSessionID:  m.uiState.ActiveSessionID,
		SidebarCollapsed: m.sidebarCollapsed,
	}
	storeRef := m.stateStore
	return func() tea.Msg {
		return stateSavedMsg{err: storeRef.Save(persisted)}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tickMsg:
		m.consumeEvents()
		m.expireBlinks(time.Time(msg))
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.loader, cmd = m.loader.Update(msg)
		return m, cmd

	case sessionsMsg:
		if msg.err != nil {
			m.status = "sessions error: " + msg.err.Error()
			m.showErrorToast(m.status)
			return m, nil
		}
		m.sessionList.SetSessions(msg.sessions)
		if m.uiState.ActiveSessionID != "" && m.sessionList.Get(m.uiState.ActiveSessionID) != nil {
			m.sessionList.SetActive(m.uiState.ActiveSessionID)
			return m, fetchHistoryCmd(m.api, m.uiState.ActiveSessionID)
		}
		return m, nil

	case historyMsg:
		m.loading = false
		if msg.err != nil {
			m.status = "history error: " + msg.err.Error()
			m.showErrorToast(m.status)
			return m, nil
		}
		if msg.sessionID != m.uiState.ActiveSessionID {
			return m, nil
		}
		m.turns = turnsFromHistory(msg.turns)
		m.renderChat()
		m.viewport.GotoBottom()
		return m, nil

	case stateSavedMsg:
		if msg.err != nil {
			m.log.Warn("state save failed", logging.F("err", msg.err))
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.reconfig.visible {
		switch msg.String() {
		case "esc":
			m.reconfig = reconfigModal{}
		case "enter":
			// Dismissing with enter reloads the session list; the server may
			// have dropped or renamed sessions while reconfiguring.
			m.reconfig = reconfigModal{}
			m.status = "reloading"
			return m, fetchSessionsCmd(m.api)
		case "q", "ctrl+c":
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab":
		if m.focus == focusSidebar {
			m.focus = focusChat
		} else {
			m.focus = focusSidebar
		}
		return m, nil
	case "b":
		m.sidebarCollapsed = !m.sidebarCollapsed
		m.resize(m.width, m.height)
		return m, m.saveStateCmd()
	case "r":
		m.status = "refreshing"
		return m, fetchSessionsCmd(m.api)
	case "ctrl+y":
		if id := m.uiState.ActiveSessionID; id != "" {
			m.copyWithToast(id, "session id copied")
		}
		return m, nil
	case "c":
		if answer := m.lastAssistantTurn(); answer != "" {
			m.copyWithToast(answer, "answer copied")
		}
		return m, nil
	case "enter":
		if m.focus == focusSidebar {
			return m, m.activateSelected()
		}
	case "h":
		m.uiState.ViewingHistory = !m.uiState.ViewingHistory
		if m.uiState.ViewingHistory {
			m.status = "history view"
		} else {
			m.status = "live view"
		}
		return m, nil
	}

	if m.focus == focusSidebar {
		return m, m.sessionList.Update(msg)
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) activateSelected() tea.Cmd {
	selected := m.sessionList.Selected()
	if selected == nil || selected.ID == m.uiState.ActiveSessionID {
		return nil
	}
	m.uiState.ActiveSessionID = selected.ID
	m.uiState.Executing = false
	m.sessionList.SetActive(selected.ID)

	// A fresh session gets a fresh trace: steps from the previous session
	// would be misattributed otherwise.
	m.statusWindow.Reset()
	m.genie.Reset()
	m.agent.Reset()
	m.turns = nil
	m.loading = true
	m.renderChat()
	m.status = "loading " + selected.ID
	return tea.Batch(fetchHistoryCmd(m.api, selected.ID), m.saveStateCmd())
}

// consumeEvents drains the subscriber channel, bounded per tick so a burst
// cannot starve input handling.
func (m *Model) consumeEvents() {
	if m.events == nil {
		return
	}
	for i := 0; i < maxEventsPerTick; i++ {
		select {
		case ev, ok := <-m.events:
			if !ok {
				m.events = nil
				return
			}
			if ev.Data != nil {
				m.dispatcher.Dispatch(ev.Data)
			} else {
				m.dispatcher.HandleTransportState(ev.State)
			}
		default:
			return
		}
	}
}

func (m *Model) expireBlinks(now time.Time) {
	if !m.caseBlinkUntil.IsZero() && now.After(m.caseBlinkUntil) {
		m.caseBlinkUntil = time.Time{}
	}
	if !m.knowBlinkUntil.IsZero() && now.After(m.knowBlinkUntil) {
		m.knowBlinkUntil = time.Time{}
	}
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	listWidth := width / 4
	if listWidth < minListWidth {
		listWidth = minListWidth
	}
	if listWidth > maxListWidth {
		listWidth = maxListWidth
	}
	if m.sidebarCollapsed {
		listWidth = 0
	}

	contentHeight := height - 3
	if contentHeight < minContentHeight {
		contentHeight = minContentHeight
	}

	chatWidth := width - listWidth - statusPaneWidth(width) - 2
	if chatWidth < minViewportWidth {
		chatWidth = minViewportWidth
	}

	m.sessionList.SetSize(listWidth, contentHeight)
	m.viewport.Width = chatWidth
	m.viewport.Height = contentHeight
	m.renderChat()
}

func statusPaneWidth(total int) int {
	w := total / 4
	if w < 24 {
		w = 24
	}
	if w > 48 {
		w = 48
	}
	return w
}

func (m *Model) lastAssistantTurn() string {
	for i := len(m.turns) - 1; i >= 0; i-- {
		if m.turns[i].role == "assistant" {
			return m.turns[i].content
		}
	}
	return ""
}

func (m *Model) renderChat() {
	if m.loading {
		m.viewport.SetContent(m.loader.View() + " loading")
		return
	}
	m.viewport.SetContent(renderTranscript(m.turns, m.viewport.Width))
}
