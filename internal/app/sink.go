package app

import (
	"time"

	"tda/internal/notify"
	"tda/internal/types"
)

var _ notify.Sink = (*Model)(nil)

// The methods below are the notify.Sink surface. The dispatcher calls them
// from the update goroutine while draining the event channel.

func (m *Model) SetConnState(state types.ConnState) {
	m.connSt = state
	switch state {
	case types.ConnConnected:
		m.status = "connected"
	case types.ConnReconnecting:
		m.status = "reconnecting"
		m.showWarningToast("connection lost, reconnecting")
	case types.ConnDisconnected:
		m.status = "disconnected"
		m.showErrorToast("notification stream disconnected")
	default:
		m.status = string(state)
	}
}

func (m *Model) ShowReconfiguration(message string, f types.Fields) {
	if message == "" {
		message = "Server configuration changed. Some features may restart."
	}
	m.reconfig = reconfigModal{visible: true, message: message}
}

func (m *Model) ShowInfoBanner(message string) {
	m.showInfoToast(message)
}

func (m *Model) ShowWarningBanner(message string) {
	m.showWarningToast(message)
}

func (m *Model) InsertSession(s *types.Session) {
	m.sessionList.Insert(s)
	if !s.IsSlave() {
		m.sessionList.MarkUnread(s.ID)
	}
}

func (m *Model) UpdateSessionMeta(id, name, model string) {
	m.sessionList.UpdateMeta(id, name, model)
}

func (m *Model) TouchSession(id string) {
	if s := m.sessionList.Get(id); s != nil {
		s.UpdatedAt = time.Now()
	}
	m.sessionList.Touch(id)
}

func (m *Model) MarkSessionActivity(id string) {
	m.sessionList.MarkUnread(id)
}

func (m *Model) AppendChatTurn(sessionID, role, content string) {
	if sessionID != "" && sessionID != m.uiState.ActiveSessionID {
		m.sessionList.MarkUnread(sessionID)
		return
	}
	m.turns = append(m.turns, chatTurn{role: role, content: content, at: time.Now()})
	m.renderChat()
	m.viewport.GotoBottom()
}

func (m *Model) SetIndicator(target string, busy bool) {
	m.indicators[target] = busy
}

func (m *Model) BlinkCaseIndicator() {
	m.caseBlinkUntil = time.Now().Add(blinkDuration)
}

func (m *Model) BlinkKnowledgeIndicator() {
	m.knowBlinkUntil = time.Now().Add(blinkDuration)
}

func (m *Model) AppendStep(step types.StepRecord) {
	m.statusWindow.Append(step)
}

func (m *Model) CompleteActiveStep() {
	m.statusWindow.CompleteActive()
}
