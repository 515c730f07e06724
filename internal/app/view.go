package app

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"tda/internal/types"
)

func (m *Model) View() string {
	header := headerStyle.Render("TDA Console")
	conn := m.connBadge()
	indicators := m.indicatorStrip()
	headerLine := lipgloss.JoinHorizontal(lipgloss.Top, header, "  ", conn, "  ", indicators)

	chatHeader := headerStyle.Render(m.chatTitle())
	chatView := lipgloss.JoinVertical(lipgloss.Left, chatHeader, m.viewport.View())

	statusView := m.statusPane()

	body := chatView
	if statusView != "" {
		body = joinWithDivider(chatView, statusView)
	}
	if !m.sidebarCollapsed {
		body = joinWithDivider(m.sessionList.View(), body)
	}

	help := helpStyle.Render("q quit · tab focus · enter open · b sidebar · r refresh · h history · c copy answer · ctrl+y copy id")
	status := statusStyle.Render(m.status)
	footer := renderStatusLine(m.width, help, status)

	lines := []string{headerLine, body, footer}
	if toast := m.toastLine(m.width); toast != "" {
		lines = append(lines, toast)
	}
	out := lipgloss.JoinVertical(lipgloss.Left, lines...)

	if m.reconfig.visible {
		modal := modalBorderStyle.Render("Reconfiguration\n\n" + m.reconfig.message + "\n\npress enter to dismiss")
		if m.width > 0 && m.height > 0 {
			return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal)
		}
		return modal
	}
	return out
}

func (m *Model) chatTitle() string {
	if id := m.uiState.ActiveSessionID; id != "" {
		if s := m.sessionList.Get(id); s != nil {
			title := s.Name
			if title == "" {
				title = s.ID
			}
			if s.Model != "" {
				title += " · " + s.Model
			}
			return title
		}
		return id
	}
	return "No session"
}

func (m *Model) connBadge() string {
	switch m.connSt {
	case types.ConnConnected:
		return connectedStyle.Render("● connected")
	case types.ConnReconnecting, types.ConnConnecting:
		return reconnectingStyle.Render(m.loader.View() + " " + string(m.connSt))
	default:
		return disconnectedStyle.Render("○ disconnected")
	}
}

func (m *Model) indicatorStrip() string {
	now := time.Now()
	llm := renderIndicator("llm", m.indicators["llm"])
	if m.indicators["llm"] {
		llm += " " + m.loader.View()
	}
	parts := []string{
		renderIndicator("db", m.indicators["db"]),
		llm,
		renderBlink("case", m.caseBlinkUntil, now),
		renderBlink("kb", m.knowBlinkUntil, now),
	}
	return strings.Join(parts, " ")
}

func renderIndicator(name string, busy bool) string {
	if busy {
		return indicatorBusyStyle.Render("[" + name + "]")
	}
	return indicatorIdleStyle.Render("[" + name + "]")
}

func renderBlink(name string, until, now time.Time) string {
	if !until.IsZero() && now.Before(until) {
		return indicatorBusyStyle.Render("[" + name + "]")
	}
	return indicatorIdleStyle.Render("[" + name + "]")
}

func (m *Model) statusPane() string {
	width := statusPaneWidth(m.width)
	height := m.viewport.Height - 4
	if height < 3 {
		height = 3
	}

	sections := []string{headerStyle.Render("Activity")}
	if g := m.genie.Render(width); g != "" {
		sections = append(sections, g)
	}
	if a := m.agent.Render(width); a != "" {
		sections = append(sections, a)
	}
	if steps := m.statusWindow.Render(width, height); steps != "" {
		sections = append(sections, steps)
	} else if len(sections) == 1 {
		sections = append(sections, statusStyle.Render("idle"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func joinWithDivider(left, right string) string {
	height := lipgloss.Height(left)
	if h := lipgloss.Height(right); h > height {
		height = h
	}
	if height < 1 {
		height = 1
	}
	divider := strings.Repeat("│\n", height-1) + "│"
	return lipgloss.JoinHorizontal(lipgloss.Top, left, dividerStyle.Render(divider), right)
}

func renderStatusLine(width int, help, status string) string {
	if width <= 0 {
		return help + " " + status
	}
	gap := width - lipgloss.Width(help) - lipgloss.Width(status)
	if gap < 1 {
		return truncateToWidth(help+" "+status, width)
	}
	return help + strings.Repeat(" ", gap) + status
}
