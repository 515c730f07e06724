package app

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const toastDuration = 4 * time.Second

type toastLevel int

const (
	toastLevelInfo toastLevel = iota
	toastLevelWarning
	toastLevelError
)

func (m *Model) showInfoToast(message string) {
	m.showToast(toastLevelInfo, message)
}

func (m *Model) showWarningToast(message string) {
	m.showToast(toastLevelWarning, message)
}

func (m *Model) showErrorToast(message string) {
	m.showToast(toastLevelError, message)
}

func (m *Model) showToast(level toastLevel, message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	m.toastText = message
	m.toastLevel = level
	m.toastUntil = time.Now().Add(toastDuration)
}

func (m *Model) clearToast() {
	m.toastText = ""
	m.toastLevel = toastLevelInfo
	m.toastUntil = time.Time{}
}

func (m *Model) toastActive(at time.Time) bool {
	if strings.TrimSpace(m.toastText) == "" {
		return false
	}
	if m.toastUntil.IsZero() {
		return true
	}
	if at.IsZero() {
		at = time.Now()
	}
	return at.Before(m.toastUntil)
}

func (m *Model) toastLine(width int) string {
	if !m.toastActive(time.Now()) || width <= 0 {
		return ""
	}
	maxTextWidth := width - 4
	if maxTextWidth < 1 {
		maxTextWidth = 1
	}
	text := truncateToWidth(m.toastText, maxTextWidth)
	pill := m.toastStyle().Render(" " + text + " ")
	return lipgloss.PlaceHorizontal(width, lipgloss.Right, pill)
}

func (m *Model) toastStyle() lipgloss.Style {
	switch m.toastLevel {
	case toastLevelWarning:
		return toastWarningStyle
	case toastLevelError:
		return toastErrorStyle
	default:
		return toastInfoStyle
	}
}
