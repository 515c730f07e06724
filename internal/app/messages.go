package app

import (
	"time"

	"tda/internal/client"
	"tda/internal/types"
)

type tickMsg time.Time

type sessionsMsg struct {
	sessions []*types.Session
	err      error
}

type historyMsg struct {
	sessionID string
	turns     []client.ChatTurn
	err       error
}

type healthMsg struct {
	err error
}

type stateSavedMsg struct {
	err error
}
