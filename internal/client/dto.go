package client

import (
	"time"

	"tda/internal/types"
)

type HealthResponse struct {
	OK      bool   `json:"ok"`
	Version string `json:"version,omitempty"`
}

type SessionsResponse struct {
	Sessions []*types.Session `json:"sessions"`
}

type ChatTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type HistoryResponse struct {
	Turns []ChatTurn `json:"turns"`
}
