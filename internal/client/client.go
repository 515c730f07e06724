package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"tda/internal/auth"
	"tda/internal/logging"
	"tda/internal/types"
)

// Client is the REST surface of the TDA backend, layered on the auth
// client's authenticated request primitive.
type Client struct {
	baseURL string
	auth    *auth.Client
	http    *http.Client
	log     logging.Logger
}

func New(baseURL string, authClient *auth.Client, log logging.Logger) *Client {
	if log == nil {
		log = logging.Nop()
	}
	return &Client{
		baseURL: baseURL,
		auth:    authClient,
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

func (c *Client) Auth() *auth.Client {
	return c.auth
}

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/health", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("health: %s", resp.Status)
	}
	return &HealthResponse{OK: true}, nil
}

func (c *Client) ListSessions(ctx context.Context) ([]*types.Session, error) {
	var resp SessionsResponse
	if err := c.auth.Do(ctx, http.MethodGet, "/api/v1/sessions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

func (c *Client) ChatHistory(ctx context.Context, sessionID string, limit int) ([]ChatTurn, error) {
	path := fmt.Sprintf("/api/v1/sessions/%s/history", sessionID)
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	var resp HistoryResponse
	if err := c.auth.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Turns, nil
}
