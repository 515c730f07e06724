package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"tda/internal/logging"
	"tda/internal/store"
	"tda/internal/types"
)

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Client owns the token lifecycle against the /api/v1/auth surface and
// provides the authenticated request primitive used by the API client.
type Client struct {
	baseURL string
	http    *http.Client
	store   store.CredentialStore
	log     logging.Logger

	mu    sync.Mutex
	creds *store.Credentials

	// onSessionCleared fires after a forced clear (401 or hard expiry) so the
	// UI can drop back to the login surface.
	onSessionCleared func()
}

func New(baseURL string, credStore store.CredentialStore, log logging.Logger) *Client {
	if log == nil {
		log = logging.Nop()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		store:   credStore,
		log:     log,
	}
	if creds, err := credStore.Load(); err == nil {
		c.creds = creds
	} else {
		log.Warn("credential load failed", logging.F("err", err))
		c.creds = &store.Credentials{}
	}
	return c
}

func (c *Client) OnSessionCleared(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSessionCleared = fn
}

func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.creds.Expired(time.Now())
}

func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.creds == nil {
		return ""
	}
	return c.creds.Token
}

func (c *Client) User() *types.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.creds == nil {
		return nil
	}
	return c.creds.User
}

func (c *Client) credentials() *store.Credentials {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.creds == nil {
		return &store.Credentials{}
	}
	snapshot := *c.creds
	return &snapshot
}

// SetSession replaces the stored session. A zero expiry gets the default TTL.
func (c *Client) SetSession(token string, user *types.User, expiry time.Time) error {
	if expiry.IsZero() {
		expiry = time.Now().Add(store.DefaultTokenTTL)
	}
	creds := &store.Credentials{Token: token, User: user, Expiry: expiry}
	if err := c.store.Save(creds); err != nil {
		return err
	}
	c.mu.Lock()
	c.creds = creds
	c.mu.Unlock()
	return nil
}

func (c *Client) ClearSession() {
	if err := c.store.Clear(); err != nil {
		c.log.Warn("credential clear failed", logging.F("err", err))
	}
	c.mu.Lock()
	c.creds = &store.Credentials{}
	cleared := c.onSessionCleared
	c.mu.Unlock()
	if cleared != nil {
		cleared()
	}
}

type authResponse struct {
	Status    string      `json:"status"`
	Message   string      `json:"message"`
	Token     string      `json:"token,omitempty"`
	User      *types.User `json:"user,omitempty"`
	ExpiresAt string      `json:"expires_at,omitempty"`
}

func (r *authResponse) expiry() time.Time {
	if r == nil || r.ExpiresAt == "" {
		return time.Time{}
	}
	at, err := time.Parse(time.RFC3339, r.ExpiresAt)
	if err != nil {
		return time.Time{}
	}
	return at
}

func (c *Client) Login(ctx context.Context, email, password string) (*types.User, error) {
	body := map[string]string{"email": email, "password": password}
	var resp authResponse
	if err := c.post(ctx, "/api/v1/auth/login", body, false, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, errors.New("login response missing token")
	}
	if err := c.SetSession(resp.Token, resp.User, resp.expiry()); err != nil {
		return nil, err
	}
	c.log.Info("logged in", logging.F("user", email))
	return resp.User, nil
}

func (c *Client) Register(ctx context.Context, email, password, displayName string) (*types.User, error) {
	body := map[string]string{"email": email, "password": password, "display_name": displayName}
	var resp authResponse
	if err := c.post(ctx, "/api/v1/auth/register", body, false, &resp); err != nil {
		return nil, err
	}
	// Some deployments log the new user straight in.
	if resp.Token != "" {
		if err := c.SetSession(resp.Token, resp.User, resp.expiry()); err != nil {
			return nil, err
		}
	}
	return resp.User, nil
}

func (c *Client) Logout(ctx context.Context) error {
	err := c.post(ctx, "/api/v1/auth/logout", nil, true, nil)
	c.ClearSession()
	if err != nil && !errors.Is(err, ErrUnauthorized) {
		return err
	}
	return nil
}

func (c *Client) RefreshToken(ctx context.Context) error {
	var resp authResponse
	if err := c.post(ctx, "/api/v1/auth/refresh", nil, true, &resp); err != nil {
		return err
	}
	if resp.Token == "" {
		return errors.New("refresh response missing token")
	}
	user := resp.User
	if user == nil {
		user = c.User()
	}
	return c.SetSession(resp.Token, user, resp.expiry())
}

func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	body := map[string]string{"current_password": current, "new_password": next}
	return c.post(ctx, "/api/v1/auth/change-password", body, true, nil)
}

func (c *Client) Me(ctx context.Context) (*types.User, error) {
	var resp authResponse
	if err := c.Do(ctx, http.MethodGet, "/api/v1/auth/me", nil, &resp); err != nil {
		return nil, err
	}
	if resp.User != nil {
		c.mu.Lock()
		if c.creds != nil {
			c.creds.User = resp.User
		}
		c.mu.Unlock()
	}
	return resp.User, nil
}

func (c *Client) post(ctx context.Context, path string, body any, requireAuth bool, out any) error {
	if requireAuth {
		return c.Do(ctx, http.MethodPost, path, body, out)
	}
	return c.do(ctx, http.MethodPost, path, body, "", out)
}

// Do issues an authenticated request, attaching the bearer token. A 401
// clears the stored session and returns ErrUnauthorized.
func (c *Client) Do(ctx context.Context, method, path string, body any, out any) error {
	token := c.Token()
	if strings.TrimSpace(token) == "" {
		return ErrNotAuthenticated
	}
	err := c.do(ctx, method, path, body, token, out)
	if errors.Is(err, ErrUnauthorized) {
		c.log.Warn("session rejected by server, clearing", logging.F("path", path))
		c.ClearSession()
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s: %w", path, ErrUnauthorized)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeAPIError(resp *http.Response) error {
	var payload struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	message := payload.Message
	if message == "" {
		message = payload.Error
	}
	if message == "" {
		message = resp.Status
	}
	return &APIError{StatusCode: resp.StatusCode, Message: message}
}

type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}
