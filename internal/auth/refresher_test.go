package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"tda/internal/types"
)

func TestRefresherRenewsInsideWindow(t *testing.T) {
	refreshed := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refreshed++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success", "token": "tok-2",
			"expires_at": time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
		})
	}))
	_ = client.SetSession("tok-1", &types.User{UUID: "u-1"}, time.Now().Add(5*time.Minute))

	r := NewRefresher(client, nil)
	r.tick(context.Background())

	if refreshed != 1 {
		t.Fatalf("refresh calls = %d", refreshed)
	}
	if client.Token() != "tok-2" {
		t.Fatalf("token = %q", client.Token())
	}

	// Renewed token is now far from expiry, a second tick does nothing.
	r.tick(context.Background())
	if refreshed != 1 {
		t.Fatalf("tick not idempotent: %d refreshes", refreshed)
	}
}

func TestRefresherClearsExpiredToken(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected for an expired token")
	}))
	_ = client.SetSession("tok-1", nil, time.Now().Add(-time.Minute))

	r := NewRefresher(client, nil)
	r.tick(context.Background())

	if client.Token() != "" {
		t.Fatalf("expired token not cleared")
	}
}

func TestRefresherIgnoresMissingToken(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected without a token")
	}))
	r := NewRefresher(client, nil)
	r.tick(context.Background())
}
