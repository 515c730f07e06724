package store

import (
	"path/filepath"
	"testing"
	"time"

	"tda/internal/types"
)

func openTestStore(t *testing.T) CredentialStore {
	t.Helper()
	s, err := NewCredentialStore(filepath.Join(t.TempDir(), "credentials.db"))
	if err != nil {
		t.Fatalf("NewCredentialStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCredentialRoundTrip(t *testing.T) {
	s := openTestStore(t)

	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	in := &Credentials{
		Token:  "tok-123",
		User:   &types.User{UUID: "u-1", Email: "a@b.c", Role: "admin"},
		Expiry: expiry,
	}
	if err := s.Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Token != "tok-123" || out.User == nil || out.User.UUID != "u-1" {
		t.Fatalf("unexpected credentials: %+v", out)
	}
	if !out.Expiry.Equal(expiry) {
		t.Fatalf("expiry = %v, want %v", out.Expiry, expiry)
	}
}

func TestSaveDefaultsExpiry(t *testing.T) {
	s := openTestStore(t)
	if err := s.Save(&Credentials{Token: "tok"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	remaining := time.Until(out.Expiry)
	if remaining < 23*time.Hour || remaining > 25*time.Hour {
		t.Fatalf("default expiry not ~24h out: %v", out.Expiry)
	}
}

func TestClearRemovesSessionButKeepsDeviceID(t *testing.T) {
	s := openTestStore(t)
	id, err := s.DeviceID()
	if err != nil || id == "" {
		t.Fatalf("DeviceID: %q %v", id, err)
	}
	if err := s.Save(&Credentials{Token: "tok", User: &types.User{UUID: "u-1"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	out, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.Token != "" || out.User != nil {
		t.Fatalf("credentials survived clear: %+v", out)
	}
	again, err := s.DeviceID()
	if err != nil || again != id {
		t.Fatalf("device id changed after clear: %q vs %q", again, id)
	}
}

func TestCredentialExpiryHelpers(t *testing.T) {
	now := time.Now()
	live := &Credentials{Token: "tok", Expiry: now.Add(time.Hour)}
	if live.Expired(now) {
		t.Fatalf("live token reported expired")
	}
	if live.ExpiresWithin(now, 5*time.Minute) {
		t.Fatalf("hour-away token inside 5m window")
	}
	if !live.ExpiresWithin(now, 2*time.Hour) {
		t.Fatalf("hour-away token outside 2h window")
	}
	dead := &Credentials{Token: "tok", Expiry: now.Add(-time.Minute)}
	if !dead.Expired(now) {
		t.Fatalf("stale token reported live")
	}
	if (&Credentials{}).ExpiresWithin(now, time.Hour) {
		t.Fatalf("empty credentials should not report expiring")
	}
}
