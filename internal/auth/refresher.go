package auth

import (
	"context"
	"time"

	"tda/internal/logging"
)

const (
	// refreshWindow is how close to expiry a token may get before the
	// background refresher renews it proactively.
	refreshWindow = 10 * time.Minute

	defaultCheckInterval = time.Minute
)

// Refresher keeps the stored token fresh: renew when expiry is inside the
// window, force-clear when already past it. Ticks are idempotent; a tick that
// finds nothing to do is a no-op.
type Refresher struct {
	client   *Client
	interval time.Duration
	log      logging.Logger
	now      func() time.Time
}

func NewRefresher(client *Client, log logging.Logger) *Refresher {
	if log == nil {
		log = logging.Nop()
	}
	return &Refresher{
		client:   client,
		interval: defaultCheckInterval,
		log:      log,
		now:      time.Now,
	}
}

func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Refresher) tick(ctx context.Context) {
	creds := r.client.credentials()
	if creds.Token == "" {
		return
	}
	now := r.now()
	if creds.Expired(now) {
		r.log.Warn("token expired, clearing session")
		r.client.ClearSession()
		return
	}
	if !creds.ExpiresWithin(now, refreshWindow) {
		return
	}
	if err := r.client.RefreshToken(ctx); err != nil {
		// Not fatal: the next tick retries, and a hard 401 already cleared
		// the session inside Do.
		r.log.Warn("token refresh failed", logging.F("err", err))
		return
	}
	r.log.Debug("token refreshed")
}
