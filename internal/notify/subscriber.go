package notify

import (
	"context"
	"math/rand"
	"time"

	"tda/internal/logging"
	"tda/internal/types"
)

// StreamOpener opens one push stream attempt. internal/client.Client
// satisfies it; tests use a scripted fake.
type StreamOpener interface {
	Subscribe(ctx context.Context, userUUID string) (<-chan []byte, func(), error)
}

// StreamEvent is what the subscriber hands to the UI loop. Data is nil for
// pure connection-state transitions.
type StreamEvent struct {
	State types.ConnState
	Data  []byte
}

// Subscriber supervises the notification stream: it opens it, forwards
// events, and reconnects with jittered exponential backoff when the stream
// drops. After maxRetries consecutive failed attempts it gives up and
// reports a terminal disconnect.
type Subscriber struct {
	opener   StreamOpener
	identity func() string
	log      logging.Logger

	initialBackoff time.Duration
	maxBackoff     time.Duration
	maxRetries     int

	events chan StreamEvent

	// sleep is swapped out in tests so backoff runs without wall time.
	sleep func(ctx context.Context, d time.Duration) bool
}

func NewSubscriber(opener StreamOpener, identity func() string, initial, max time.Duration, retries int, log logging.Logger) *Subscriber {
	if log == nil {
		log = logging.Nop()
	}
	if initial <= 0 {
		initial = time.Second
	}
	if max < initial {
		max = initial
	}
	if retries <= 0 {
		retries = 10
	}
	return &Subscriber{
		opener:         opener,
		identity:       identity,
		log:            log,
		initialBackoff: initial,
		maxBackoff:     max,
		maxRetries:     retries,
		events:         make(chan StreamEvent, 256),
		sleep:          sleepCtx,
	}
}

// Events is the channel the UI drains each tick. It is closed when the
// supervision loop exits, whether by cancellation, identity loss, or the
// retry ceiling.
func (s *Subscriber) Events() <-chan StreamEvent {
	return s.events
}

// Run blocks until ctx is cancelled or the subscriber gives up. It is meant
// to run on its own goroutine alongside the UI loop.
func (s *Subscriber) Run(ctx context.Context) {
	defer close(s.events)

	if s.identity() == "" {
		s.log.Warn("no authenticated identity, notification stream unavailable")
		s.emit(ctx, StreamEvent{State: types.ConnDisconnected})
		return
	}

	failures := 0
	for {
		if ctx.Err() != nil {
			return
		}
		if failures == 0 {
			s.emit(ctx, StreamEvent{State: types.ConnConnecting})
		} else {
			s.emit(ctx, StreamEvent{State: types.ConnReconnecting})
		}

		uuid := s.identity()
		if uuid == "" {
			s.log.Warn("identity cleared, stopping notification stream")
			s.emit(ctx, StreamEvent{State: types.ConnDisconnected})
			return
		}

		ch, cancel, err := s.opener.Subscribe(ctx, uuid)
		if err != nil {
			failures++
			if failures >= s.maxRetries {
				s.log.Error("notification stream gave up",
					logging.F("attempts", failures), logging.F("err", err))
				s.emit(ctx, StreamEvent{State: types.ConnDisconnected})
				return
			}
			delay := jitter(backoff(s.initialBackoff, s.maxBackoff, failures))
			s.log.Warn("notification stream open failed",
				logging.F("attempt", failures), logging.F("retry_in", delay), logging.F("err", err))
			if !s.sleep(ctx, delay) {
				return
			}
			continue
		}

		s.log.Info("notification stream open")
		failures = 0
		s.emit(ctx, StreamEvent{State: types.ConnConnected})

		if !s.forward(ctx, ch) {
			cancel()
			return
		}
		cancel()
		// The server closed the stream; treat it as one failed attempt so a
		// flapping backend still hits the retry ceiling.
		failures = 1
		delay := jitter(backoff(s.initialBackoff, s.maxBackoff, failures))
		s.log.Warn("notification stream closed", logging.F("retry_in", delay))
		if !s.sleep(ctx, delay) {
			return
		}
	}
}

// forward pumps stream data into the events channel. It returns false when
// the context ended and true when the stream itself closed.
func (s *Subscriber) forward(ctx context.Context, ch <-chan []byte) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case data, ok := <-ch:
			if !ok {
				return true
			}
			s.emit(ctx, StreamEvent{State: types.ConnConnected, Data: data})
		}
	}
}

// emit never blocks: if the UI stops draining, events are dropped rather
// than wedging the supervision loop.
func (s *Subscriber) emit(_ context.Context, ev StreamEvent) {
	select {
	case s.events <- ev:
	default:
		s.log.Warn("event channel full, dropping", logging.F("state", string(ev.State)))
	}
}

func backoff(initial, max time.Duration, failures int) time.Duration {
	d := initial
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// jitter spreads reconnect attempts by up to 20% in either direction.
func jitter(d time.Duration) time.Duration {
	spread := int64(d) / 5
	if spread == 0 {
		return d
	}
	return d + time.Duration(rand.Int63n(2*spread)-spread)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
