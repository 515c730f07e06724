package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"tda/internal/logging"
	"tda/internal/types"
)

// scriptedOpener plays back one outcome per Subscribe call. A nil error
// yields a stream carrying the scripted frames, then closing.
type scriptedOpener struct {
	outcomes []openOutcome
	calls    int
}

type openOutcome struct {
	frames [][]byte
	err    error
}

func (o *scriptedOpener) Subscribe(ctx context.Context, userUUID string) (<-chan []byte, func(), error) {
	idx := o.calls
	o.calls++
	if idx >= len(o.outcomes) {
		return nil, nil, errors.New("no more scripted outcomes")
	}
	out := o.outcomes[idx]
	if out.err != nil {
		return nil, nil, out.err
	}
	ch := make(chan []byte, len(out.frames))
	for _, fr := range out.frames {
		ch <- fr
	}
	close(ch)
	return ch, func() {}, nil
}

func newTestSubscriber(opener StreamOpener, identity func() string) (*Subscriber, *[]time.Duration) {
	s := NewSubscriber(opener, identity, time.Second, 30*time.Second, 10, logging.Nop())
	slept := &[]time.Duration{}
	s.sleep = func(ctx context.Context, d time.Duration) bool {
		*slept = append(*slept, d)
		return ctx.Err() == nil
	}
	return s, slept
}

func drain(t *testing.T, s *Subscriber) []StreamEvent {
	t.Helper()
	var events []StreamEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("subscriber did not close its channel; got %d events", len(events))
		}
	}
}

func TestSubscriberNoIdentity(t *testing.T) {
	opener := &scriptedOpener{}
	s, _ := newTestSubscriber(opener, func() string { return "" })

	s.Run(context.Background())
	events := drain(t, s)

	if opener.calls != 0 {
		t.Fatalf("stream opened without an identity")
	}
	if len(events) != 1 || events[0].State != types.ConnDisconnected {
		t.Fatalf("events = %+v, want single disconnected", events)
	}
}

func TestSubscriberForwardsAndReconnects(t *testing.T) {
	opener := &scriptedOpener{outcomes: []openOutcome{
		{frames: [][]byte{[]byte(`{"type":"info"}`)}},
		{frames: [][]byte{[]byte(`{"type":"rest_task_complete"}`)}},
		{err: errors.New("down")},
	}}
	s, _ := newTestSubscriber(opener, func() string { return "u1" })
	s.maxRetries = 1

	s.Run(context.Background())
	events := drain(t, s)

	var data [][]byte
	var states []types.ConnState
	for _, ev := range events {
		if ev.Data != nil {
			data = append(data, ev.Data)
		} else {
			states = append(states, ev.State)
		}
	}
	if len(data) != 2 {
		t.Fatalf("forwarded %d data events, want 2", len(data))
	}
	if string(data[0]) != `{"type":"info"}` || string(data[1]) != `{"type":"rest_task_complete"}` {
		t.Fatalf("data out of order: %q %q", data[0], data[1])
	}

	// connecting, connected, reconnecting, connected, reconnecting, disconnected
	want := []types.ConnState{
		types.ConnConnecting, types.ConnConnected,
		types.ConnReconnecting, types.ConnConnected,
		types.ConnReconnecting, types.ConnDisconnected,
	}
	if len(states) != len(want) {
		t.Fatalf("state transitions = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("transition %d = %s, want %s", i, states[i], want[i])
		}
	}
}

func TestSubscriberRetryCeiling(t *testing.T) {
	opener := &scriptedOpener{outcomes: make([]openOutcome, 20)}
	for i := range opener.outcomes {
		opener.outcomes[i] = openOutcome{err: errors.New("refused")}
	}
	s, slept := newTestSubscriber(opener, func() string { return "u1" })

	s.Run(context.Background())
	events := drain(t, s)

	if opener.calls != 10 {
		t.Fatalf("opened %d times, want exactly 10 attempts", opener.calls)
	}
	last := events[len(events)-1]
	if last.State != types.ConnDisconnected {
		t.Fatalf("final state = %s, want disconnected", last.State)
	}
	// 9 sleeps separate 10 attempts.
	if len(*slept) != 9 {
		t.Fatalf("slept %d times, want 9", len(*slept))
	}
	for i, d := range *slept {
		base := time.Second << i
		if base > 30*time.Second {
			base = 30 * time.Second
		}
		lo := base - base/5
		hi := base + base/5
		if d < lo || d > hi {
			t.Fatalf("backoff %d = %v, want within [%v, %v]", i, d, lo, hi)
		}
	}
}

func TestSubscriberResetsBackoffAfterSuccess(t *testing.T) {
	opener := &scriptedOpener{outcomes: []openOutcome{
		{err: errors.New("refused")},
		{err: errors.New("refused")},
		{frames: [][]byte{[]byte(`{"type":"info"}`)}},
		{err: errors.New("refused")},
	}}
	s, slept := newTestSubscriber(opener, func() string { return "u1" })
	s.maxRetries = 3

	s.Run(context.Background())
	drain(t, s)

	// Sleeps: two pre-success (1s, 2s nominal), then one right after the
	// stream closes. That third sleep must be back near the initial backoff.
	if len(*slept) < 3 {
		t.Fatalf("slept %d times, want at least 3", len(*slept))
	}
	afterSuccess := (*slept)[2]
	if afterSuccess > time.Second+time.Second/5 {
		t.Fatalf("backoff after successful stream = %v, want near initial", afterSuccess)
	}
}

func TestSubscriberStopsWhenIdentityCleared(t *testing.T) {
	uuid := "u1"
	opener := &scriptedOpener{outcomes: []openOutcome{
		{frames: [][]byte{[]byte(`{"type":"info"}`)}},
	}}
	s, _ := newTestSubscriber(opener, func() string { return uuid })
	s.sleep = func(ctx context.Context, d time.Duration) bool {
		uuid = ""
		return true
	}

	s.Run(context.Background())
	events := drain(t, s)

	if last := events[len(events)-1]; last.State != types.ConnDisconnected {
		t.Fatalf("final state = %s, want disconnected after identity loss", last.State)
	}
	if opener.calls != 1 {
		t.Fatalf("stream reopened without an identity")
	}
}

func TestBackoffProgression(t *testing.T) {
	cases := []struct {
		failures int
		want     time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{9, 30 * time.Second},
	}
	for _, c := range cases {
		if got := backoff(time.Second, 30*time.Second, c.failures); got != c.want {
			t.Fatalf("backoff(%d) = %v, want %v", c.failures, got, c.want)
		}
	}
}

func TestJitterBounds(t *testing.T) {
	for i := 0; i < 200; i++ {
		d := jitter(10 * time.Second)
		if d < 8*time.Second || d > 12*time.Second {
			t.Fatalf("jitter out of bounds: %v", d)
		}
	}
}
