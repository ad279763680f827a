package signals

import (
	"context"
	"errors"
	"testing"
)

func TestBus_FireReachesAllSubscribers(t *testing.T) {
	bus := NewBus()

	var got []string
	bus.Subscribe(StreamStarted, func(ctx context.Context, userID string) error {
		got = append(got, "a:"+userID)
		return nil
	})
	bus.Subscribe(StreamStarted, func(ctx context.Context, userID string) error {
		got = append(got, "b:"+userID)
		return nil
	})

	if err := bus.Fire(context.Background(), StreamStarted, "@alice:test"); err != nil {
		t.Fatalf("fire failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 deliveries, got %d: %v", len(got), got)
	}
}

func TestBus_SignalsAreIndependent(t *testing.T) {
	bus := NewBus()

	started := 0
	stopped := 0
	bus.Subscribe(StreamStarted, func(ctx context.Context, userID string) error {
		started++
		return nil
	})
	bus.Subscribe(StreamStopped, func(ctx context.Context, userID string) error {
		stopped++
		return nil
	})

	if err := bus.Fire(context.Background(), StreamStopped, "@alice:test"); err != nil {
		t.Fatalf("fire failed: %v", err)
	}
	if started != 0 || stopped != 1 {
		t.Errorf("expected started=0 stopped=1, got started=%d stopped=%d", started, stopped)
	}
}

func TestBus_FireWithNoSubscribers(t *testing.T) {
	bus := NewBus()
	if err := bus.Fire(context.Background(), StreamStopped, "@alice:test"); err != nil {
		t.Fatalf("fire with no subscribers failed: %v", err)
	}
}

func TestBus_HandlerErrorPropagates(t *testing.T) {
	bus := NewBus()

	boom := errors.New("boom")
	bus.Subscribe(StreamStarted, func(ctx context.Context, userID string) error {
		return boom
	})

	err := bus.Fire(context.Background(), StreamStarted, "@alice:test")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped handler error, got %v", err)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	calls := 0
	unsub := bus.Subscribe(StreamStarted, func(ctx context.Context, userID string) error {
		calls++
		return nil
	})

	if got := bus.SubscriberCount(StreamStarted); got != 1 {
		t.Fatalf("expected 1 subscriber, got %d", got)
	}

	unsub()
	if got := bus.SubscriberCount(StreamStarted); got != 0 {
		t.Fatalf("expected 0 subscribers after unsubscribe, got %d", got)
	}

	if err := bus.Fire(context.Background(), StreamStarted, "@alice:test"); err != nil {
		t.Fatalf("fire failed: %v", err)
	}
	if calls != 0 {
		t.Errorf("unsubscribed handler was called %d times", calls)
	}
}

func TestSignal_String(t *testing.T) {
	if got := StreamStarted.String(); got != "stream_started" {
		t.Errorf("StreamStarted.String() = %q", got)
	}
	if got := StreamStopped.String(); got != "stream_stopped" {
		t.Errorf("StreamStopped.String() = %q", got)
	}
}
