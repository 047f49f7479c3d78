package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lolerskatez/jellyconnect/internal/core/ports"
)

type captureSink struct {
	mu    sync.Mutex
	seen  []ports.NotificationKind
	users []string
}

func (c *captureSink) Notify(_ context.Context, kind ports.NotificationKind, userID string, _ map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, kind)
	c.users = append(c.users, userID)
	return nil
}

func (c *captureSink) snapshot() ([]ports.NotificationKind, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ports.NotificationKind(nil), c.seen...), append([]string(nil), c.users...)
}

func TestDispatcher_DeliversAsync(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(2, sink, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	if err := d.Notify(ctx, ports.NotifyWelcome, "u1", map[string]string{"email": "a@example.com"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		kinds, _ := sink.snapshot()
		if len(kinds) == 1 {
			if kinds[0] != ports.NotifyWelcome {
				t.Fatalf("unexpected kind %s", kinds[0])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("notification never delivered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDispatcher_PerUserOrdering(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(4, sink, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	order := []ports.NotificationKind{ports.NotifyWelcome, ports.NotifyExpiryWarning, ports.NotifyAccountDisabled}
	for _, kind := range order {
		if err := d.Notify(ctx, kind, "same-user", nil); err != nil {
			t.Fatalf("Notify: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		kinds, users := sink.snapshot()
		if len(kinds) == len(order) {
			for i, kind := range order {
				if kinds[i] != kind || users[i] != "same-user" {
					t.Fatalf("out-of-order delivery: %v", kinds)
				}
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d deliveries, got %d", len(order), len(kinds))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDispatcher_FullQueueDoesNotBlock(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(1, sink, zerolog.Nop())
	// Never started: the buffer fills and Notify must fail fast.

	ctx := context.Background()
	var err error
	for i := 0; i < channelBuffer+1; i++ {
		err = d.Notify(ctx, ports.NotifyWelcome, "u1", nil)
	}
	if err != ports.ErrNotifyQueueFull {
		t.Fatalf("expected ErrNotifyQueueFull, got %v", err)
	}
}
