package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestName(t *testing.T) {
	if got := Name("User", ActionCreated); got != "user.created" {
		t.Errorf("Name = %q, want user.created", got)
	}
}

func TestPublishExactMatch(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var got Event
	bus.Subscribe("user.created", func(ctx context.Context, e Event) error {
		got = e
		return nil
	})

	bus.Publish(context.Background(), Event{Name: "user.created", Model: "User", Action: ActionCreated, ID: "abc", Count: 1})

	if got.ID != "abc" || got.Model != "User" || got.Count != 1 {
		t.Errorf("handler received %+v", got)
	}
}

func TestPublishNoMatch(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	called := false
	bus.Subscribe("user.deleted", func(ctx context.Context, e Event) error {
		called = true
		return nil
	})

	bus.Publish(context.Background(), Event{Name: "user.created"})
	if called {
		t.Error("handler for a different event was called")
	}
}

func TestPublishWildcards(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var order []string
	var mu sync.Mutex
	record := func(tag string) Handler {
		return func(ctx context.Context, e Event) error {
			mu.Lock()
			order = append(order, tag)
			mu.Unlock()
			return nil
		}
	}

	bus.Subscribe("*", record("all"))
	bus.Subscribe("user.*", record("user"))
	bus.Subscribe("user.updated", record("exact"))
	bus.Subscribe("post.*", record("post"))

	bus.Publish(context.Background(), Event{Name: "user.updated"})

	want := []string{"exact", "user", "all"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order = %v, want %v", order, want)
			break
		}
	}
}

func TestPublishHandlerError(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var second atomic.Bool
	bus.Subscribe("*", func(ctx context.Context, e Event) error {
		return errors.New("boom")
	})
	bus.Subscribe("*", func(ctx context.Context, e Event) error {
		second.Store(true)
		return nil
	})

	bus.Publish(context.Background(), Event{Name: "user.created"})
	if !second.Load() {
		t.Error("a failing handler stopped delivery")
	}
}

func TestPublishFromHandler(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var nested atomic.Bool
	bus.Subscribe("user.created", func(ctx context.Context, e Event) error {
		bus.Subscribe("audit.written", func(ctx context.Context, e Event) error {
			nested.Store(true)
			return nil
		})
		bus.Publish(ctx, Event{Name: "audit.written"})
		return nil
	})

	done := make(chan struct{})
	go func() {
		bus.Publish(context.Background(), Event{Name: "user.created"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publishing from a handler deadlocked")
	}
	if !nested.Load() {
		t.Error("nested event not delivered")
	}
}

func TestPublishAsync(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	done := make(chan Event, 1)
	bus.Subscribe("post.deleted", func(ctx context.Context, e Event) error {
		done <- e
		return nil
	})

	bus.PublishAsync(context.Background(), Event{Name: "post.deleted", Count: 3})

	select {
	case e := <-done:
		if e.Count != 3 {
			t.Errorf("Count = %d, want 3", e.Count)
		}
	case <-time.After(time.Second):
		t.Fatal("async event not delivered")
	}
}

func TestHasSubscribers(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	noop := func(ctx context.Context, e Event) error { return nil }

	if bus.HasSubscribers("user.created") {
		t.Error("empty bus reports subscribers")
	}

	bus.Subscribe("user.*", noop)
	if !bus.HasSubscribers("user.created") {
		t.Error("model wildcard not matched")
	}
	if bus.HasSubscribers("post.created") {
		t.Error("model wildcard matched another model")
	}

	bus.Subscribe("*", noop)
	if !bus.HasSubscribers("post.created") {
		t.Error("global wildcard not matched")
	}
}
