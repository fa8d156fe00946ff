package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"rivo_backend/platform/logger"
)

type pingEvent struct{ BaseEvent }

func (pingEvent) EventName() string { return "test.ping" }

func TestPublishSyncJoinsErrors(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	calls := 0
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		calls++
		return errors.New("first")
	}))
	bus.Subscribe("test.ping", HandlerFunc(func(context.Context, Event) error {
		calls++
		return nil
	}))

	err := bus.PublishSync(context.Background(), pingEvent{NewBaseEvent()})
	if err == nil {
		t.Fatal("expected joined error")
	}
	if calls != 2 {
		t.Fatalf("expected both handlers to run, got %d", calls)
	}
}

func TestPublishRunsHandlersAfterCancel(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	var seen atomic.Int32
	bus.Subscribe("test.ping", HandlerFunc(func(ctx context.Context, _ Event) error {
		if ctx.Err() == nil {
			seen.Add(1)
		}
		return nil
	}))
	bus.Subscribe("test.other", HandlerFunc(func(context.Context, Event) error {
		t.Error("handler for another event must not run")
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.Publish(ctx, pingEvent{NewBaseEvent()})
	bus.Wait()

	if seen.Load() != 1 {
		t.Fatalf("expected handler to see a live context, got %d", seen.Load())
	}
}

type pongEvent struct{ BaseEvent }

func (pongEvent) EventName() string { return "test.pong" }

func TestSubscribeAllRoutesEveryPrototype(t *testing.T) {
	bus := NewInMemoryBus(logger.Discard())
	var names []string
	SubscribeAll(bus, HandlerFunc(func(_ context.Context, ev Event) error {
		names = append(names, ev.EventName())
		return nil
	}), pingEvent{}, pongEvent{})

	_ = bus.PublishSync(context.Background(), pingEvent{NewBaseEvent()})
	_ = bus.PublishSync(context.Background(), pongEvent{NewBaseEvent()})
	if len(names) != 2 || names[0] != "test.ping" || names[1] != "test.pong" {
		t.Fatalf("unexpected deliveries %v", names)
	}
}
