package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishAndSubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ch := bus.Subscribe(EventEntityUpdated)
	require.NotNil(t, ch)

	bus.Publish(NewEvent(EventEntityUpdated, "team", map[string]string{"id": "t1"}))

	select {
	case received := <-ch:
		assert.Equal(t, EventEntityUpdated, received.Type)
		assert.Equal(t, "team", received.Entity)
		assert.Equal(t, "t1", received.Payload["id"])
		assert.False(t, received.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestBus_SubscribersAreTypeScoped(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	updated := bus.Subscribe(EventEntityUpdated)
	deleted := bus.Subscribe(EventEntityDeleted)

	bus.Publish(NewEvent(EventEntityDeleted, "task", map[string]string{"id": "k1"}))

	select {
	case received := <-deleted:
		assert.Equal(t, "task", received.Entity)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case ev, ok := <-updated:
		if ok {
			t.Fatalf("unexpected event on updated channel: %+v", ev)
		}
	default:
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	first := bus.Subscribe(EventUserLoggedOut)
	second := bus.Subscribe(EventUserLoggedOut)

	bus.Publish(NewEvent(EventUserLoggedOut, "user", map[string]string{"id": "u1"}))

	for _, ch := range []<-chan Event{first, second} {
		select {
		case received := <-ch:
			assert.Equal(t, "u1", received.Payload["id"])
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for event")
		}
	}
}

func TestBus_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	_ = bus.Subscribe(EventEntityUpdated)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(NewEvent(EventEntityUpdated, "task", nil))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestBus_Close(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(EventEntityUpdated)

	bus.Close()

	_, ok := <-ch
	assert.False(t, ok, "subscriber channel should be closed")

	// publishing after close is a no-op
	bus.Publish(NewEvent(EventEntityUpdated, "team", nil))
	bus.Close()
}

func TestBus_SubscribeAfterClose(t *testing.T) {
	bus := NewBus()
	bus.Close()

	ch := bus.Subscribe(EventEntityUpdated)
	require.NotNil(t, ch)

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel from a closed bus should be closed")
	case <-time.After(time.Second):
		t.Fatal("channel from a closed bus never closed")
	}
}
