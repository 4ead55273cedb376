package sse

import (
	"context"
	"ms-booking/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitReachesOnlyThatEvent(t *testing.T) {
	e := NewInventoryEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := e.Subscribe(ctx, "evt-a")
	b := e.Subscribe(ctx, "evt-b")

	e.Emit(models.InventoryUpdate{EventID: "evt-a", TicketsAvailable: 4, Capacity: 10, Reason: models.InventoryReasonBooked})

	select {
	case got := <-a:
		assert.Equal(t, 4, got.TicketsAvailable)
		assert.Equal(t, models.InventoryReasonBooked, got.Reason)
	case <-time.After(time.Second):
		t.Fatal("subscriber of evt-a got nothing")
	}

	select {
	case got := <-b:
		t.Fatalf("subscriber of evt-b got %+v", got)
	default:
	}
}

func TestSlowSubscriberIsSkipped(t *testing.T) {
	e := NewInventoryEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := e.Subscribe(ctx, "evt-a")
	for i := 0; i < subscriberBuffer+5; i++ {
		e.Emit(models.InventoryUpdate{EventID: "evt-a", TicketsAvailable: i})
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestUnsubscribeOnContextDone(t *testing.T) {
	e := NewInventoryEmitter()
	ctx, cancel := context.WithCancel(context.Background())

	ch := e.Subscribe(ctx, "evt-a")
	require.Equal(t, 1, e.ClientCount("evt-a"))

	cancel()
	require.Eventually(t, func() bool { return e.ClientCount("evt-a") == 0 }, time.Second, 10*time.Millisecond)

	_, open := <-ch
	assert.False(t, open)

	// emitting after removal must not panic on the closed channel
	e.Emit(models.InventoryUpdate{EventID: "evt-a"})
}
