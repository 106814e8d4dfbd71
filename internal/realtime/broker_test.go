package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justsurfingit/jobtrackr/internal/logger"
)

func TestMemoryBrokerDeliversToOwnerOnly(t *testing.T) {
	b := NewMemoryBroker()
	mine, cancelMine := b.Subscribe("u1")
	defer cancelMine()
	theirs, cancelTheirs := b.Subscribe("u2")
	defer cancelTheirs()

	ev, err := NewEvent("notifications", EventInsert, "u1", map[string]any{"id": 7})
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), ev))

	select {
	case got := <-mine:
		assert.Equal(t, "notifications", got.Table)
		assert.JSONEq(t, `{"id":7}`, string(got.Payload))
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
	assert.Empty(t, theirs)
}

func TestMemoryBrokerUnsubscribe(t *testing.T) {
	b := NewMemoryBroker()
	ch, cancel := b.Subscribe("u1")
	assert.Equal(t, 1, b.Subscribers("u1"))

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, b.Subscribers("u1"))
}

func TestMemoryBrokerDropsForSlowSubscriber(t *testing.T) {
	b := NewMemoryBroker()
	ch, cancel := b.Subscribe("u1")
	defer cancel()

	for i := 0; i < subscriberBuffer+5; i++ {
		require.NoError(t, b.Publish(context.Background(), Event{UserID: "u1", Type: EventUpdate}))
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestRedisBrokerRelays(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	b := NewRedisBroker(client, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, ready) }()
	<-ready

	ch, unsubscribe := b.Subscribe("u1")
	defer unsubscribe()

	ev, err := NewEvent("notifications", EventDelete, "u1", map[string]any{"id": 3})
	require.NoError(t, err)
	require.NoError(t, b.Publish(ctx, ev))

	select {
	case got := <-ch:
		assert.Equal(t, EventDelete, got.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("event not relayed")
	}

	cancel()
	<-done
}
