package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdatesChannel(t *testing.T) {
	assert.Equal(t, "sale:updates:user-1", UpdatesChannel("user-1"))
}

func TestMemoryBroker_PublishSubscribe(t *testing.T) {
	broker := NewMemoryBroker()
	ctx := context.Background()

	messages, cancel, err := broker.Subscribe(ctx, "sale:updates:user-1")
	require.NoError(t, err)
	defer cancel()

	err = broker.Publish(ctx, "sale:updates:user-1", []byte(`{"id":"sale-1"}`))
	require.NoError(t, err)

	select {
	case msg := <-messages:
		assert.JSONEq(t, `{"id":"sale-1"}`, msg)
	case <-time.After(time.Second):
		t.Fatal("expected a message")
	}
}

func TestMemoryBroker_NoSubscriberDropsEvent(t *testing.T) {
	broker := NewMemoryBroker()

	err := broker.Publish(context.Background(), "sale:updates:user-1", []byte("dropped"))
	assert.NoError(t, err, "publishing with nobody listening is fire-and-forget")
}

func TestMemoryBroker_ChannelsAreIndependent(t *testing.T) {
	broker := NewMemoryBroker()
	ctx := context.Background()

	messages, cancel, err := broker.Subscribe(ctx, "sale:updates:user-1")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, broker.Publish(ctx, "sale:updates:user-2", []byte("other user")))

	select {
	case msg := <-messages:
		t.Fatalf("unexpected message on user-1 channel: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBroker_CancelStopsDelivery(t *testing.T) {
	broker := NewMemoryBroker()
	ctx := context.Background()

	messages, cancel, err := broker.Subscribe(ctx, "sale:updates:user-1")
	require.NoError(t, err)

	cancel()

	_, open := <-messages
	assert.False(t, open, "subscription channel must close on cancel")
}
