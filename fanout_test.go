package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_DeliversToTopicSubscribers(t *testing.T) {
	hub := NewHub(nopLogger())
	aapl := hub.Subscribe(StockTopic("AAPL"))
	defer aapl.Close()
	both := hub.Subscribe(StockTopic("AAPL"), StockTopic("MSFT"))
	defer both.Close()

	require.NoError(t, hub.Publish(context.Background(), StockTopic("AAPL"), `{"symbol":"AAPL"}`))
	require.NoError(t, hub.Publish(context.Background(), StockTopic("MSFT"), `{"symbol":"MSFT"}`))

	got := <-aapl.C
	assert.Equal(t, "stock/AAPL", got.Topic)
	assert.Equal(t, `{"symbol":"AAPL"}`, got.Data)
	assert.Contains(t, got.ID, "urn:uuid:")
	assert.Len(t, aapl.C, 0)

	assert.Equal(t, "stock/AAPL", (<-both.C).Topic)
	assert.Equal(t, "stock/MSFT", (<-both.C).Topic)
}

func TestHub_PublishWithoutSubscribers(t *testing.T) {
	hub := NewHub(nopLogger())
	assert.NoError(t, hub.Publish(context.Background(), "stock/NONE", "{}"))
	assert.Equal(t, 0, hub.SubscriberCount("stock/NONE"))
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(nopLogger())
	hub.bufferSize = 2
	sub := hub.Subscribe("user/1/notifications")
	defer sub.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, hub.Publish(context.Background(), "user/1/notifications", "{}"))
	}
	assert.Len(t, sub.C, 2)
}

func TestHub_CloseUnsubscribesAndClosesChannel(t *testing.T) {
	hub := NewHub(nopLogger())
	sub := hub.Subscribe("stock/AAPL", "stock/MSFT")
	assert.Equal(t, 1, hub.SubscriberCount("stock/AAPL"))

	sub.Close()
	sub.Close()

	assert.Equal(t, 0, hub.SubscriberCount("stock/AAPL"))
	assert.Equal(t, 0, hub.SubscriberCount("stock/MSFT"))
	_, open := <-sub.C
	assert.False(t, open)

	assert.NoError(t, hub.Publish(context.Background(), "stock/AAPL", "{}"))
}

func TestTopicNames(t *testing.T) {
	assert.Equal(t, "stock/BRK.B", StockTopic("BRK.B"))
	assert.Equal(t, "user/42/notifications", UserNotificationsTopic(42))
	assert.Equal(t, "user/42/transactions", UserTransactionsTopic(42))
}

func TestMultiPublisher_ContinuesPastFailures(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("mercure unavailable")}
	ok := &recordingPublisher{}
	multi := NewMultiPublisher(nopLogger(), failing, ok)

	err := multi.Publish(context.Background(), "stock/AAPL", "{}")
	assert.EqualError(t, err, "mercure unavailable")
	assert.Equal(t, []string{"stock/AAPL"}, failing.topics())
	assert.Equal(t, []string{"stock/AAPL"}, ok.topics())
}
