package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Publisher delivers a payload to everyone currently listening on a topic.
// Delivery is best effort; callers log a returned error and move on.
type Publisher interface {
	Publish(ctx context.Context, topic, payload string) error
}

func StockTopic(symbol string) string {
	return "stock/" + symbol
}

func UserNotificationsTopic(userID uint) string {
	return fmt.Sprintf("user/%d/notifications", userID)
}

func UserTransactionsTopic(userID uint) string {
	return fmt.Sprintf("user/%d/transactions", userID)
}

// Update is one published event as seen by a subscriber.
type Update struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Data      string    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

const defaultSubscriberBuffer = 64

// Subscription receives updates for its topics until Close is called.
type Subscription struct {
	C      <-chan Update
	ch     chan Update
	topics []string
	hub    *Hub
	once   sync.Once
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s)
	})
}

// Hub is the in-process fan-out: a live tap with no replay. A subscriber that
// falls behind loses updates instead of slowing the publisher.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Subscription]struct{}
	bufferSize  int
	log         zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[string]map[*Subscription]struct{}),
		bufferSize:  defaultSubscriberBuffer,
		log:         log.With().Str("component", "hub").Logger(),
	}
}

func (h *Hub) Subscribe(topics ...string) *Subscription {
	ch := make(chan Update, h.bufferSize)
	sub := &Subscription{C: ch, ch: ch, topics: topics, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range topics {
		set, ok := h.subscribers[topic]
		if !ok {
			set = make(map[*Subscription]struct{})
			h.subscribers[topic] = set
		}
		set[sub] = struct{}{}
	}
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range sub.topics {
		if set, ok := h.subscribers[topic]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(h.subscribers, topic)
			}
		}
	}
	close(sub.ch)
}

// Publish never blocks. The send happens under the read lock so a concurrent
// Close cannot close a channel mid-send.
func (h *Hub) Publish(_ context.Context, topic, payload string) error {
	update := Update{
		ID:        "urn:uuid:" + uuid.NewString(),
		Topic:     topic,
		Data:      payload,
		Timestamp: time.Now().UTC(),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers[topic] {
		select {
		case sub.ch <- update:
		default:
			h.log.Warn().Str("topic", topic).Msg("subscriber buffer full, dropping update")
		}
	}
	return nil
}

func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[topic])
}

// MultiPublisher publishes to every wrapped publisher. One failing target does
// not stop the others; failures are logged and the first one is returned.
type MultiPublisher struct {
	publishers []Publisher
	log        zerolog.Logger
}

func NewMultiPublisher(log zerolog.Logger, publishers ...Publisher) *MultiPublisher {
	return &MultiPublisher{publishers: publishers, log: log.With().Str("component", "publisher").Logger()}
}

func (m *MultiPublisher) Publish(ctx context.Context, topic, payload string) error {
	var first error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, topic, payload); err != nil {
			m.log.Warn().Err(err).Str("topic", topic).Msg("publish failed")
			if first == nil {
				first = err
			}
		}
	}
	return first
}
