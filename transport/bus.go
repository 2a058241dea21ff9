// Package transport implements an in-process publish/subscribe bus and
// declares the request/response services the environment consumes.
package transport

import (
	"errors"
	"fmt"
	"sync"

	"github.com/samuelfneumann/navenv/logging"
)

// DefaultQueueSize is the per-subscription queue length used when none
// is given
const DefaultQueueSize = 100

// ErrClosed is returned when publishing to or subscribing on a closed Bus
var ErrClosed = errors.New("transport: bus closed")

// Handler is called with every message published on a subscribed topic
type Handler func(msg any)

// Publisher publishes messages on topics
type Publisher interface {
	Publish(topic string, msg any) error
}

// Subscriber registers handlers for topics. The returned function
// cancels the subscription.
type Subscriber interface {
	Subscribe(topic string, h Handler) (func(), error)
}

type subscription struct {
	topic   string
	ch      chan any
	handler Handler
	closed  bool
}

// Bus is an in-process topic bus. Every subscription owns a bounded
// queue drained by its own goroutine, so handlers run concurrently
// with publishers and with each other, but messages of one
// subscription are delivered in publication order. When a queue is
// full the oldest queued message is dropped.
type Bus struct {
	mu        sync.RWMutex
	subs      map[string][]*subscription
	queueSize int
	closed    bool
	wg        sync.WaitGroup
	logger    logging.Logger
}

// NewBus creates a new Bus. Non-positive queue sizes use
// DefaultQueueSize.
func NewBus(queueSize int, logger logging.Logger) *Bus {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Bus{
		subs:      make(map[string][]*subscription),
		queueSize: queueSize,
		logger:    logger,
	}
}

// Subscribe registers h to receive every message later published on
// topic
func (b *Bus) Subscribe(topic string, h Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("subscribe %v: %w", topic, ErrClosed)
	}

	sub := &subscription{
		topic:   topic,
		ch:      make(chan any, b.queueSize),
		handler: h,
	}
	b.subs[topic] = append(b.subs[topic], sub)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range sub.ch {
			sub.handler(msg)
		}
	}()

	return func() { b.unsubscribe(sub) }, nil
}

func (b *Bus) unsubscribe(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub.closed {
		return
	}
	subs := b.subs[sub.topic]
	for i := range subs {
		if subs[i] == sub {
			b.subs[sub.topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[sub.topic]) == 0 {
		delete(b.subs, sub.topic)
	}
	sub.closed = true
	close(sub.ch)
}

// Publish queues msg for every subscriber of topic. It never blocks.
func (b *Bus) Publish(topic string, msg any) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("publish %v: %w", topic, ErrClosed)
	}

	for _, sub := range b.subs[topic] {
		select {
		case sub.ch <- msg:
			continue
		default:
		}

		// Queue full: drop the oldest message to make room
		select {
		case <-sub.ch:
			b.logger.Debugw("dropped message", "topic", topic)
		default:
		}
		select {
		case sub.ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribers returns the number of subscriptions on topic
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Close cancels every subscription and waits for in-flight handlers to
// return. Messages still queued are delivered before Close returns.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for topic, subs := range b.subs {
		for _, sub := range subs {
			sub.closed = true
			close(sub.ch)
		}
		delete(b.subs, topic)
	}
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}
