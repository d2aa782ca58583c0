// Package transport carries inbound message events from the ingestion side
// to the reactive path. Delivery is best effort: a dropped or broken
// subscription is healed by the poller, never by blocking the publisher.
package transport

import (
	"log"
	"sync"

	st "companiond/internal/storagetypes"
)

// Subscriber hands out live feeds of newly inserted messages.
type Subscriber interface {
	Subscribe(name string) (*Subscription, error)
}

// Publisher is the ingestion-side half of the bus.
type Publisher interface {
	Publish(m st.Message)
}

// Subscription is one consumer's feed. C closes when the subscription ends.
type Subscription struct {
	C    <-chan st.Message
	name string
	bus  *Bus
	ch   chan st.Message

	mu      sync.Mutex
	closed  bool
	dropped int
}

// Close detaches the subscription from the bus and closes C.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
}

// Healthy reports whether the feed is still attached and has not dropped
// events since the last check. A false return means the consumer must
// reconcile through the poller before trusting the feed again.
func (s *Subscription) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	ok := s.dropped == 0
	s.dropped = 0
	return ok
}

// subscriptionBuffer is per consumer. Bursts beyond it are dropped and
// surface as an unhealthy subscription.
const subscriptionBuffer = 64

// Bus is the in-process event fan-out. Publish never blocks.
type Bus struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

func (b *Bus) Subscribe(name string) (*Subscription, error) {
	ch := make(chan st.Message, subscriptionBuffer)
	sub := &Subscription{C: ch, ch: ch, name: name, bus: b}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub, nil
}

// Publish fans the message out to every live subscription. A full consumer
// loses the event and is marked unhealthy.
func (b *Bus) Publish(m st.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		select {
		case sub.ch <- m:
		default:
			sub.mu.Lock()
			sub.dropped++
			sub.mu.Unlock()
			log.Printf("[ERR] transport: subscription %q full, dropped message %s", sub.name, m.ID)
		}
	}
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	_, live := b.subs[sub]
	delete(b.subs, sub)
	b.mu.Unlock()

	sub.mu.Lock()
	sub.closed = true
	sub.mu.Unlock()
	if live {
		close(sub.ch)
	}
}
