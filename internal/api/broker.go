package api

import (
	"sync"
)

// Broker channels.
const (
	ChannelPlans    = "plans"
	ChannelCouriers = "couriers"
)

// Event is a message published on a broker channel.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

type EventBroker interface {
	Subscribe(channel string) chan Event
	Unsubscribe(channel string, ch chan Event)
	Publish(channel string, evt Event)
	Close() error
}

// Broker is the in-process EventBroker. Slow subscribers drop events.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{} // channel -> set of subscribers
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan Event]struct{}{}}
}

func (b *Broker) Subscribe(channel string) chan Event {
	ch := make(chan Event, 8)
	b.mu.Lock()
	if b.subs[channel] == nil {
		b.subs[channel] = map[chan Event]struct{}{}
	}
	b.subs[channel][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(channel string, ch chan Event) {
	b.mu.Lock()
	m := b.subs[channel]
	_, ok := m[ch]
	if ok {
		delete(m, ch)
		if len(m) == 0 {
			delete(b.subs, channel)
		}
	}
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

func (b *Broker) Publish(channel string, evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs[channel] {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (b *Broker) Close() error { return nil }
