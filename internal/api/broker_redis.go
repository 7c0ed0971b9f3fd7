package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"courierdispatch/internal/logger"
)

// RedisBroker implements EventBroker over Redis Pub/Sub so every API
// instance sees plan and courier events.
type RedisBroker struct {
	rdb    *redis.Client
	prefix string

	mu   sync.Mutex
	subs map[chan Event]*redis.PubSub
}

func NewRedisBroker(url, prefix string) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	if prefix == "" {
		prefix = "dispatch"
	}
	return &RedisBroker{rdb: rdb, prefix: prefix, subs: map[chan Event]*redis.PubSub{}}, nil
}

func (b *RedisBroker) Subscribe(channel string) chan Event {
	ch := make(chan Event, 16)
	ctx := context.Background()
	ps := b.rdb.Subscribe(ctx, b.chanName(channel))
	// wait for the subscription to be confirmed
	if _, err := ps.Receive(ctx); err != nil {
		logger.Warnw("redis subscribe failed", "channel", channel, "error", err)
	}
	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()
	go func() {
		defer close(ch)
		for msg := range ps.Channel() {
			var evt Event
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				logger.Warnw("redis event decode failed", "channel", channel, "error", err)
				continue
			}
			select {
			case ch <- evt:
			default:
			}
		}
	}()
	return ch
}

// Unsubscribe closes the subscription; ch is closed once its reader
// goroutine drains.
func (b *RedisBroker) Unsubscribe(channel string, ch chan Event) {
	b.mu.Lock()
	ps := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ps != nil {
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(channel string, evt Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := json.Marshal(evt)
	if err != nil {
		logger.Warnw("redis event encode failed", "channel", channel, "error", err)
		return
	}
	if err := b.rdb.Publish(ctx, b.chanName(channel), data).Err(); err != nil {
		logger.Warnw("redis publish failed", "channel", channel, "error", err)
	}
}

func (b *RedisBroker) Ping(ctx context.Context) error { return b.rdb.Ping(ctx).Err() }

func (b *RedisBroker) Close() error {
	b.mu.Lock()
	for ch, ps := range b.subs {
		_ = ps.Close()
		delete(b.subs, ch)
	}
	b.mu.Unlock()
	return b.rdb.Close()
}

func (b *RedisBroker) chanName(channel string) string { return b.prefix + ":" + channel }
