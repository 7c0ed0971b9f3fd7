package api

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe(ChannelPlans)

	evt := Event{Type: "plan.created", Data: map[string]any{"x": 1}}
	b.Publish(ChannelPlans, evt)
	b.Publish(ChannelCouriers, Event{Type: "other"})

	select {
	case got := <-ch:
		if got.Type != evt.Type {
			t.Fatalf("got type %s, want %s", got.Type, evt.Type)
		}
		if got.Data["x"].(int) != 1 {
			t.Fatalf("bad payload: %+v", got.Data)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	b.Unsubscribe(ChannelPlans, ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
	// second unsubscribe is a no-op
	b.Unsubscribe(ChannelPlans, ch)
}

func TestRedisBrokerPublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	b, err := NewRedisBroker("redis://"+mr.Addr(), "test")
	if err != nil {
		t.Fatalf("NewRedisBroker: %v", err)
	}
	defer b.Close()

	ch := b.Subscribe(ChannelCouriers)
	b.Publish(ChannelCouriers, Event{Type: "courier.status", Data: map[string]any{"courierId": "car-1"}})

	select {
	case got := <-ch:
		if got.Type != "courier.status" || got.Data["courierId"] != "car-1" {
			t.Fatalf("unexpected event: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for redis event")
	}

	b.Unsubscribe(ChannelCouriers, ch)
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("unexpected event after unsubscribe")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
}

func TestRedisBrokerBadURL(t *testing.T) {
	if _, err := NewRedisBroker("not-a-url", ""); err == nil {
		t.Fatal("expected error for bad url")
	}
}
