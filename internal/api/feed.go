package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"courierdispatch/internal/logger"
	"courierdispatch/internal/model"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

// feedKeepAlive is the interval between server pings on an initialized feed.
var feedKeepAlive = 20 * time.Second

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CourierFeedHandler handles /v1/couriers/ws. Couriers push "status"
// messages; dispatch screens "subscribe" to the couriers channel and get
// every status change as "next".
func (s *Server) CourierFeedHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	subs := map[string]chan Event{}
	done := make(chan struct{})
	defer close(done)

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(60 * time.Second)) })

	initialized := false
	var wmu sync.Mutex
	write := func(v any) error {
		wmu.Lock()
		defer wmu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(v)
	}
	fail := func(id, msg string) {
		payload, _ := json.Marshal(map[string]string{"message": msg})
		_ = write(wsMessage{Type: "error", ID: id, Payload: payload})
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "connection_init":
			if initialized {
				fail("", "connection already initialized")
				continue
			}
			initialized = true
			_ = write(wsMessage{Type: "connection_ack"})
			go func() {
				ticker := time.NewTicker(feedKeepAlive)
				defer ticker.Stop()
				for {
					select {
					case <-done:
						return
					case <-ticker.C:
						if err := write(wsMessage{Type: "ping"}); err != nil {
							return
						}
					}
				}
			}()
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "status":
			var in model.CourierStatusIn
			if err := json.Unmarshal(msg.Payload, &in); err != nil {
				fail(msg.ID, "invalid status payload")
				continue
			}
			applied, err := s.applyStatus("ws", []model.CourierStatusIn{in})
			if err != nil {
				fail(msg.ID, err.Error())
				continue
			}
			payload, _ := json.Marshal(map[string]int{"applied": applied})
			_ = write(wsMessage{Type: "status_ack", ID: msg.ID, Payload: payload})
		case "subscribe":
			if msg.ID == "" {
				fail("", "subscription id required")
				continue
			}
			if _, dup := subs[msg.ID]; dup {
				fail(msg.ID, "duplicate subscription id")
				continue
			}
			ch := s.Broker.Subscribe(ChannelCouriers)
			subs[msg.ID] = ch
			go func(id string, c chan Event) {
				for evt := range c {
					payload, err := json.Marshal(evt)
					if err != nil {
						continue
					}
					if err := write(wsMessage{Type: "next", ID: id, Payload: payload}); err != nil {
						return
					}
				}
				_ = write(wsMessage{Type: "complete", ID: id})
			}(msg.ID, ch)
		case "complete":
			if ch, ok := subs[msg.ID]; ok {
				s.Broker.Unsubscribe(ChannelCouriers, ch)
				delete(subs, msg.ID)
			}
		default:
			logger.Debugw("courier feed: unknown message", "type", msg.Type)
		}
	}
	for id, ch := range subs {
		s.Broker.Unsubscribe(ChannelCouriers, ch)
		delete(subs, id)
	}
}
