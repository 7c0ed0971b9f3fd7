// Package main runs a demo courier on the WebSocket feed: it subscribes to
// courier events, pushes a few status updates and prints what comes back.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/couriers/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.WriteJSON(wsMessage{Type: "connection_init"}); err != nil {
		log.Fatal(err)
	}
	if err := c.WriteJSON(wsMessage{Type: "subscribe", ID: "1"}); err != nil {
		log.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			log.Printf("WS <- %s: %s", m.Type, string(m.Payload))
		}
	}()

	lat, lng := 55.75, 37.61
	for i, status := range []string{"free", "busy", "returning", "free"} {
		pl, _ := json.Marshal(map[string]any{
			"courierId": "demo-car-1",
			"vehicle":   "car",
			"shopId":    "s1",
			"status":    status,
			"location":  map[string]float64{"lat": lat + 0.002*float64(i), "lng": lng},
		})
		if err := c.WriteJSON(wsMessage{Type: "status", ID: fmt.Sprintf("u%d", i), Payload: pl}); err != nil {
			log.Fatal(err)
		}
		time.Sleep(300 * time.Millisecond)
	}

	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
