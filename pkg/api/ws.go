package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/merkleship/merkleship/pkg/events"
	"github.com/merkleship/merkleship/pkg/log"
	"nhooyr.io/websocket"
)

// EventFeed fans emitted events out to WebSocket subscribers. Slow
// subscribers miss events rather than blocking the emitter.
type EventFeed struct {
	mu      sync.Mutex
	clients map[chan *events.Event]struct{}
}

func NewEventFeed(emitter *events.Emitter) *EventFeed {
	f := &EventFeed{
		clients: make(map[chan *events.Event]struct{}),
	}
	emitter.Subscribe(f.broadcast)
	return f
}

func (f *EventFeed) broadcast(ev *events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.clients {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (f *EventFeed) addClient() chan *events.Event {
	ch := make(chan *events.Event, 64)
	f.mu.Lock()
	f.clients[ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

func (f *EventFeed) removeClient(ch chan *events.Event) {
	f.mu.Lock()
	delete(f.clients, ch)
	f.mu.Unlock()
}

// HandleEvents upgrades the connection and streams events as JSON text
// messages until the client disconnects.
func (f *EventFeed) HandleEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			log.Error("Failed to accept WebSocket connection: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		ch := f.addClient()
		defer f.removeClient(ch)

		// The feed is push only; CloseRead surfaces client disconnects
		// through the context.
		ctx := conn.CloseRead(r.Context())
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-ch:
				data, err := json.Marshal(ev)
				if err != nil {
					log.Error("Failed to marshal event: %v", err)
					continue
				}
				if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
					log.Trace("WebSocket write failed: %v", err)
					return
				}
			}
		}
	}
}
