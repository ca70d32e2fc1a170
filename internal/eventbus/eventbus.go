// Package eventbus fans out post-commit control-plane notifications
// (port/interface/next-hop/route changes) to observers over WebSocket
// connections. It only ever publishes; nothing here can mutate
// control-plane state, so it never sits on the request path: an event
// publish is fire-and-forget and never blocks the control thread on a
// slow client.
package eventbus

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Kind classifies a state-change notification.
type Kind string

const (
	KindPortAdded    Kind = "port.added"
	KindPortDeleted  Kind = "port.deleted"
	KindPortChanged  Kind = "port.changed"
	KindIfaceAdded   Kind = "iface.added"
	KindIfaceDeleted Kind = "iface.deleted"
	KindIfaceChanged Kind = "iface.changed"
	KindRouteAdded   Kind = "route.added"
	KindRouteDeleted Kind = "route.deleted"
)

// Event is one post-commit notification broadcast to observers.
type Event struct {
	Kind      Kind        `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Hub is a best-effort fan-out of Events to connected WebSocket
// observers: register/unregister channels plus a buffered broadcast
// channel, narrowed to one direction (server to client) since observers
// never drive state here.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan Event
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	done       chan struct{}
}

// NewHub creates a ready-to-run Hub; call Run in its own goroutine.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
	}
}

// Run drives the hub's event loop until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			h.mu.Unlock()
			log.Printf("eventbus: observer connected, total %d", len(h.clients))

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			h.mu.Unlock()
			log.Printf("eventbus: observer disconnected, total %d", len(h.clients))

		case ev := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				if err := conn.WriteJSON(ev); err != nil {
					log.Printf("eventbus: write error: %v", err)
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop terminates Run.
func (h *Hub) Stop() { close(h.done) }

// Register adds an observer connection.
func (h *Hub) Register(conn *websocket.Conn) { h.register <- conn }

// Unregister removes an observer connection.
func (h *Hub) Unregister(conn *websocket.Conn) { h.unregister <- conn }

// Publish broadcasts an event, stamping its timestamp. Non-blocking: if
// the broadcast channel is full the event is dropped and logged, never
// stalling the control thread's caller.
func (h *Hub) Publish(kind Kind, data interface{}) {
	ev := Event{Kind: kind, Timestamp: time.Now(), Data: data}
	select {
	case h.broadcast <- ev:
	default:
		log.Printf("eventbus: broadcast channel full, dropping %s event", kind)
	}
}
