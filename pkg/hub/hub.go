// Package hub fans JSON messages out to websocket clients.
package hub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/root4loot/goutils/log"
)

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	name string

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu sync.RWMutex

	// onJoin produces messages sent to every new client before broadcasts.
	onJoin func() [][]byte
}

// New creates a hub. Run must be called for it to deliver anything.
func New(name string) *Hub {
	return &Hub{
		name:       name,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// OnJoin sets the function producing the greeting for new clients.
func (h *Hub) OnJoin(fn func() [][]byte) {
	h.mu.Lock()
	h.onJoin = fn
	h.mu.Unlock()
}

// Run is the hub's main loop. It returns when ctx ends.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			onJoin := h.onJoin
			h.mu.Unlock()

			if onJoin != nil {
				for _, msg := range onJoin() {
					select {
					case client.send <- msg:
					default:
					}
				}
			}
			log.Debugf("[%s] client connected (%d total)", h.name, count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Debugf("[%s] client disconnected (%d remaining)", h.name, count)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
					log.Warnf("[%s] dropped slow client", h.name)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues a raw message for all clients.
func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		log.Warnf("[%s] broadcast channel full, dropping message", h.name)
	}
}

// BroadcastJSON encodes v and broadcasts it.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
