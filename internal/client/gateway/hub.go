// Package gateway pushes companion events to browser clients over
// websockets. It is one-directional: commands keep going through the
// CLI, the gateway only mirrors what the link reports so a dashboard
// can follow deliveries and inbound traffic live.
package gateway

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/mclink/internal/logging"
)

// Hub fans broadcast payloads out to every connected websocket client.
// A client that stops draining its send buffer is dropped rather than
// allowed to stall the rest.
type Hub struct {
	logger     logging.Logger
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Hub{
		logger:     logger.With("module", "gateway"),
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves the hub until ctx ends, then closes every client's send
// channel so their write pumps drain and exit.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.logger.Warn("dropping slow websocket client")
					close(client.send)
					delete(h.clients, client)
				}
			}

		case <-ctx.Done():
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			return
		}
	}
}

// Broadcast sends one message to every connected client. After the hub
// has stopped it is a no-op.
func (h *Hub) Broadcast(msg OutgoingMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}
