// Package notify delivers committed gamification changes to operators and supervisors.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	prommetrics "github.com/aimd54/callcenter-gamification/internal/metrics"
	"github.com/aimd54/callcenter-gamification/internal/service/gamification"
	"github.com/aimd54/callcenter-gamification/pkg/logger"
)

// ErrHubBusy is returned when the hub's outbound queue is full.
var ErrHubBusy = errors.New("notification hub is busy")

// ErrHubClosed is returned when notifying a stopped hub.
var ErrHubClosed = errors.New("notification hub is closed")

// envelope is a serialized notification with its routing keys.
type envelope struct {
	operatorID uint
	team       string
	data       []byte
}

// Hub maintains the set of active websocket clients and routes notifications to them.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound notifications
	broadcast chan envelope

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	done chan struct{}

	mu  sync.RWMutex
	log *logger.Logger
}

// NewHub creates a new Hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run starts the hub's main loop and blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			prommetrics.SetWebSocketClients(count)
			h.log.Info().
				Str("client_id", client.id).
				Uint("operator_id", client.operatorID).
				Int("total_clients", count).
				Msg("WebSocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			prommetrics.SetWebSocketClients(count)
			h.log.Info().
				Str("client_id", client.id).
				Int("total_clients", count).
				Msg("WebSocket client disconnected")

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Notify implements gamification.Notifier. It never blocks: a full queue drops the notification.
func (h *Hub) Notify(_ context.Context, n gamification.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	select {
	case <-h.done:
		return ErrHubClosed
	default:
	}

	select {
	case h.broadcast <- envelope{operatorID: n.OperatorID, team: n.Team, data: data}:
		return nil
	default:
		return ErrHubBusy
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// deliver sends msg to every client subscribed to it.
func (h *Hub) deliver(msg envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if !client.wants(msg) {
			continue
		}
		select {
		case client.send <- msg.data:
		default:
			// Client's send buffer is full, close and remove it
			close(client.send)
			delete(h.clients, client)
			h.log.Warn().
				Str("client_id", client.id).
				Msg("WebSocket client send buffer full, closing connection")
		}
	}
	prommetrics.SetWebSocketClients(len(h.clients))
}

func (h *Hub) shutdown() {
	close(h.done)

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	prommetrics.SetWebSocketClients(0)
	h.log.Info().Msg("Notification hub stopped")
}
