package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/sitebook/gateway/internal/enum"
	"github.com/sitebook/gateway/internal/notify"
	"go.uber.org/zap"
)

// ErrClosed is returned once the hub has stopped.
var ErrClosed = errors.New("ws: hub closed")

// EventNotification is the event type pushed for write outcomes.
const EventNotification = "notification"

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// roomEvent routes an event to one room
type roomEvent struct {
	Room  string
	Event Event
}

// Room names the subscribers of one site within one business. Site "0" is
// the room of dashboards viewing every site.
func Room(businessID, siteID string) string {
	if siteID == "" {
		siteID = enum.AllSites
	}
	return businessID + ":" + siteID
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by room
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *roomEvent
	done       chan struct{}

	mu     sync.RWMutex
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *roomEvent, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main loop and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.room] == nil {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event.Event)
			if err != nil {
				h.logger.Error("marshal ws event", zap.Error(err))
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[event.Room] {
				select {
				case client.send <- message:
				default:
					// Slow consumer; drop it.
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// remove expects h.mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.room]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.room)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.rooms {
		for client := range clients {
			h.remove(client)
		}
	}
}

// BroadcastToRoom queues an event for every client in room.
func (h *Hub) BroadcastToRoom(ctx context.Context, room string, event Event) error {
	select {
	case <-h.done:
		return ErrClosed
	default:
	}

	select {
	case h.broadcast <- &roomEvent{Room: room, Event: event}:
		return nil
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Notify pushes n to the room of its site and to the all-sites room of the
// same business.
func (h *Hub) Notify(ctx context.Context, n notify.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	event := Event{Type: EventNotification, Payload: payload}

	rooms := []string{Room(n.BusinessID, n.SiteID)}
	if n.SiteID != "" && n.SiteID != enum.AllSites {
		rooms = append(rooms, Room(n.BusinessID, enum.AllSites))
	}
	for _, room := range rooms {
		if err := h.BroadcastToRoom(ctx, room, event); err != nil {
			return err
		}
	}
	return nil
}

// join and leave give up once the hub has stopped so connection goroutines
// never block on a dead loop.
func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Subscribers returns the number of clients in room.
func (h *Hub) Subscribers(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
