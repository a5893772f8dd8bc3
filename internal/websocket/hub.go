package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"fieldops-notify-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Hub tracks live connections per user and fans messages out to them.
// With Redis configured it also relays messages across instances, so a
// user connected to another replica still gets the push.
type Hub struct {
	// UserID -> open connections (multi-device)
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Redis connection for cross-instance relay; nil in single-node mode.
	rdb *redis.Client

	// instanceID tags relay envelopes so this instance can skip the ones
	// it published itself.
	instanceID string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"user_id": client.UserID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.UserID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.UserID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.UserID]) == 0 {
					delete(h.clients, client.UserID)
					h.logger.Info("Hub", "Client completely unregistered", map[string]interface{}{"user_id": client.UserID})
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish sends an event envelope to one user's connections, satisfying
// the in-app sender's RealtimePublisher contract. Delivery to sockets is
// best-effort; the stored inbox record is the source of truth.
func (h *Hub) Publish(userID uuid.UUID, event string, data interface{}) {
	payload, err := json.Marshal(map[string]interface{}{
		"type": event,
		"data": data,
	})
	if err != nil {
		h.logger.Error("Hub", "Failed to marshal realtime payload", map[string]interface{}{
			"user_id": userID, "error": err.Error(),
		})
		return
	}

	h.mu.RLock()
	stalled := h.deliver(h.clients[userID], payload)
	h.mu.RUnlock()
	h.drop(stalled)

	// Always relay for multi-device: the same user may be connected to
	// another instance too.
	if h.rdb != nil {
		h.relay(userID.String(), payload)
	}
}

// Broadcast sends an event envelope to every connected user on every
// instance. Used for system-maintenance announcements.
func (h *Hub) Broadcast(event string, data interface{}) {
	payload, err := json.Marshal(map[string]interface{}{
		"type": event,
		"data": data,
	})
	if err != nil {
		h.logger.Error("Hub", "Failed to marshal broadcast payload", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	h.mu.RLock()
	var stalled []*Client
	for _, clients := range h.clients {
		stalled = append(stalled, h.deliver(clients, payload)...)
	}
	h.mu.RUnlock()
	h.drop(stalled)

	if h.rdb != nil {
		h.relay("*", payload)
	}
}

// deliver writes the payload into each client's buffer and collects the
// clients whose buffer is full. Callers hold mu; Run closes Send only
// under the write lock, so a send here can never hit a closed channel.
func (h *Hub) deliver(clients []*Client, payload []byte) []*Client {
	var stalled []*Client
	for _, client := range clients {
		select {
		case client.Send <- payload:
		default:
			stalled = append(stalled, client)
		}
	}
	return stalled
}

// drop queues stalled clients for unregistration. Run owns the single
// close of each Send channel; callers must have released mu since Run
// needs the write lock to remove the client.
func (h *Hub) drop(stalled []*Client) {
	for _, client := range stalled {
		h.logger.Warn("Hub", "Client send buffer full, dropping connection", map[string]interface{}{
			"user_id": client.UserID,
		})
		h.unregister <- client
	}
}

func (h *Hub) relay(targetUserID string, payload []byte) {
	envelope, _ := json.Marshal(map[string]interface{}{
		"origin":         h.instanceID,
		"target_user_id": targetUserID,
		"message":        json.RawMessage(payload),
	})
	h.rdb.Publish(context.Background(), "cluster_events", envelope)
}

func (h *Hub) subscribeToRedis() {
	// All instances subscribe to one channel carrying
	// {origin, target_user_id, message}; each delivers only to users it
	// holds locally, "*" meaning everyone.
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, "cluster_events")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		h.handleRelay([]byte(msg.Payload))
	}
}

// handleRelay applies one cluster_events envelope to local clients.
// Envelopes this instance published itself are skipped; local delivery
// already happened before the relay.
func (h *Hub) handleRelay(raw []byte) {
	var payload struct {
		Origin       string          `json:"origin"`
		TargetUserID string          `json:"target_user_id"`
		Message      json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Printf("Redis msg parse error: %v", err)
		return
	}
	if payload.Origin == h.instanceID {
		return
	}

	if payload.TargetUserID == "*" {
		h.mu.RLock()
		var stalled []*Client
		for _, clients := range h.clients {
			stalled = append(stalled, h.deliver(clients, payload.Message)...)
		}
		h.mu.RUnlock()
		h.drop(stalled)
		return
	}

	uid, err := uuid.Parse(payload.TargetUserID)
	if err != nil {
		return
	}

	h.mu.RLock()
	stalled := h.deliver(h.clients[uid], payload.Message)
	h.mu.RUnlock()
	h.drop(stalled)
}
