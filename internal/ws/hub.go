package ws

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"social-service/internal/models"
)

// Router delivers outbound events to every connection in a routing group.
type Router interface {
	Join(group string, client *Client)
	Leave(group string, client *Client)
	SendToGroup(ctx context.Context, group string, event models.OutboundEvent) error
}

// Broker fans group payloads out to every service instance.
type Broker interface {
	Publish(ctx context.Context, group string, payload []byte) error
}

// Hub maintains the routing groups of this instance.
type Hub struct {
	groups map[string]map[*Client]struct{}
	mu     sync.RWMutex
	broker Broker
	logger *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		groups: make(map[string]map[*Client]struct{}),
		logger: logger,
	}
}

// UseBroker routes group sends through broker. Every instance, this one included, must
// feed broker deliveries back through Deliver.
func (h *Hub) UseBroker(broker Broker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broker = broker
}

// Join registers a connection in a group.
func (h *Hub) Join(group string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.groups[group]; !ok {
		h.groups[group] = make(map[*Client]struct{})
	}
	h.groups[group][client] = struct{}{}
}

// Leave removes a connection from a group.
func (h *Hub) Leave(group string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.groups[group]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.groups, group)
		}
	}
}

// SendToGroup encodes the event once and delivers it to every member of the group.
func (h *Hub) SendToGroup(ctx context.Context, group string, event models.OutboundEvent) error {
	payload, err := models.EncodeOutbound(event)
	if err != nil {
		return err
	}

	h.mu.RLock()
	broker := h.broker
	h.mu.RUnlock()

	if broker != nil {
		if err := broker.Publish(ctx, group, payload); err != nil {
			h.logger.Warn("broker publish failed, delivering locally",
				zap.String("group", group), zap.Error(err))
			h.Deliver(group, payload)
			return err
		}
		return nil
	}

	h.Deliver(group, payload)
	return nil
}

// Deliver hands an encoded frame to the local members of a group and returns how many
// accepted it. Members whose buffers are full are disconnected.
func (h *Hub) Deliver(group string, payload []byte) int {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.groups[group]))
	for client := range h.groups[group] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, client := range clients {
		if client.enqueue(payload) {
			delivered++
			continue
		}
		h.logger.Warn("dropping slow websocket client",
			zap.String("group", group), zap.String("conn_id", client.info.ConnID))
		publishWSEvent(context.Background(), client.channel, "ws_error", client.info, "send buffer full")
	}
	return delivered
}

// groupSize returns the number of local members in a group.
func (h *Hub) groupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}
