// Package notify fans story events out to campaign subscribers.
package notify

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/inkhaven/inkhaven/internal/services/story/app"
)

// subscriber is one websocket connection listening to a campaign.
type subscriber struct {
	conn       *websocket.Conn
	userID     string
	privileged bool
	mu         sync.Mutex
}

func (s *subscriber) send(event app.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(event)
}

// Hub delivers events to websocket subscribers grouped by campaign.
//
// Hidden events are masked before delivery to anyone who is neither the
// privileged actor nor the actor themselves; observers learn that something
// happened, not who did it.
type Hub struct {
	logger zerolog.Logger

	mu          sync.RWMutex
	subscribers map[string]map[*subscriber]struct{}
}

// NewHub builds an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:      logger,
		subscribers: make(map[string]map[*subscriber]struct{}),
	}
}

// Subscribe registers a connection for a campaign's events and returns an
// unsubscribe function. The hub does not own the connection's read side.
func (h *Hub) Subscribe(campaignID string, conn *websocket.Conn, userID string, privileged bool) func() {
	sub := &subscriber{conn: conn, userID: userID, privileged: privileged}

	h.mu.Lock()
	if h.subscribers[campaignID] == nil {
		h.subscribers[campaignID] = make(map[*subscriber]struct{})
	}
	h.subscribers[campaignID][sub] = struct{}{}
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if subs, ok := h.subscribers[campaignID]; ok {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(h.subscribers, campaignID)
			}
		}
	}
}

// Publish implements app.Notifier. Delivery is best-effort; a failed write
// drops the subscriber's event, not the operation that produced it.
func (h *Hub) Publish(_ context.Context, event app.Event) {
	h.mu.RLock()
	subs := make([]*subscriber, 0, len(h.subscribers[event.CampaignID]))
	for sub := range h.subscribers[event.CampaignID] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		delivered := event
		if !sub.privileged && sub.userID != event.ActorUserID {
			delivered = event.Masked()
		}
		if err := sub.send(delivered); err != nil {
			h.logger.Debug().
				Err(err).
				Str("campaign_id", event.CampaignID).
				Str("event", string(event.Type)).
				Msg("dropping event for subscriber")
		}
	}
}
