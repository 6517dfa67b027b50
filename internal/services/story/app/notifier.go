package app

import (
	"context"
	"time"
)

// EventType names a notification kind.
type EventType string

const (
	EventCampaignPaused   EventType = "campaign.paused"
	EventCampaignUnpaused EventType = "campaign.unpaused"
	EventPhaseChanged     EventType = "phase.changed"
	EventSceneCreated     EventType = "scene.created"
	EventSceneEvicted     EventType = "scene.evicted"
	EventSceneArchived    EventType = "scene.archived"
	EventPostCreated      EventType = "post.created"
	EventPostRevealed     EventType = "post.revealed"
	EventLockAcquired     EventType = "lock.acquired"
	EventLockReleased     EventType = "lock.released"
	EventPassChanged      EventType = "pass.changed"
	EventRollRequested    EventType = "roll.requested"
	EventRollResolved     EventType = "roll.resolved"
)

// Event is a notification fanned out to campaign subscribers.
//
// Hidden events carry actor identity for the privileged actor and the actor
// themselves; the notify layer masks ActorUserID and CharacterID for everyone
// else before delivery.
type Event struct {
	Type        EventType `json:"type"`
	CampaignID  string    `json:"campaign_id"`
	SceneID     string    `json:"scene_id,omitempty"`
	CharacterID string    `json:"character_id,omitempty"`
	PostID      string    `json:"post_id,omitempty"`
	LockID      string    `json:"lock_id,omitempty"`
	RollID      string    `json:"roll_id,omitempty"`
	Phase       string    `json:"phase,omitempty"`
	PassState   string    `json:"pass_state,omitempty"`
	ActorUserID string    `json:"actor_user_id,omitempty"`
	Hidden      bool      `json:"hidden,omitempty"`
	At          time.Time `json:"at"`
}

// Masked returns a copy safe for non-privileged observers. A hidden event
// keeps its shape but drops who acted.
func (e Event) Masked() Event {
	if !e.Hidden {
		return e
	}
	e.ActorUserID = ""
	e.CharacterID = ""
	return e
}

// Notifier fans events out to interested observers. Publication is
// best-effort and never blocks or fails the triggering operation.
type Notifier interface {
	Publish(ctx context.Context, event Event)
}

// NopNotifier discards every event.
type NopNotifier struct{}

// Publish implements Notifier.
func (NopNotifier) Publish(context.Context, Event) {}

// MultiNotifier fans events out to several notifiers in order.
type MultiNotifier []Notifier

// Publish implements Notifier.
func (m MultiNotifier) Publish(ctx context.Context, event Event) {
	for _, n := range m {
		n.Publish(ctx, event)
	}
}
