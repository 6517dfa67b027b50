// Package composelock models the short-lived exclusive right to author the
// next post in a scene, scoped to one character.
package composelock

import (
	"fmt"
	"strings"
	"time"

	"github.com/inkhaven/inkhaven/internal/platform/id"
)

// DefaultTTL is the lease duration measured from the last activity on the lock.
const DefaultTTL = 10 * time.Minute

// Lock represents a compose lease for a (scene, character) pair.
//
// A lock past its ExpiresAt is logically absent: any caller, including the
// nominal holder, may acquire the key fresh. Expiry is evaluated lazily on
// the next operation that touches the lock; there is no background sweep.
type Lock struct {
	ID           string
	CampaignID   string
	SceneID      string
	CharacterID  string
	HolderUserID string
	// Hidden locks are broadcast without holder identity to non-privileged
	// observers so a concealed action does not leak.
	Hidden     bool
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

// AcquireInput describes a compose lock acquisition.
type AcquireInput struct {
	CampaignID   string
	SceneID      string
	CharacterID  string
	HolderUserID string
	Hidden       bool
	TTL          time.Duration
}

// Acquire builds a fresh lock with a generated ID and lease window.
func Acquire(input AcquireInput, now func() time.Time, idGenerator func() (string, error)) (Lock, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.CampaignID = strings.TrimSpace(input.CampaignID)
	input.SceneID = strings.TrimSpace(input.SceneID)
	input.CharacterID = strings.TrimSpace(input.CharacterID)
	input.HolderUserID = strings.TrimSpace(input.HolderUserID)
	if input.CampaignID == "" || input.SceneID == "" || input.CharacterID == "" || input.HolderUserID == "" {
		return Lock{}, fmt.Errorf("campaign, scene, character, and holder are required")
	}

	ttl := input.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	lockID, err := idGenerator()
	if err != nil {
		return Lock{}, fmt.Errorf("generate lock id: %w", err)
	}

	acquiredAt := now().UTC()
	return Lock{
		ID:           lockID,
		CampaignID:   input.CampaignID,
		SceneID:      input.SceneID,
		CharacterID:  input.CharacterID,
		HolderUserID: input.HolderUserID,
		Hidden:       input.Hidden,
		AcquiredAt:   acquiredAt,
		ExpiresAt:    acquiredAt.Add(ttl),
	}, nil
}

// Expired reports whether the lease has elapsed at the given instant.
func (l Lock) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// Live reports whether the lease is still in force at the given instant.
func (l Lock) Live(now time.Time) bool {
	return !l.Expired(now)
}

// Renewed returns the lock with its lease extended from now.
// Renewal is how both heartbeats and idempotent re-acquisition extend a lease.
func (l Lock) Renewed(now time.Time, ttl time.Duration) Lock {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	l.ExpiresAt = now.UTC().Add(ttl)
	return l
}

// HeldBy reports whether the lock belongs to the given user.
func (l Lock) HeldBy(userID string) bool {
	return l.HolderUserID == userID
}
