// Package roll models roll requests issued by the privileged actor and
// resolved by character controllers.
//
// A pending roll blocks both pass tiers for its character and blocks the
// Write -> Resolve transition campaign-wide.
package roll

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/inkhaven/inkhaven/internal/platform/errors"
	"github.com/inkhaven/inkhaven/internal/platform/id"
	"github.com/inkhaven/inkhaven/internal/services/story/dice"
)

// Status describes the lifecycle state of a roll request.
type Status int

const (
	// StatusUnspecified represents an invalid status value.
	StatusUnspecified Status = iota
	// StatusPending indicates the roll is waiting on the controller.
	StatusPending
	// StatusResolved indicates the dice were rolled.
	StatusResolved
)

// String returns the wire representation of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusResolved:
		return "resolved"
	default:
		return "unspecified"
	}
}

// ParseStatus maps a wire representation back to a Status.
func ParseStatus(value string) (Status, bool) {
	switch value {
	case "pending":
		return StatusPending, true
	case "resolved":
		return StatusResolved, true
	default:
		return StatusUnspecified, false
	}
}

// Roll represents one roll request and its numeric result.
type Roll struct {
	ID                string
	CampaignID        string
	SceneID           string
	CharacterID       string
	RequestedByUserID string
	Dice              []dice.DiceSpec
	Status            Status
	Result            *dice.RollResult
	RequestedAt       time.Time
	ResolvedAt        *time.Time
}

// RequestInput describes a new roll request.
type RequestInput struct {
	CampaignID        string
	SceneID           string
	CharacterID       string
	RequestedByUserID string
	Dice              []dice.DiceSpec
}

// Request creates a pending roll with a generated ID.
func Request(input RequestInput, now func() time.Time, idGenerator func() (string, error)) (Roll, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.CampaignID = strings.TrimSpace(input.CampaignID)
	input.SceneID = strings.TrimSpace(input.SceneID)
	input.CharacterID = strings.TrimSpace(input.CharacterID)
	if input.CampaignID == "" || input.SceneID == "" || input.CharacterID == "" {
		return Roll{}, apperrors.New(apperrors.CodeRollNotFound, "campaign, scene, and character are required")
	}
	if len(input.Dice) == 0 {
		return Roll{}, apperrors.New(apperrors.CodeDiceMissing, "at least one die must be requested")
	}
	for _, spec := range input.Dice {
		if spec.Sides <= 0 || spec.Count <= 0 {
			return Roll{}, apperrors.New(apperrors.CodeDiceInvalidSpec, "dice must have positive sides and count")
		}
	}

	rollID, err := idGenerator()
	if err != nil {
		return Roll{}, fmt.Errorf("generate roll id: %w", err)
	}

	return Roll{
		ID:                rollID,
		CampaignID:        input.CampaignID,
		SceneID:           input.SceneID,
		CharacterID:       input.CharacterID,
		RequestedByUserID: strings.TrimSpace(input.RequestedByUserID),
		Dice:              input.Dice,
		Status:            StatusPending,
		RequestedAt:       now().UTC(),
	}, nil
}

// Resolve rolls the requested dice with the given seed and marks the roll
// resolved. Resolving an already-resolved roll is an error.
func (r *Roll) Resolve(seed int64, now func() time.Time) error {
	if now == nil {
		now = time.Now
	}
	if r.Status == StatusResolved {
		return apperrors.New(apperrors.CodeRollResolved, "roll is already resolved")
	}

	result, err := dice.RollDice(dice.RollRequest{Dice: r.Dice, Seed: seed})
	if err != nil {
		return fmt.Errorf("roll dice: %w", err)
	}

	resolvedAt := now().UTC()
	r.Result = &result
	r.Status = StatusResolved
	r.ResolvedAt = &resolvedAt
	return nil
}
