// Package campaign models campaign metadata and the campaign-global
// Write/Resolve phase machine.
package campaign

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/inkhaven/inkhaven/internal/platform/errors"
	"github.com/inkhaven/inkhaven/internal/platform/id"
)

// Phase describes the campaign-global writing phase.
//
// Phase is a single campaign-wide value, never per-scene: writers act during
// Write, privileged review and advancement happens during Resolve.
type Phase int

const (
	// PhaseUnspecified represents an invalid phase value.
	PhaseUnspecified Phase = iota
	// PhaseWrite indicates writers may compose posts.
	PhaseWrite
	// PhaseResolve indicates the privileged actor is reviewing and advancing
	// the story.
	PhaseResolve
)

// String returns the wire representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseWrite:
		return "write"
	case PhaseResolve:
		return "resolve"
	default:
		return "unspecified"
	}
}

// ParsePhase maps a wire representation back to a Phase.
func ParsePhase(value string) (Phase, bool) {
	switch value {
	case "write":
		return PhaseWrite, true
	case "resolve":
		return PhaseResolve, true
	default:
		return PhaseUnspecified, false
	}
}

// Campaign represents a top-level container owning scenes, characters, and
// the global phase.
type Campaign struct {
	ID    string
	Name  string
	Phase Phase
	// PhaseExpiresAt is the Write-window deadline; nil outside Write.
	PhaseExpiresAt *time.Time
	Paused         bool
	// LastPrivilegedActivityAt drives abandonment detection.
	LastPrivilegedActivityAt time.Time
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// WriteWindowExpired reports whether the Write-phase timer has elapsed.
// Expiry is evaluated lazily against the clock; nothing sweeps in the
// background.
func (c Campaign) WriteWindowExpired(now time.Time) bool {
	if c.Phase != PhaseWrite || c.PhaseExpiresAt == nil {
		return false
	}
	return !now.Before(*c.PhaseExpiresAt)
}

// CreateInput describes the metadata needed to create a campaign.
type CreateInput struct {
	Name string
}

// Create creates a new campaign with a generated ID and timestamps.
// Campaigns start in Resolve so the privileged actor can set scenes up
// before players act.
func Create(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Campaign, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateInput(input)
	if err != nil {
		return Campaign{}, err
	}

	campaignID, err := idGenerator()
	if err != nil {
		return Campaign{}, fmt.Errorf("generate campaign id: %w", err)
	}

	createdAt := now().UTC()
	return Campaign{
		ID:                       campaignID,
		Name:                     normalized.Name,
		Phase:                    PhaseResolve,
		LastPrivilegedActivityAt: createdAt,
		CreatedAt:                createdAt,
		UpdatedAt:                createdAt,
	}, nil
}

// NormalizeCreateInput trims and validates campaign input metadata.
func NormalizeCreateInput(input CreateInput) (CreateInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return CreateInput{}, apperrors.New(apperrors.CodeCampaignNameEmpty, "campaign name is required")
	}
	return input, nil
}
