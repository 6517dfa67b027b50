// Package character models in-fiction identities and their controlling users.
package character

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/inkhaven/inkhaven/internal/platform/errors"
	"github.com/inkhaven/inkhaven/internal/platform/id"
)

// Kind describes how a character is presented. The distinction carries no
// mechanical weight.
type Kind int

const (
	// KindUnspecified represents an invalid character kind value.
	KindUnspecified Kind = iota
	// KindPrimary indicates a player's main character.
	KindPrimary
	// KindSecondary indicates a supporting character.
	KindSecondary
)

// String returns the wire representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindPrimary:
		return "primary"
	case KindSecondary:
		return "secondary"
	default:
		return "unspecified"
	}
}

// ParseKind maps a wire representation back to a Kind.
func ParseKind(value string) (Kind, bool) {
	switch value {
	case "primary":
		return KindPrimary, true
	case "secondary":
		return KindSecondary, true
	default:
		return KindUnspecified, false
	}
}

// Character represents an in-fiction identity within a campaign.
//
// Characters are never hard-deleted: posts reference them by id forever, so
// archival and orphaning are the only terminal states.
type Character struct {
	ID         string
	CampaignID string
	Name       string
	Kind       Kind
	// ControllerUserID is the user controlling the character. Empty means the
	// character is orphaned: uncontrollable and excluded from readiness.
	ControllerUserID string
	Archived         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Orphaned reports whether no user controls the character.
func (c Character) Orphaned() bool {
	return c.ControllerUserID == ""
}

// ControlledBy reports whether the given user controls the character.
func (c Character) ControlledBy(userID string) bool {
	return c.ControllerUserID != "" && c.ControllerUserID == userID
}

// CreateInput describes the metadata needed to create a character.
type CreateInput struct {
	CampaignID       string
	Name             string
	Kind             Kind
	ControllerUserID string
}

// Create creates a new character with a generated ID and timestamps.
func Create(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Character, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateInput(input)
	if err != nil {
		return Character{}, err
	}

	characterID, err := idGenerator()
	if err != nil {
		return Character{}, fmt.Errorf("generate character id: %w", err)
	}

	createdAt := now().UTC()
	return Character{
		ID:               characterID,
		CampaignID:       normalized.CampaignID,
		Name:             normalized.Name,
		Kind:             normalized.Kind,
		ControllerUserID: normalized.ControllerUserID,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}, nil
}

// NormalizeCreateInput trims and validates character input metadata.
func NormalizeCreateInput(input CreateInput) (CreateInput, error) {
	input.CampaignID = strings.TrimSpace(input.CampaignID)
	if input.CampaignID == "" {
		return CreateInput{}, apperrors.New(apperrors.CodeCampaignNotFound, "campaign id is required")
	}
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return CreateInput{}, apperrors.New(apperrors.CodeCharacterNameEmpty, "character name is required")
	}
	if input.Kind != KindPrimary && input.Kind != KindSecondary {
		return CreateInput{}, apperrors.New(apperrors.CodeCharacterInvalidKind, "character kind is required")
	}
	input.ControllerUserID = strings.TrimSpace(input.ControllerUserID)
	return input, nil
}
