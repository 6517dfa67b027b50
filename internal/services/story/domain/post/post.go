// Package post models authored contributions and their frozen witness sets.
//
// A post's witness set is computed once, at assignment, and never recomputed:
// a character who leaves a scene keeps visibility of what it already
// witnessed, and a character who joins late sees nothing prior to its first
// witnessed post. Visibility is a static set-membership test from then on.
package post

import (
	"fmt"
	"sort"
	"strings"
	"time"

	apperrors "github.com/inkhaven/inkhaven/internal/platform/errors"
	"github.com/inkhaven/inkhaven/internal/platform/id"
)

// Post represents one authored contribution to a scene.
type Post struct {
	ID         string
	CampaignID string
	SceneID    string
	// AuthorCharacterID is empty for narrator posts authored by the
	// privileged actor directly.
	AuthorCharacterID string
	AuthorUserID      string
	Body              string
	// Hidden posts carry the empty witness set as a sentinel until a
	// privileged reveal.
	Hidden bool
	// WitnessIDs is the frozen set of characters permitted to see the post.
	WitnessIDs []string
	// WitnessesAssigned distinguishes a deferred assignment (posts created
	// during Resolve wait for the witness transaction) from an assigned
	// empty set (hidden).
	WitnessesAssigned bool
	Locked            bool
	LockedAt          *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CreateInput describes a new post.
type CreateInput struct {
	CampaignID        string
	SceneID           string
	AuthorCharacterID string
	AuthorUserID      string
	Body              string
	Hidden            bool
}

// Create creates a new, unlocked post with a generated ID and timestamps.
// Witness assignment happens separately via Assign or the witness
// transaction.
func Create(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Post, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateInput(input)
	if err != nil {
		return Post{}, err
	}

	postID, err := idGenerator()
	if err != nil {
		return Post{}, fmt.Errorf("generate post id: %w", err)
	}

	createdAt := now().UTC()
	return Post{
		ID:                postID,
		CampaignID:        normalized.CampaignID,
		SceneID:           normalized.SceneID,
		AuthorCharacterID: normalized.AuthorCharacterID,
		AuthorUserID:      normalized.AuthorUserID,
		Body:              normalized.Body,
		Hidden:            normalized.Hidden,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}, nil
}

// NormalizeCreateInput trims and validates post input.
func NormalizeCreateInput(input CreateInput) (CreateInput, error) {
	input.CampaignID = strings.TrimSpace(input.CampaignID)
	if input.CampaignID == "" {
		return CreateInput{}, apperrors.New(apperrors.CodeCampaignNotFound, "campaign id is required")
	}
	input.SceneID = strings.TrimSpace(input.SceneID)
	if input.SceneID == "" {
		return CreateInput{}, apperrors.New(apperrors.CodeSceneNotFound, "scene id is required")
	}
	input.AuthorCharacterID = strings.TrimSpace(input.AuthorCharacterID)
	input.AuthorUserID = strings.TrimSpace(input.AuthorUserID)
	if strings.TrimSpace(input.Body) == "" {
		return CreateInput{}, apperrors.New(apperrors.CodePostBodyEmpty, "post body is required")
	}
	return input, nil
}

// NarratorPost reports whether the post was authored by the privileged actor
// with no character identity.
func (p Post) NarratorPost() bool {
	return p.AuthorCharacterID == ""
}

// ComputeDefaultWitnesses returns the witness set for a scene's current
// occupants: a sorted, deduplicated copy taken at the moment of submission,
// never recomputed later.
func ComputeDefaultWitnesses(occupantIDs []string) []string {
	seen := make(map[string]struct{}, len(occupantIDs))
	witnesses := make([]string, 0, len(occupantIDs))
	for _, occupantID := range occupantIDs {
		occupantID = strings.TrimSpace(occupantID)
		if occupantID == "" {
			continue
		}
		if _, ok := seen[occupantID]; ok {
			continue
		}
		seen[occupantID] = struct{}{}
		witnesses = append(witnesses, occupantID)
	}
	sort.Strings(witnesses)
	return witnesses
}

// Assign freezes the post's witness set.
//
// Hidden posts get the empty sentinel regardless of occupants. An explicit
// privileged selection wins over the default. The default is the occupant
// set passed by the caller, evaluated at submission time.
func (p *Post) Assign(explicit []string, defaults []string) {
	switch {
	case p.Hidden:
		p.WitnessIDs = []string{}
	case explicit != nil:
		p.WitnessIDs = ComputeDefaultWitnesses(explicit)
	default:
		p.WitnessIDs = ComputeDefaultWitnesses(defaults)
	}
	p.WitnessesAssigned = true
}

// Reveal transitions a hidden post's witness set from empty to newWitnessSet,
// permanently. There is no way to re-hide.
func (p *Post) Reveal(newWitnessSet []string) error {
	if !p.WitnessesAssigned || len(p.WitnessIDs) > 0 {
		return apperrors.New(apperrors.CodePostRevealed, "post witnesses are already assigned")
	}
	witnesses := ComputeDefaultWitnesses(newWitnessSet)
	if len(witnesses) == 0 {
		return apperrors.New(apperrors.CodeWitnessSetEmpty, "reveal requires at least one witness")
	}
	p.WitnessIDs = witnesses
	p.Hidden = false
	return nil
}

// VisibleTo reports whether a character may see the post. Privileged callers
// see everything; everyone else needs membership in the frozen witness set.
// Posts awaiting assignment are visible to no one but the privileged actor.
func (p Post) VisibleTo(characterID string, privileged bool) bool {
	if privileged {
		return true
	}
	if !p.WitnessesAssigned || characterID == "" {
		return false
	}
	for _, witnessID := range p.WitnessIDs {
		if witnessID == characterID {
			return true
		}
	}
	return false
}
