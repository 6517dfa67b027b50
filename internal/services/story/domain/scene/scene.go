// Package scene models narrative threads and the campaign scene capacity
// policy.
package scene

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/inkhaven/inkhaven/internal/platform/errors"
	"github.com/inkhaven/inkhaven/internal/platform/id"
)

// MaxPerCampaign is the hard cap on scenes per campaign, counting active and
// archived scenes. Deleted scenes do not count.
const MaxPerCampaign = 25

// Warning thresholds are advisory signals, not enforcement points.
var warningThresholds = []int{24, 23, 20}

// Scene represents a narrative thread within a campaign.
type Scene struct {
	ID         string
	CampaignID string
	Name       string
	Archived   bool
	ArchivedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// CreateInput describes the metadata needed to create a scene.
type CreateInput struct {
	CampaignID string
	Name       string
}

// Create creates a new scene with a generated ID and timestamps.
func Create(input CreateInput, now func() time.Time, idGenerator func() (string, error)) (Scene, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateInput(input)
	if err != nil {
		return Scene{}, err
	}

	sceneID, err := idGenerator()
	if err != nil {
		return Scene{}, fmt.Errorf("generate scene id: %w", err)
	}

	createdAt := now().UTC()
	return Scene{
		ID:         sceneID,
		CampaignID: normalized.CampaignID,
		Name:       normalized.Name,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}, nil
}

// NormalizeCreateInput trims and validates scene input metadata.
func NormalizeCreateInput(input CreateInput) (CreateInput, error) {
	input.CampaignID = strings.TrimSpace(input.CampaignID)
	if input.CampaignID == "" {
		return CreateInput{}, apperrors.New(apperrors.CodeCampaignNotFound, "campaign id is required")
	}
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return CreateInput{}, apperrors.New(apperrors.CodeSceneNameEmpty, "scene name is required")
	}
	return input, nil
}

// CapacityDecision describes what creating one more scene requires.
type CapacityDecision struct {
	// Evict is true when the oldest archived scene must be deleted to make
	// room for the new one.
	Evict bool
	// WarningThreshold is the advisory threshold the post-creation count
	// reaches, or 0 when none applies.
	WarningThreshold int
}

// CheckCapacity evaluates the capacity policy for creating one more scene
// given the current scene count (active + archived) and whether any archived
// scene exists as an eviction candidate.
//
// At the cap, creation does not fail outright: the oldest archived scene is
// evicted instead. Only when no archived scene exists does creation fail.
func CheckCapacity(currentCount int, hasArchived bool) (CapacityDecision, error) {
	if currentCount >= MaxPerCampaign {
		if !hasArchived {
			return CapacityDecision{}, apperrors.New(apperrors.CodeNoEvictionCandidate, "scene cap reached and no archived scene to evict")
		}
		return CapacityDecision{Evict: true, WarningThreshold: MaxPerCampaign - 1}, nil
	}
	return CapacityDecision{WarningThreshold: WarningThreshold(currentCount + 1)}, nil
}

// WarningThreshold returns the highest advisory threshold the given scene
// count reaches, or 0 when the count is below all thresholds.
func WarningThreshold(count int) int {
	for _, threshold := range warningThresholds {
		if count >= threshold {
			return threshold
		}
	}
	return 0
}
