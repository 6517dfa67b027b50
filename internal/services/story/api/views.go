package api

import (
	"time"

	"github.com/inkhaven/inkhaven/internal/services/story/dice"
	"github.com/inkhaven/inkhaven/internal/services/story/storage"
)

type campaignView struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Phase          string     `json:"phase"`
	PhaseExpiresAt *time.Time `json:"phase_expires_at,omitempty"`
	Paused         bool       `json:"paused"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toCampaignView(record storage.CampaignRecord) campaignView {
	return campaignView{
		ID:             record.ID,
		Name:           record.Name,
		Phase:          record.Phase.String(),
		PhaseExpiresAt: record.PhaseExpiresAt,
		Paused:         record.Paused,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
}

type sceneView struct {
	ID         string     `json:"id"`
	CampaignID string     `json:"campaign_id"`
	Name       string     `json:"name"`
	Archived   bool       `json:"archived"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func toSceneView(record storage.SceneRecord) sceneView {
	return sceneView{
		ID:         record.ID,
		CampaignID: record.CampaignID,
		Name:       record.Name,
		Archived:   record.Archived,
		ArchivedAt: record.ArchivedAt,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
}

func toSceneViews(records []storage.SceneRecord) []sceneView {
	views := make([]sceneView, 0, len(records))
	for _, record := range records {
		views = append(views, toSceneView(record))
	}
	return views
}

type characterView struct {
	ID               string    `json:"id"`
	CampaignID       string    `json:"campaign_id"`
	Name             string    `json:"name"`
	Kind             string    `json:"kind"`
	ControllerUserID string    `json:"controller_user_id,omitempty"`
	Orphaned         bool      `json:"orphaned"`
	Archived         bool      `json:"archived"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toCharacterView(record storage.CharacterRecord) characterView {
	return characterView{
		ID:               record.ID,
		CampaignID:       record.CampaignID,
		Name:             record.Name,
		Kind:             record.Kind.String(),
		ControllerUserID: record.ControllerUserID,
		Orphaned:         record.ControllerUserID == "",
		Archived:         record.Archived,
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        record.UpdatedAt,
	}
}

type postView struct {
	ID                string     `json:"id"`
	CampaignID        string     `json:"campaign_id"`
	SceneID           string     `json:"scene_id"`
	AuthorCharacterID string     `json:"author_character_id,omitempty"`
	Body              string     `json:"body"`
	Hidden            bool       `json:"hidden"`
	WitnessIDs        []string   `json:"witness_ids"`
	WitnessesAssigned bool       `json:"witnesses_assigned"`
	Locked            bool       `json:"locked"`
	LockedAt          *time.Time `json:"locked_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func toPostView(record storage.PostRecord) postView {
	return postView{
		ID:                record.ID,
		CampaignID:        record.CampaignID,
		SceneID:           record.SceneID,
		AuthorCharacterID: record.AuthorCharacterID,
		Body:              record.Body,
		Hidden:            record.Hidden,
		WitnessIDs:        record.WitnessIDs,
		WitnessesAssigned: record.WitnessesAssigned,
		Locked:            record.Locked,
		LockedAt:          record.LockedAt,
		CreatedAt:         record.CreatedAt,
		UpdatedAt:         record.UpdatedAt,
	}
}

func toPostViews(records []storage.PostRecord) []postView {
	views := make([]postView, 0, len(records))
	for _, record := range records {
		views = append(views, toPostView(record))
	}
	return views
}

type lockView struct {
	ID           string    `json:"id"`
	CampaignID   string    `json:"campaign_id"`
	SceneID      string    `json:"scene_id"`
	CharacterID  string    `json:"character_id"`
	HolderUserID string    `json:"holder_user_id,omitempty"`
	Hidden       bool      `json:"hidden"`
	AcquiredAt   time.Time `json:"acquired_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func toLockView(record storage.LockRecord) lockView {
	return lockView{
		ID:           record.ID,
		CampaignID:   record.CampaignID,
		SceneID:      record.SceneID,
		CharacterID:  record.CharacterID,
		HolderUserID: record.HolderUserID,
		Hidden:       record.Hidden,
		AcquiredAt:   record.AcquiredAt,
		ExpiresAt:    record.ExpiresAt,
	}
}

type rollView struct {
	ID          string           `json:"id"`
	CampaignID  string           `json:"campaign_id"`
	SceneID     string           `json:"scene_id"`
	CharacterID string           `json:"character_id"`
	Dice        []dice.DiceSpec  `json:"dice"`
	Status      string           `json:"status"`
	Result      *dice.RollResult `json:"result,omitempty"`
	RequestedAt time.Time        `json:"requested_at"`
	ResolvedAt  *time.Time       `json:"resolved_at,omitempty"`
}

func toRollView(record storage.RollRecord) rollView {
	return rollView{
		ID:          record.ID,
		CampaignID:  record.CampaignID,
		SceneID:     record.SceneID,
		CharacterID: record.CharacterID,
		Dice:        record.Dice,
		Status:      record.Status.String(),
		Result:      record.Result,
		RequestedAt: record.RequestedAt,
		ResolvedAt:  record.ResolvedAt,
	}
}
