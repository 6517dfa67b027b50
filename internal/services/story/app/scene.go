package app

import (
	"context"
	"slices"

	apperrors "github.com/inkhaven/inkhaven/internal/platform/errors"
	"github.com/inkhaven/inkhaven/internal/services/story/domain/scene"
	"github.com/inkhaven/inkhaven/internal/services/story/storage"
)

// CreateSceneInput describes a new scene.
type CreateSceneInput struct {
	CampaignID string
	Name       string
}

// CreateSceneResult reports the created scene plus any capacity side effects.
type CreateSceneResult struct {
	Scene storage.SceneRecord
	// EvictedSceneID names the archived scene deleted to make room, if any.
	EvictedSceneID string
	// WarningThreshold is the advisory capacity threshold reached, or 0.
	WarningThreshold int
}

// CreateScene creates a scene, enforcing the campaign capacity policy. At the
// cap, the oldest archived scene is evicted in the same transaction; with no
// archived candidate, creation fails.
func (s *Service) CreateScene(ctx context.Context, identity Identity, input CreateSceneInput) (CreateSceneResult, error) {
	if err := requirePrivileged(identity); err != nil {
		return CreateSceneResult{}, err
	}

	created, err := scene.Create(scene.CreateInput{CampaignID: input.CampaignID, Name: input.Name}, s.now, s.newID)
	if err != nil {
		return CreateSceneResult{}, err
	}

	var result CreateSceneResult
	err = s.store.WithTx(ctx, func(tx storage.Store) error {
		if _, err := getCampaign(ctx, tx, input.CampaignID); err != nil {
			return err
		}

		count, err := tx.CountScenes(ctx, input.CampaignID)
		if err != nil {
			return err
		}

		oldest, err := tx.OldestArchivedScene(ctx, input.CampaignID)
		hasArchived := err == nil
		if err != nil && !apperrors.Is(err, apperrors.CodeNotFound) {
			return err
		}

		decision, err := scene.CheckCapacity(count, hasArchived)
		if err != nil {
			return err
		}
		if decision.Evict {
			if err := tx.DeleteScene(ctx, input.CampaignID, oldest.ID); err != nil {
				return err
			}
			result.EvictedSceneID = oldest.ID
		}
		result.WarningThreshold = decision.WarningThreshold

		result.Scene = storage.SceneRecord{
			ID:         created.ID,
			CampaignID: created.CampaignID,
			Name:       created.Name,
			CreatedAt:  created.CreatedAt,
			UpdatedAt:  created.UpdatedAt,
		}
		return tx.PutScene(ctx, result.Scene)
	})
	if err != nil {
		return CreateSceneResult{}, err
	}

	if result.EvictedSceneID != "" {
		s.publish(ctx, Event{
			Type:        EventSceneEvicted,
			CampaignID:  input.CampaignID,
			SceneID:     result.EvictedSceneID,
			ActorUserID: identity.UserID,
		})
	}
	s.publish(ctx, Event{
		Type:        EventSceneCreated,
		CampaignID:  input.CampaignID,
		SceneID:     result.Scene.ID,
		ActorUserID: identity.UserID,
	})
	if result.WarningThreshold > 0 {
		s.logger.Warn().
			Str("campaign_id", input.CampaignID).
			Int("threshold", result.WarningThreshold).
			Msg("campaign is approaching the scene cap")
	}
	return result, nil
}

// GetScene returns a scene when the caller may see it.
func (s *Service) GetScene(ctx context.Context, identity Identity, campaignID, sceneID, characterID string) (storage.SceneRecord, error) {
	record, err := getScene(ctx, s.store, campaignID, sceneID)
	if err != nil {
		return storage.SceneRecord{}, err
	}
	if identity.Privileged {
		return record, nil
	}

	visible, err := s.sceneVisible(ctx, s.store, identity, campaignID, sceneID, characterID)
	if err != nil {
		return storage.SceneRecord{}, err
	}
	if !visible {
		// Hidden scenes do not exist for outsiders.
		return storage.SceneRecord{}, apperrors.New(apperrors.CodeSceneNotFound, "scene not found")
	}
	return record, nil
}

// ListScenes returns the scenes the caller may see. The privileged actor sees
// every scene; a character sees the scene it occupies plus any scene where it
// witnesses at least one post.
func (s *Service) ListScenes(ctx context.Context, identity Identity, campaignID, characterID string) ([]storage.SceneRecord, error) {
	scenes, err := s.store.ListScenes(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if identity.Privileged {
		return scenes, nil
	}

	visibleIDs, err := s.visibleSceneIDs(ctx, s.store, identity, campaignID, characterID)
	if err != nil {
		return nil, err
	}

	visible := scenes[:0]
	for _, record := range scenes {
		if slices.Contains(visibleIDs, record.ID) {
			visible = append(visible, record)
		}
	}
	return visible, nil
}

// ArchiveScene marks a scene archived, making it an eviction candidate.
func (s *Service) ArchiveScene(ctx context.Context, identity Identity, campaignID, sceneID string) (storage.SceneRecord, error) {
	return s.setArchived(ctx, identity, campaignID, sceneID, true)
}

// UnarchiveScene reactivates an archived scene.
func (s *Service) UnarchiveScene(ctx context.Context, identity Identity, campaignID, sceneID string) (storage.SceneRecord, error) {
	return s.setArchived(ctx, identity, campaignID, sceneID, false)
}

func (s *Service) setArchived(ctx context.Context, identity Identity, campaignID, sceneID string, archived bool) (storage.SceneRecord, error) {
	if err := requirePrivileged(identity); err != nil {
		return storage.SceneRecord{}, err
	}

	var record storage.SceneRecord
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		var err error
		record, err = getScene(ctx, tx, campaignID, sceneID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		record.Archived = archived
		if archived {
			record.ArchivedAt = &now
		} else {
			record.ArchivedAt = nil
		}
		record.UpdatedAt = now
		return tx.PutScene(ctx, record)
	})
	if err != nil {
		return storage.SceneRecord{}, err
	}

	if archived {
		s.publish(ctx, Event{
			Type:        EventSceneArchived,
			CampaignID:  campaignID,
			SceneID:     sceneID,
			ActorUserID: identity.UserID,
		})
	}
	return record, nil
}

// DeleteScene removes a scene outright. Its posts, locks, and occupancy rows
// go with it.
func (s *Service) DeleteScene(ctx context.Context, identity Identity, campaignID, sceneID string) error {
	if err := requirePrivileged(identity); err != nil {
		return err
	}
	err := s.store.DeleteScene(ctx, campaignID, sceneID)
	if err != nil && apperrors.Is(err, apperrors.CodeNotFound) {
		return apperrors.New(apperrors.CodeSceneNotFound, "scene not found")
	}
	return err
}

// AddOccupant places a character into a scene. A character occupies at most
// one scene; occupancy starts with pass state None.
func (s *Service) AddOccupant(ctx context.Context, identity Identity, campaignID, sceneID, characterID string) error {
	if err := requirePrivileged(identity); err != nil {
		return err
	}

	return s.store.WithTx(ctx, func(tx storage.Store) error {
		if _, err := getScene(ctx, tx, campaignID, sceneID); err != nil {
			return err
		}
		if _, err := getCharacter(ctx, tx, campaignID, characterID); err != nil {
			return err
		}

		if existing, err := tx.GetOccupantByCharacter(ctx, campaignID, characterID); err == nil {
			if existing.SceneID == sceneID {
				return nil
			}
			if err := tx.RemoveOccupant(ctx, existing.SceneID, existing.CharacterID); err != nil {
				return err
			}
		} else if !apperrors.Is(err, apperrors.CodeNotFound) {
			return err
		}

		return tx.AddOccupant(ctx, storage.OccupantRecord{
			CampaignID:  campaignID,
			SceneID:     sceneID,
			CharacterID: characterID,
			JoinedAt:    s.now().UTC(),
		})
	})
}

// RemoveOccupant takes a character out of a scene. The character keeps
// visibility of every post it already witnessed; witness sets are frozen.
func (s *Service) RemoveOccupant(ctx context.Context, identity Identity, campaignID, sceneID, characterID string) error {
	if err := requirePrivileged(identity); err != nil {
		return err
	}
	err := s.store.RemoveOccupant(ctx, sceneID, characterID)
	if err != nil && apperrors.Is(err, apperrors.CodeNotFound) {
		return apperrors.New(apperrors.CodeNotMember, "character does not occupy this scene")
	}
	return err
}

// sceneVisible reports whether a scene exists from the caller's perspective:
// the controlled character occupies it or witnesses at least one post in it.
func (s *Service) sceneVisible(ctx context.Context, tx storage.Store, identity Identity, campaignID, sceneID, characterID string) (bool, error) {
	visibleIDs, err := s.visibleSceneIDs(ctx, tx, identity, campaignID, characterID)
	if err != nil {
		return false, err
	}
	return slices.Contains(visibleIDs, sceneID), nil
}

func (s *Service) visibleSceneIDs(ctx context.Context, tx storage.Store, identity Identity, campaignID, characterID string) ([]string, error) {
	record, err := getCharacter(ctx, tx, campaignID, characterID)
	if err != nil {
		return nil, err
	}
	if err := requireController(identity, record); err != nil {
		return nil, err
	}

	sceneIDs, err := tx.WitnessedSceneIDs(ctx, campaignID, characterID)
	if err != nil {
		return nil, err
	}
	if occupant, err := tx.GetOccupantByCharacter(ctx, campaignID, characterID); err == nil {
		if !slices.Contains(sceneIDs, occupant.SceneID) {
			sceneIDs = append(sceneIDs, occupant.SceneID)
		}
	} else if !apperrors.Is(err, apperrors.CodeNotFound) {
		return nil, err
	}
	return sceneIDs, nil
}
