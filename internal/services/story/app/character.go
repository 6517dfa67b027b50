package app

import (
	"context"
	"strings"

	"github.com/inkhaven/inkhaven/internal/services/story/domain/character"
	"github.com/inkhaven/inkhaven/internal/services/story/storage"
)

// CreateCharacterInput describes a new character.
type CreateCharacterInput struct {
	CampaignID string
	Name       string
	Kind       character.Kind
	// ControllerUserID may only differ from the caller for privileged actors.
	ControllerUserID string
}

// CreateCharacter creates a character. Non-privileged callers always become
// the controller themselves.
func (s *Service) CreateCharacter(ctx context.Context, identity Identity, input CreateCharacterInput) (storage.CharacterRecord, error) {
	controller := strings.TrimSpace(input.ControllerUserID)
	if !identity.Privileged || controller == "" {
		controller = identity.UserID
	}

	created, err := character.Create(character.CreateInput{
		CampaignID:       input.CampaignID,
		Name:             input.Name,
		Kind:             input.Kind,
		ControllerUserID: controller,
	}, s.now, s.newID)
	if err != nil {
		return storage.CharacterRecord{}, err
	}

	record := storage.CharacterRecord{
		ID:               created.ID,
		CampaignID:       created.CampaignID,
		Name:             created.Name,
		Kind:             created.Kind,
		ControllerUserID: created.ControllerUserID,
		CreatedAt:        created.CreatedAt,
		UpdatedAt:        created.UpdatedAt,
	}

	err = s.store.WithTx(ctx, func(tx storage.Store) error {
		if _, err := getCampaign(ctx, tx, input.CampaignID); err != nil {
			return err
		}
		return tx.PutCharacter(ctx, record)
	})
	if err != nil {
		return storage.CharacterRecord{}, err
	}
	return record, nil
}

// GetCharacter returns a character record.
func (s *Service) GetCharacter(ctx context.Context, identity Identity, campaignID, characterID string) (storage.CharacterRecord, error) {
	return getCharacter(ctx, s.store, campaignID, characterID)
}

// ListCharacters returns the campaign's characters.
func (s *Service) ListCharacters(ctx context.Context, identity Identity, campaignID string) ([]storage.CharacterRecord, error) {
	return s.store.ListCharacters(ctx, campaignID)
}

// AssignController reassigns who controls a character. An empty user id
// orphans the character: it stays in its scenes and keeps its history, but
// drops out of readiness calculations until someone adopts it.
func (s *Service) AssignController(ctx context.Context, identity Identity, campaignID, characterID, userID string) (storage.CharacterRecord, error) {
	if err := requirePrivileged(identity); err != nil {
		return storage.CharacterRecord{}, err
	}

	var record storage.CharacterRecord
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		var err error
		record, err = getCharacter(ctx, tx, campaignID, characterID)
		if err != nil {
			return err
		}
		record.ControllerUserID = strings.TrimSpace(userID)
		record.UpdatedAt = s.now().UTC()
		return tx.PutCharacter(ctx, record)
	})
	if err != nil {
		return storage.CharacterRecord{}, err
	}
	return record, nil
}

// ArchiveCharacter marks a character archived. Characters are never deleted;
// posts reference them by id forever.
func (s *Service) ArchiveCharacter(ctx context.Context, identity Identity, campaignID, characterID string) (storage.CharacterRecord, error) {
	if err := requirePrivileged(identity); err != nil {
		return storage.CharacterRecord{}, err
	}

	var record storage.CharacterRecord
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		var err error
		record, err = getCharacter(ctx, tx, campaignID, characterID)
		if err != nil {
			return err
		}
		record.Archived = true
		record.UpdatedAt = s.now().UTC()
		return tx.PutCharacter(ctx, record)
	})
	if err != nil {
		return storage.CharacterRecord{}, err
	}
	return record, nil
}
