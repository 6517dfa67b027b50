package app

import (
	"context"

	apperrors "github.com/inkhaven/inkhaven/internal/platform/errors"
	"github.com/inkhaven/inkhaven/internal/services/story/dice"
	"github.com/inkhaven/inkhaven/internal/services/story/domain/roll"
	"github.com/inkhaven/inkhaven/internal/services/story/storage"
)

// RequestRollInput describes a roll request for a character.
type RequestRollInput struct {
	CampaignID  string
	SceneID     string
	CharacterID string
	Dice        []dice.DiceSpec
}

// RequestRoll asks a character for dice. While the roll is pending the
// character can neither pass nor hard pass, and the campaign cannot resolve.
func (s *Service) RequestRoll(ctx context.Context, identity Identity, input RequestRollInput) (storage.RollRecord, error) {
	if err := requirePrivileged(identity); err != nil {
		return storage.RollRecord{}, err
	}

	requested, err := roll.Request(roll.RequestInput{
		CampaignID:        input.CampaignID,
		SceneID:           input.SceneID,
		CharacterID:       input.CharacterID,
		RequestedByUserID: identity.UserID,
		Dice:              input.Dice,
	}, s.now, s.newID)
	if err != nil {
		return storage.RollRecord{}, err
	}

	record := storage.RollRecord{
		ID:                requested.ID,
		CampaignID:        requested.CampaignID,
		SceneID:           requested.SceneID,
		CharacterID:       requested.CharacterID,
		RequestedByUserID: requested.RequestedByUserID,
		Dice:              requested.Dice,
		Status:            requested.Status,
		RequestedAt:       requested.RequestedAt,
	}

	err = s.store.WithTx(ctx, func(tx storage.Store) error {
		if _, err := getCampaign(ctx, tx, input.CampaignID); err != nil {
			return err
		}
		if _, err := getScene(ctx, tx, input.CampaignID, input.SceneID); err != nil {
			return err
		}
		if _, err := getCharacter(ctx, tx, input.CampaignID, input.CharacterID); err != nil {
			return err
		}
		return tx.PutRoll(ctx, record)
	})
	if err != nil {
		return storage.RollRecord{}, err
	}

	s.publish(ctx, Event{
		Type:        EventRollRequested,
		CampaignID:  input.CampaignID,
		SceneID:     input.SceneID,
		CharacterID: input.CharacterID,
		RollID:      record.ID,
		ActorUserID: identity.UserID,
	})
	return record, nil
}

// ResolveRoll rolls the requested dice. Only the character's controller or
// the privileged actor may resolve, and only once.
func (s *Service) ResolveRoll(ctx context.Context, identity Identity, campaignID, rollID string) (storage.RollRecord, error) {
	var record storage.RollRecord
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		var err error
		record, err = tx.GetRoll(ctx, campaignID, rollID)
		if err != nil {
			if apperrors.Is(err, apperrors.CodeNotFound) {
				return apperrors.New(apperrors.CodeRollNotFound, "roll not found")
			}
			return err
		}

		characterRecord, err := getCharacter(ctx, tx, campaignID, record.CharacterID)
		if err != nil {
			return err
		}
		if err := requireController(identity, characterRecord); err != nil {
			return err
		}

		domainRoll := roll.Roll{
			Dice:   record.Dice,
			Status: record.Status,
		}
		if err := domainRoll.Resolve(s.seed(), s.now); err != nil {
			return err
		}

		record.Status = domainRoll.Status
		record.Result = domainRoll.Result
		record.ResolvedAt = domainRoll.ResolvedAt
		return tx.PutRoll(ctx, record)
	})
	if err != nil {
		return storage.RollRecord{}, err
	}

	s.publish(ctx, Event{
		Type:        EventRollResolved,
		CampaignID:  campaignID,
		SceneID:     record.SceneID,
		CharacterID: record.CharacterID,
		RollID:      record.ID,
		ActorUserID: identity.UserID,
	})
	return record, nil
}

// GetRoll returns a roll for its controller or the privileged actor.
func (s *Service) GetRoll(ctx context.Context, identity Identity, campaignID, rollID string) (storage.RollRecord, error) {
	record, err := s.store.GetRoll(ctx, campaignID, rollID)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return storage.RollRecord{}, apperrors.New(apperrors.CodeRollNotFound, "roll not found")
		}
		return storage.RollRecord{}, err
	}
	if !identity.Privileged {
		characterRecord, err := getCharacter(ctx, s.store, campaignID, record.CharacterID)
		if err != nil {
			return storage.RollRecord{}, err
		}
		if err := requireController(identity, characterRecord); err != nil {
			return storage.RollRecord{}, err
		}
	}
	return record, nil
}

// ListPendingRolls returns the campaign's unresolved rolls. Non-privileged
// callers see only the rolls of characters they control.
func (s *Service) ListPendingRolls(ctx context.Context, identity Identity, campaignID string) ([]storage.RollRecord, error) {
	rolls, err := s.store.ListPendingRolls(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if identity.Privileged {
		return rolls, nil
	}

	characters, err := s.store.ListCharacters(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	controlled := make(map[string]bool, len(characters))
	for _, c := range characters {
		if c.ControllerUserID == identity.UserID {
			controlled[c.ID] = true
		}
	}

	visible := rolls[:0]
	for _, record := range rolls {
		if controlled[record.CharacterID] {
			visible = append(visible, record)
		}
	}
	return visible, nil
}
