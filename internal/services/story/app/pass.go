package app

import (
	"context"

	apperrors "github.com/inkhaven/inkhaven/internal/platform/errors"
	"github.com/inkhaven/inkhaven/internal/services/story/domain/pass"
	"github.com/inkhaven/inkhaven/internal/services/story/storage"
)

// SetPass marks a character ready at the given tier. A pending roll blocks
// both tiers: the character owes the table dice before it may rest.
func (s *Service) SetPass(ctx context.Context, identity Identity, campaignID, characterID string, state pass.State) error {
	if state != pass.StatePassed && state != pass.StateHardPassed {
		return apperrors.New(apperrors.CodeInvalidPassState, "pass state must be passed or hard_passed")
	}

	var occupant storage.OccupantRecord
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		c, err := getCampaign(ctx, tx, campaignID)
		if err != nil {
			return err
		}
		if err := s.requireComposable(ctx, tx, identity, c); err != nil {
			return err
		}

		characterRecord, err := getCharacter(ctx, tx, campaignID, characterID)
		if err != nil {
			return err
		}
		if err := requireController(identity, characterRecord); err != nil {
			return err
		}

		occupant, err = tx.GetOccupantByCharacter(ctx, campaignID, characterID)
		if err != nil {
			if apperrors.Is(err, apperrors.CodeNotFound) {
				return apperrors.New(apperrors.CodeNotMember, "character does not occupy a scene")
			}
			return err
		}

		pending, err := tx.HasPendingRoll(ctx, campaignID, characterID)
		if err != nil {
			return err
		}
		if pending {
			return apperrors.New(apperrors.CodeRollPending, "character has an unresolved roll")
		}

		return tx.SetPassState(ctx, occupant.SceneID, characterID, state, s.now().UTC())
	})
	if err != nil {
		return err
	}

	s.publish(ctx, Event{
		Type:        EventPassChanged,
		CampaignID:  campaignID,
		SceneID:     occupant.SceneID,
		CharacterID: characterID,
		PassState:   state.String(),
		ActorUserID: identity.UserID,
	})
	return nil
}

// ClearPass withdraws a character's readiness. Un-passing is always allowed
// while the campaign is writable, pending roll or not.
func (s *Service) ClearPass(ctx context.Context, identity Identity, campaignID, characterID string) error {
	var occupant storage.OccupantRecord
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		c, err := getCampaign(ctx, tx, campaignID)
		if err != nil {
			return err
		}
		if err := s.requireComposable(ctx, tx, identity, c); err != nil {
			return err
		}

		characterRecord, err := getCharacter(ctx, tx, campaignID, characterID)
		if err != nil {
			return err
		}
		if err := requireController(identity, characterRecord); err != nil {
			return err
		}

		occupant, err = tx.GetOccupantByCharacter(ctx, campaignID, characterID)
		if err != nil {
			if apperrors.Is(err, apperrors.CodeNotFound) {
				return apperrors.New(apperrors.CodeNotMember, "character does not occupy a scene")
			}
			return err
		}

		return tx.SetPassState(ctx, occupant.SceneID, characterID, pass.StateNone, s.now().UTC())
	})
	if err != nil {
		return err
	}

	s.publish(ctx, Event{
		Type:        EventPassChanged,
		CampaignID:  campaignID,
		SceneID:     occupant.SceneID,
		CharacterID: characterID,
		PassState:   pass.StateNone.String(),
		ActorUserID: identity.UserID,
	})
	return nil
}
