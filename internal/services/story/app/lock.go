package app

import (
	"context"

	apperrors "github.com/inkhaven/inkhaven/internal/platform/errors"
	"github.com/inkhaven/inkhaven/internal/services/story/domain/campaign"
	"github.com/inkhaven/inkhaven/internal/services/story/domain/character"
	"github.com/inkhaven/inkhaven/internal/services/story/domain/composelock"
	"github.com/inkhaven/inkhaven/internal/services/story/storage"
)

// AcquireLockInput describes a compose lock acquisition.
type AcquireLockInput struct {
	CampaignID  string
	SceneID     string
	CharacterID string
	// Hidden conceals the holder's identity from non-privileged observers.
	// Only the privileged actor may acquire hidden locks.
	Hidden bool
}

// AcquireLock acquires or renews the compose lock for a (scene, character)
// pair. Re-acquiring a lease the caller already holds renews it; a live lease
// held by someone else is a conflict; an expired lease is replaced.
func (s *Service) AcquireLock(ctx context.Context, identity Identity, input AcquireLockInput) (storage.LockRecord, error) {
	if input.Hidden && !identity.Privileged {
		return storage.LockRecord{}, apperrors.New(apperrors.CodeNotPrivileged, "hidden locks require the privileged actor")
	}

	var record storage.LockRecord
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		c, err := getCampaign(ctx, tx, input.CampaignID)
		if err != nil {
			return err
		}
		if err := s.requireComposable(ctx, tx, identity, c); err != nil {
			return err
		}

		characterRecord, err := getCharacter(ctx, tx, input.CampaignID, input.CharacterID)
		if err != nil {
			return err
		}
		if err := requireAcquirable(identity, characterRecord); err != nil {
			return err
		}
		if _, err := tx.GetOccupant(ctx, input.SceneID, input.CharacterID); err != nil {
			if apperrors.Is(err, apperrors.CodeNotFound) {
				return apperrors.New(apperrors.CodeNotMember, "character does not occupy this scene")
			}
			return err
		}

		now := s.now().UTC()
		existing, err := tx.GetLockByKey(ctx, input.SceneID, input.CharacterID)
		switch {
		case err == nil && now.Before(existing.ExpiresAt):
			if existing.HolderUserID != identity.UserID {
				return apperrors.New(apperrors.CodeLockAlreadyHeld, "another writer holds the compose lock")
			}
			// Idempotent re-acquire extends the lease.
			record = existing
			record.ExpiresAt = now.Add(s.lockTTL)
			return tx.PutLock(ctx, record)
		case err == nil:
			// Expired lease: logically absent, replace it.
			if err := tx.DeleteLock(ctx, existing.ID); err != nil {
				return err
			}
		case !apperrors.Is(err, apperrors.CodeNotFound):
			return err
		}

		lock, err := composelock.Acquire(composelock.AcquireInput{
			CampaignID:   input.CampaignID,
			SceneID:      input.SceneID,
			CharacterID:  input.CharacterID,
			HolderUserID: identity.UserID,
			Hidden:       input.Hidden,
			TTL:          s.lockTTL,
		}, s.now, s.newID)
		if err != nil {
			return err
		}

		record = storage.LockRecord{
			ID:           lock.ID,
			CampaignID:   lock.CampaignID,
			SceneID:      lock.SceneID,
			CharacterID:  lock.CharacterID,
			HolderUserID: lock.HolderUserID,
			Hidden:       lock.Hidden,
			AcquiredAt:   lock.AcquiredAt,
			ExpiresAt:    lock.ExpiresAt,
		}
		return tx.PutLock(ctx, record)
	})
	if err != nil {
		return storage.LockRecord{}, err
	}

	s.publish(ctx, Event{
		Type:        EventLockAcquired,
		CampaignID:  input.CampaignID,
		SceneID:     input.SceneID,
		CharacterID: input.CharacterID,
		LockID:      record.ID,
		ActorUserID: identity.UserID,
		Hidden:      record.Hidden,
	})
	return record, nil
}

// HeartbeatLock extends a held lease. An expired lease is gone; the holder
// must re-acquire instead.
func (s *Service) HeartbeatLock(ctx context.Context, identity Identity, campaignID, lockID string) (storage.LockRecord, error) {
	var record storage.LockRecord
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		lock, err := tx.GetLock(ctx, lockID)
		if err != nil {
			if apperrors.Is(err, apperrors.CodeNotFound) {
				return apperrors.New(apperrors.CodeLockNotFound, "compose lock not found")
			}
			return err
		}
		if lock.CampaignID != campaignID {
			return apperrors.New(apperrors.CodeLockNotFound, "compose lock not found")
		}

		now := s.now().UTC()
		if !now.Before(lock.ExpiresAt) {
			if err := tx.DeleteLock(ctx, lock.ID); err != nil {
				return err
			}
			return apperrors.New(apperrors.CodeLockNotFound, "compose lock has expired")
		}
		if lock.HolderUserID != identity.UserID {
			return apperrors.New(apperrors.CodeNotController, "caller does not hold this lock")
		}

		lock.ExpiresAt = now.Add(s.lockTTL)
		record = lock
		return tx.PutLock(ctx, lock)
	})
	if err != nil {
		return storage.LockRecord{}, err
	}
	return record, nil
}

// ReleaseLock releases the compose lock for a (scene, character) pair.
// Releasing an absent or expired lock succeeds; release is idempotent.
func (s *Service) ReleaseLock(ctx context.Context, identity Identity, campaignID, sceneID, characterID string) error {
	var released storage.LockRecord
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		lock, err := tx.GetLockByKey(ctx, sceneID, characterID)
		if err != nil {
			if apperrors.Is(err, apperrors.CodeNotFound) {
				return nil
			}
			return err
		}

		now := s.now().UTC()
		if now.Before(lock.ExpiresAt) && lock.HolderUserID != identity.UserID && !identity.Privileged {
			return apperrors.New(apperrors.CodeNotController, "caller does not hold this lock")
		}
		released = lock
		return tx.DeleteLock(ctx, lock.ID)
	})
	if err != nil {
		return err
	}

	if released.ID != "" {
		s.publish(ctx, Event{
			Type:        EventLockReleased,
			CampaignID:  campaignID,
			SceneID:     sceneID,
			CharacterID: characterID,
			LockID:      released.ID,
			ActorUserID: identity.UserID,
			Hidden:      released.Hidden,
		})
	}
	return nil
}

// ForceReleaseLock removes a lock regardless of holder. Privileged recovery
// for abandoned compositions.
func (s *Service) ForceReleaseLock(ctx context.Context, identity Identity, campaignID, lockID string) error {
	if err := requirePrivileged(identity); err != nil {
		return err
	}

	var released storage.LockRecord
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		lock, err := tx.GetLock(ctx, lockID)
		if err != nil {
			if apperrors.Is(err, apperrors.CodeNotFound) {
				return apperrors.New(apperrors.CodeLockNotFound, "compose lock not found")
			}
			return err
		}
		if lock.CampaignID != campaignID {
			return apperrors.New(apperrors.CodeLockNotFound, "compose lock not found")
		}
		released = lock
		return tx.DeleteLock(ctx, lock.ID)
	})
	if err != nil {
		return err
	}

	s.publish(ctx, Event{
		Type:        EventLockReleased,
		CampaignID:  campaignID,
		SceneID:     released.SceneID,
		CharacterID: released.CharacterID,
		LockID:      released.ID,
		ActorUserID: identity.UserID,
		Hidden:      released.Hidden,
	})
	return nil
}

// ListLocks returns the campaign's live locks. Hidden locks are masked for
// everyone but the privileged actor and the holder: the lease is visible, the
// holder identity is not.
func (s *Service) ListLocks(ctx context.Context, identity Identity, campaignID string) ([]storage.LockRecord, error) {
	var locks []storage.LockRecord
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		var err error
		locks, err = s.liveLocks(ctx, tx, campaignID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !identity.Privileged {
		for i := range locks {
			if locks[i].Hidden && locks[i].HolderUserID != identity.UserID {
				locks[i].HolderUserID = ""
			}
		}
	}
	return locks, nil
}

// requireAcquirable checks who may take the compose lock for a character.
// Controllers acquire for their own characters; the privileged actor acquires
// only for controller-less or secondary characters, never over a player's
// primary.
func requireAcquirable(identity Identity, record storage.CharacterRecord) error {
	if !identity.Privileged {
		return requireController(identity, record)
	}
	if record.ControllerUserID == identity.UserID ||
		record.ControllerUserID == "" ||
		record.Kind == character.KindSecondary {
		return nil
	}
	return apperrors.New(apperrors.CodeNotEligible, "character is played by its controller")
}

// requireComposable checks the campaign-level gates for composing: the
// privileged actor may always compose; writers need an unpaused campaign in
// Write phase with a live window.
func (s *Service) requireComposable(ctx context.Context, tx storage.Store, identity Identity, c storage.CampaignRecord) error {
	if identity.Privileged {
		return nil
	}
	if c.Paused {
		return apperrors.New(apperrors.CodeCampaignPaused, "campaign is paused")
	}
	if c.Phase != campaign.PhaseWrite {
		return apperrors.New(apperrors.CodeNotEligiblePhase, "writing is only allowed during the write phase")
	}
	expired, err := s.syncWriteWindow(ctx, tx, c)
	if err != nil {
		return err
	}
	if expired {
		return apperrors.New(apperrors.CodeTimeGateExpired, "the write window has closed")
	}
	return nil
}
