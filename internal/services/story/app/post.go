package app

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/inkhaven/inkhaven/internal/platform/errors"
	"github.com/inkhaven/inkhaven/internal/services/story/domain/campaign"
	"github.com/inkhaven/inkhaven/internal/services/story/domain/post"
	"github.com/inkhaven/inkhaven/internal/services/story/storage"
)

// CreatePostInput describes a new post.
type CreatePostInput struct {
	CampaignID string
	SceneID    string
	// AuthorCharacterID is empty for narrator posts by the privileged actor.
	AuthorCharacterID string
	Body              string
	// Hidden posts start with the empty witness set. Privileged only.
	Hidden bool
	// WitnessIDs is an explicit witness selection. Privileged only; nil means
	// the default set.
	WitnessIDs []string
}

// CreatePost submits a post to a scene.
//
// Character posts require a live compose lock held by the author; posting
// consumes the lock. The new post locks its predecessor, clears soft passes
// of the other occupants, and freezes its own witness set. Default-witnessed
// posts created during Resolve defer assignment to the witness transaction at
// the next Resolve -> Write boundary.
func (s *Service) CreatePost(ctx context.Context, identity Identity, input CreatePostInput) (storage.PostRecord, error) {
	narrator := strings.TrimSpace(input.AuthorCharacterID) == ""
	if narrator || input.Hidden || input.WitnessIDs != nil {
		if err := requirePrivileged(identity); err != nil {
			return storage.PostRecord{}, err
		}
	}

	var record storage.PostRecord
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		c, err := getCampaign(ctx, tx, input.CampaignID)
		if err != nil {
			return err
		}
		if err := s.requireComposable(ctx, tx, identity, c); err != nil {
			return err
		}
		if _, err := getScene(ctx, tx, input.CampaignID, input.SceneID); err != nil {
			return err
		}

		if !narrator {
			characterRecord, err := getCharacter(ctx, tx, input.CampaignID, input.AuthorCharacterID)
			if err != nil {
				return err
			}
			if err := requireController(identity, characterRecord); err != nil {
				return err
			}
			if _, err := tx.GetOccupant(ctx, input.SceneID, input.AuthorCharacterID); err != nil {
				if apperrors.Is(err, apperrors.CodeNotFound) {
					return apperrors.New(apperrors.CodeNotMember, "character does not occupy this scene")
				}
				return err
			}
			if err := s.requireHeldLock(ctx, tx, identity, input.SceneID, input.AuthorCharacterID); err != nil {
				return err
			}
		}

		created, err := post.Create(post.CreateInput{
			CampaignID:        input.CampaignID,
			SceneID:           input.SceneID,
			AuthorCharacterID: input.AuthorCharacterID,
			AuthorUserID:      identity.UserID,
			Body:              input.Body,
			Hidden:            input.Hidden,
		}, s.now, s.newID)
		if err != nil {
			return err
		}

		// Default-witnessed posts during Resolve wait for the witness
		// transaction; everything else freezes now.
		deferAssignment := c.Phase == campaign.PhaseResolve && !created.Hidden && input.WitnessIDs == nil
		if !deferAssignment {
			occupantIDs, err := sceneOccupantIDs(ctx, tx, input.SceneID)
			if err != nil {
				return err
			}
			created.Assign(input.WitnessIDs, occupantIDs)
		}

		now := s.now().UTC()
		if err := lockLatestPost(ctx, tx, input.SceneID, now); err != nil {
			return err
		}
		if err := tx.ClearPassedExcept(ctx, input.SceneID, input.AuthorCharacterID, now); err != nil {
			return err
		}
		if !narrator {
			if err := s.releaseAuthorLock(ctx, tx, input.SceneID, input.AuthorCharacterID); err != nil {
				return err
			}
		}

		record = storage.PostRecord{
			ID:                created.ID,
			CampaignID:        created.CampaignID,
			SceneID:           created.SceneID,
			AuthorCharacterID: created.AuthorCharacterID,
			AuthorUserID:      created.AuthorUserID,
			Body:              created.Body,
			Hidden:            created.Hidden,
			WitnessIDs:        created.WitnessIDs,
			WitnessesAssigned: created.WitnessesAssigned,
			CreatedAt:         created.CreatedAt,
			UpdatedAt:         created.UpdatedAt,
		}
		return tx.PutPost(ctx, record)
	})
	if err != nil {
		return storage.PostRecord{}, err
	}

	s.publish(ctx, Event{
		Type:        EventPostCreated,
		CampaignID:  input.CampaignID,
		SceneID:     input.SceneID,
		CharacterID: input.AuthorCharacterID,
		PostID:      record.ID,
		ActorUserID: identity.UserID,
		Hidden:      record.Hidden,
	})
	return record, nil
}

// GetPost returns a post when the caller may see it. Visibility is judged
// through the viewer character, which the caller must control.
func (s *Service) GetPost(ctx context.Context, identity Identity, campaignID, postID, characterID string) (storage.PostRecord, error) {
	if !identity.Privileged {
		characterRecord, err := getCharacter(ctx, s.store, campaignID, characterID)
		if err != nil {
			return storage.PostRecord{}, err
		}
		if err := requireController(identity, characterRecord); err != nil {
			return storage.PostRecord{}, err
		}
	}

	record, err := s.store.GetPost(ctx, campaignID, postID)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return storage.PostRecord{}, apperrors.New(apperrors.CodePostNotFound, "post not found")
		}
		return storage.PostRecord{}, err
	}
	if !postVisible(record, characterID, identity.Privileged) {
		// Invisible posts do not exist for the caller.
		return storage.PostRecord{}, apperrors.New(apperrors.CodePostNotFound, "post not found")
	}
	return record, nil
}

// ListScenePosts returns the scene's posts the caller may see, oldest first.
func (s *Service) ListScenePosts(ctx context.Context, identity Identity, campaignID, sceneID, characterID string) ([]storage.PostRecord, error) {
	if !identity.Privileged {
		characterRecord, err := getCharacter(ctx, s.store, campaignID, characterID)
		if err != nil {
			return nil, err
		}
		if err := requireController(identity, characterRecord); err != nil {
			return nil, err
		}
	}

	posts, err := s.store.ListScenePosts(ctx, sceneID)
	if err != nil {
		return nil, err
	}

	visible := posts[:0]
	for _, record := range posts {
		if postVisible(record, characterID, identity.Privileged) {
			visible = append(visible, record)
		}
	}
	return visible, nil
}

// EditPost rewrites a post's body. Authors may edit while the post is
// unlocked; the privileged actor may edit regardless.
func (s *Service) EditPost(ctx context.Context, identity Identity, campaignID, postID, body string) (storage.PostRecord, error) {
	if strings.TrimSpace(body) == "" {
		return storage.PostRecord{}, apperrors.New(apperrors.CodePostBodyEmpty, "post body is required")
	}

	var record storage.PostRecord
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		var err error
		record, err = tx.GetPost(ctx, campaignID, postID)
		if err != nil {
			if apperrors.Is(err, apperrors.CodeNotFound) {
				return apperrors.New(apperrors.CodePostNotFound, "post not found")
			}
			return err
		}

		if !identity.Privileged {
			if record.AuthorUserID != identity.UserID {
				return apperrors.New(apperrors.CodeNotController, "caller did not author this post")
			}
			if record.Locked {
				return apperrors.New(apperrors.CodePostLocked, "post is locked by a successor")
			}
		}

		record.Body = body
		record.UpdatedAt = s.now().UTC()
		return tx.PutPost(ctx, record)
	})
	if err != nil {
		return storage.PostRecord{}, err
	}
	return record, nil
}

// DeletePost removes a post. Deleting the newest post in a scene unlocks the
// one before it, restoring the editability chain.
func (s *Service) DeletePost(ctx context.Context, identity Identity, campaignID, postID string) error {
	if err := requirePrivileged(identity); err != nil {
		return err
	}

	return s.store.WithTx(ctx, func(tx storage.Store) error {
		record, err := tx.GetPost(ctx, campaignID, postID)
		if err != nil {
			if apperrors.Is(err, apperrors.CodeNotFound) {
				return apperrors.New(apperrors.CodePostNotFound, "post not found")
			}
			return err
		}

		latest, err := tx.LatestScenePost(ctx, record.SceneID)
		if err != nil {
			return err
		}
		wasLatest := latest.ID == record.ID

		if err := tx.DeletePost(ctx, campaignID, postID); err != nil {
			return err
		}
		if !wasLatest {
			return nil
		}

		predecessor, err := tx.LatestScenePost(ctx, record.SceneID)
		if err != nil {
			if apperrors.Is(err, apperrors.CodeNotFound) {
				return nil
			}
			return err
		}
		predecessor.Locked = false
		predecessor.LockedAt = nil
		predecessor.UpdatedAt = s.now().UTC()
		return tx.PutPost(ctx, predecessor)
	})
}

// RevealPost transitions a hidden post's empty witness set to the given one.
// Reveal is permanent; there is no way back to hidden.
func (s *Service) RevealPost(ctx context.Context, identity Identity, campaignID, postID string, witnessIDs []string) (storage.PostRecord, error) {
	if err := requirePrivileged(identity); err != nil {
		return storage.PostRecord{}, err
	}

	var record storage.PostRecord
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		var err error
		record, err = tx.GetPost(ctx, campaignID, postID)
		if err != nil {
			if apperrors.Is(err, apperrors.CodeNotFound) {
				return apperrors.New(apperrors.CodePostNotFound, "post not found")
			}
			return err
		}

		domainPost := post.Post{
			Hidden:            record.Hidden,
			WitnessIDs:        record.WitnessIDs,
			WitnessesAssigned: record.WitnessesAssigned,
		}
		if err := domainPost.Reveal(witnessIDs); err != nil {
			return err
		}

		record.Hidden = domainPost.Hidden
		record.WitnessIDs = domainPost.WitnessIDs
		record.UpdatedAt = s.now().UTC()
		return tx.PutPost(ctx, record)
	})
	if err != nil {
		return storage.PostRecord{}, err
	}

	s.publish(ctx, Event{
		Type:        EventPostRevealed,
		CampaignID:  campaignID,
		PostID:      record.ID,
		SceneID:     record.SceneID,
		ActorUserID: identity.UserID,
	})
	return record, nil
}

func postVisible(record storage.PostRecord, characterID string, privileged bool) bool {
	domainPost := post.Post{
		WitnessIDs:        record.WitnessIDs,
		WitnessesAssigned: record.WitnessesAssigned,
	}
	return domainPost.VisibleTo(characterID, privileged)
}

func sceneOccupantIDs(ctx context.Context, tx storage.Store, sceneID string) ([]string, error) {
	occupants, err := tx.ListSceneOccupants(ctx, sceneID)
	if err != nil {
		return nil, err
	}
	occupantIDs := make([]string, 0, len(occupants))
	for _, occupant := range occupants {
		occupantIDs = append(occupantIDs, occupant.CharacterID)
	}
	return occupantIDs, nil
}

// lockLatestPost freezes the newest post in the scene before a successor is
// written. Scene history stays editable only at its tip.
func lockLatestPost(ctx context.Context, tx storage.Store, sceneID string, now time.Time) error {
	latest, err := tx.LatestScenePost(ctx, sceneID)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return nil
		}
		return err
	}
	if latest.Locked {
		return nil
	}
	latest.Locked = true
	latest.LockedAt = &now
	latest.UpdatedAt = now
	return tx.PutPost(ctx, latest)
}

// requireHeldLock verifies the author holds a live compose lock for the
// (scene, character) pair. An expired lease is removed and treated as absent.
func (s *Service) requireHeldLock(ctx context.Context, tx storage.Store, identity Identity, sceneID, characterID string) error {
	lock, err := tx.GetLockByKey(ctx, sceneID, characterID)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return apperrors.New(apperrors.CodeLockNotFound, "posting requires a compose lock")
		}
		return err
	}

	now := s.now().UTC()
	if !now.Before(lock.ExpiresAt) {
		if err := tx.DeleteLock(ctx, lock.ID); err != nil {
			return err
		}
		return apperrors.New(apperrors.CodeLockNotFound, "compose lock has expired")
	}
	if lock.HolderUserID != identity.UserID {
		return apperrors.New(apperrors.CodeLockAlreadyHeld, "another writer holds the compose lock")
	}
	return nil
}

// releaseAuthorLock consumes the author's lease once the post lands.
func (s *Service) releaseAuthorLock(ctx context.Context, tx storage.Store, sceneID, characterID string) error {
	lock, err := tx.GetLockByKey(ctx, sceneID, characterID)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return nil
		}
		return err
	}
	return tx.DeleteLock(ctx, lock.ID)
}
