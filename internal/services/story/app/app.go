// Package app implements the story service use cases on top of the storage
// interfaces.
//
// Every guarded mutation runs inside a store transaction: guards are read and
// effects applied against one consistent snapshot, so the store stays the
// single arbiter for concurrent actors. Timers are evaluated lazily against
// the clock on the operations that touch them; nothing sweeps in the
// background.
package app

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/inkhaven/inkhaven/internal/platform/errors"
	"github.com/inkhaven/inkhaven/internal/platform/id"
	"github.com/inkhaven/inkhaven/internal/services/story/domain/campaign"
	"github.com/inkhaven/inkhaven/internal/services/story/domain/composelock"
	"github.com/inkhaven/inkhaven/internal/services/story/storage"
)

// DefaultWriteWindow is the Write-phase duration when none is configured.
const DefaultWriteWindow = 72 * time.Hour

// Identity describes the authenticated caller for one campaign.
//
// Privileged is resolved per campaign by the transport layer before the call
// reaches the app; the app never inspects credentials.
type Identity struct {
	UserID     string
	Privileged bool
}

// Service implements the story use cases.
type Service struct {
	store    storage.Store
	notifier Notifier
	logger   zerolog.Logger

	writeWindow time.Duration
	lockTTL     time.Duration

	now   func() time.Time
	newID func() (string, error)
	seed  func() int64
}

// Options configures a Service. Zero values fall back to production defaults.
type Options struct {
	Notifier    Notifier
	Logger      zerolog.Logger
	WriteWindow time.Duration
	LockTTL     time.Duration

	// Now, NewID, and Seed are injectable for tests.
	Now   func() time.Time
	NewID func() (string, error)
	Seed  func() int64
}

// New builds a Service around the given store.
func New(store storage.Store, opts Options) *Service {
	s := &Service{
		store:       store,
		notifier:    opts.Notifier,
		logger:      opts.Logger,
		writeWindow: opts.WriteWindow,
		lockTTL:     opts.LockTTL,
		now:         opts.Now,
		newID:       opts.NewID,
		seed:        opts.Seed,
	}
	if s.notifier == nil {
		s.notifier = NopNotifier{}
	}
	if s.writeWindow <= 0 {
		s.writeWindow = DefaultWriteWindow
	}
	if s.lockTTL <= 0 {
		s.lockTTL = composelock.DefaultTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = id.NewID
	}
	if s.seed == nil {
		s.seed = func() int64 { return rand.Int63() }
	}
	return s
}

func (s *Service) publish(ctx context.Context, event Event) {
	event.At = s.now().UTC()
	s.notifier.Publish(ctx, event)
}

// getCampaign loads a campaign through tx, mapping a missing row to the
// campaign-specific not-found code.
func getCampaign(ctx context.Context, tx storage.Store, campaignID string) (storage.CampaignRecord, error) {
	record, err := tx.GetCampaign(ctx, campaignID)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return storage.CampaignRecord{}, apperrors.New(apperrors.CodeCampaignNotFound, "campaign not found")
		}
		return storage.CampaignRecord{}, err
	}
	return record, nil
}

func getScene(ctx context.Context, tx storage.Store, campaignID, sceneID string) (storage.SceneRecord, error) {
	record, err := tx.GetScene(ctx, campaignID, sceneID)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return storage.SceneRecord{}, apperrors.New(apperrors.CodeSceneNotFound, "scene not found")
		}
		return storage.SceneRecord{}, err
	}
	return record, nil
}

func getCharacter(ctx context.Context, tx storage.Store, campaignID, characterID string) (storage.CharacterRecord, error) {
	record, err := tx.GetCharacter(ctx, campaignID, characterID)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return storage.CharacterRecord{}, apperrors.New(apperrors.CodeCharacterNotFound, "character not found")
		}
		return storage.CharacterRecord{}, err
	}
	return record, nil
}

func requirePrivileged(identity Identity) error {
	if !identity.Privileged {
		return apperrors.New(apperrors.CodeNotPrivileged, "operation requires the privileged actor")
	}
	return nil
}

// requireController passes for the character's controller or the privileged
// actor. Orphaned characters are controllable by no one but the privileged
// actor.
func requireController(identity Identity, record storage.CharacterRecord) error {
	if identity.Privileged {
		return nil
	}
	if record.ControllerUserID == "" {
		return apperrors.New(apperrors.CodeCharacterOrphaned, "character has no controller")
	}
	if record.ControllerUserID != identity.UserID {
		return apperrors.New(apperrors.CodeNotController, "caller does not control this character")
	}
	return nil
}

// syncWriteWindow applies the lazy write-window expiry: once the Write-phase
// timer elapses, every occupant below HardPassed is upgraded so a late post
// cannot undo the auto-pass. Returns whether the window is expired.
func (s *Service) syncWriteWindow(ctx context.Context, tx storage.Store, c storage.CampaignRecord) (bool, error) {
	now := s.now().UTC()
	if c.Phase != campaign.PhaseWrite || c.PhaseExpiresAt == nil || now.Before(*c.PhaseExpiresAt) {
		return false, nil
	}
	if err := tx.UpgradePassStates(ctx, c.ID, now); err != nil {
		return false, err
	}
	return true, nil
}

// liveLocks returns the campaign's live locks at the current instant and
// deletes the expired rows it walks past.
func (s *Service) liveLocks(ctx context.Context, tx storage.Store, campaignID string) ([]storage.LockRecord, error) {
	locks, err := tx.ListCampaignLocks(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	live := locks[:0]
	for _, lock := range locks {
		if now.Before(lock.ExpiresAt) {
			live = append(live, lock)
			continue
		}
		if err := tx.DeleteLock(ctx, lock.ID); err != nil {
			return nil, err
		}
	}
	return live, nil
}
