package app

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/inkhaven/inkhaven/internal/services/story/domain/campaign"
	"github.com/inkhaven/inkhaven/internal/services/story/domain/pass"
	"github.com/inkhaven/inkhaven/internal/services/story/domain/post"
	"github.com/inkhaven/inkhaven/internal/services/story/storage"
)

var tracer = otel.Tracer("inkhaven/story")

// BeginResolve advances Write -> Resolve. The transition is refused while
// live compose locks exist, rolls are pending, or a non-orphaned occupant has
// not passed; each refusal is a structured error naming the blocker.
func (s *Service) BeginResolve(ctx context.Context, identity Identity, campaignID string) (storage.CampaignRecord, error) {
	return s.resolve(ctx, identity, campaignID, campaign.EventBeginResolve)
}

// ForceResolve advances Write -> Resolve unconditionally. Privileged recovery
// for a stuck table.
func (s *Service) ForceResolve(ctx context.Context, identity Identity, campaignID string) (storage.CampaignRecord, error) {
	return s.resolve(ctx, identity, campaignID, campaign.EventForceResolve)
}

func (s *Service) resolve(ctx context.Context, identity Identity, campaignID string, event campaign.TransitionEvent) (storage.CampaignRecord, error) {
	ctx, span := tracer.Start(ctx, "story.phase.resolve",
		trace.WithAttributes(attribute.String("campaign.id", campaignID)))
	defer span.End()

	if err := requirePrivileged(identity); err != nil {
		return storage.CampaignRecord{}, err
	}

	var record storage.CampaignRecord
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		var err error
		record, err = getCampaign(ctx, tx, campaignID)
		if err != nil {
			return err
		}

		guards, err := s.gatherResolveGuards(ctx, tx, record)
		if err != nil {
			return err
		}

		next, _, err := campaign.Transition(record.Phase, event, guards)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		record.Phase = next
		record.PhaseExpiresAt = nil
		record.LastPrivilegedActivityAt = now
		record.UpdatedAt = now
		return tx.PutCampaign(ctx, record)
	})
	if err != nil {
		return storage.CampaignRecord{}, err
	}

	s.publish(ctx, Event{
		Type:        EventPhaseChanged,
		CampaignID:  campaignID,
		Phase:       record.Phase.String(),
		ActorUserID: identity.UserID,
	})
	return record, nil
}

// BeginWrite advances Resolve -> Write. The witness transaction, the pass
// reset, and the new write window land in the same store transaction as the
// phase flip; a failure anywhere rolls everything back.
func (s *Service) BeginWrite(ctx context.Context, identity Identity, campaignID string) (storage.CampaignRecord, error) {
	ctx, span := tracer.Start(ctx, "story.phase.begin_write",
		trace.WithAttributes(attribute.String("campaign.id", campaignID)))
	defer span.End()

	if err := requirePrivileged(identity); err != nil {
		return storage.CampaignRecord{}, err
	}

	var record storage.CampaignRecord
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		var err error
		record, err = getCampaign(ctx, tx, campaignID)
		if err != nil {
			return err
		}

		next, effects, err := campaign.Transition(record.Phase, campaign.EventBeginWrite, campaign.Guards{
			Paused: record.Paused,
		})
		if err != nil {
			return err
		}

		now := s.now().UTC()
		if effects.RunWitnessTransaction {
			if err := s.runWitnessTransaction(ctx, tx, campaignID, now); err != nil {
				return err
			}
		}
		if effects.ResetPassStates {
			if err := tx.ResetPassStates(ctx, campaignID, now); err != nil {
				return err
			}
		}

		record.Phase = next
		record.PhaseExpiresAt = nil
		if effects.SetWriteWindow {
			expiresAt := now.Add(s.writeWindow)
			record.PhaseExpiresAt = &expiresAt
		}
		record.LastPrivilegedActivityAt = now
		record.UpdatedAt = now
		return tx.PutCampaign(ctx, record)
	})
	if err != nil {
		return storage.CampaignRecord{}, err
	}

	s.publish(ctx, Event{
		Type:        EventPhaseChanged,
		CampaignID:  campaignID,
		Phase:       record.Phase.String(),
		ActorUserID: identity.UserID,
	})
	return record, nil
}

// runWitnessTransaction freezes the witness set of every post whose
// assignment was deferred during the ended Resolve phase, using each scene's
// occupants at this instant. All posts commit or none do.
func (s *Service) runWitnessTransaction(ctx context.Context, tx storage.Store, campaignID string, now time.Time) error {
	ctx, span := tracer.Start(ctx, "story.witness.transaction",
		trace.WithAttributes(attribute.String("campaign.id", campaignID)))
	defer span.End()

	pending, err := tx.ListPendingWitnessPosts(ctx, campaignID)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("posts.pending", len(pending)))

	occupantsByScene := make(map[string][]string)
	for _, record := range pending {
		occupantIDs, ok := occupantsByScene[record.SceneID]
		if !ok {
			occupantIDs, err = sceneOccupantIDs(ctx, tx, record.SceneID)
			if err != nil {
				return err
			}
			occupantsByScene[record.SceneID] = occupantIDs
		}

		record.WitnessIDs = post.ComputeDefaultWitnesses(occupantIDs)
		record.WitnessesAssigned = true
		record.UpdatedAt = now
		if err := tx.PutPost(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

// gatherResolveGuards collects the campaign-wide facts the Write -> Resolve
// guards judge, inside the transaction that will apply the transition.
func (s *Service) gatherResolveGuards(ctx context.Context, tx storage.Store, record storage.CampaignRecord) (campaign.Guards, error) {
	expired, err := s.syncWriteWindow(ctx, tx, record)
	if err != nil {
		return campaign.Guards{}, err
	}

	live, err := s.liveLocks(ctx, tx, record.ID)
	if err != nil {
		return campaign.Guards{}, err
	}

	pendingRolls, err := tx.ListPendingRolls(ctx, record.ID)
	if err != nil {
		return campaign.Guards{}, err
	}

	unready, err := unreadyCharacterIDs(ctx, tx, record.ID)
	if err != nil {
		return campaign.Guards{}, err
	}

	return campaign.Guards{
		Paused:              record.Paused,
		ActiveLockCount:     len(live),
		PendingRollCount:    len(pendingRolls),
		UnreadyCharacterIDs: unready,
		WindowExpired:       expired,
	}, nil
}

// unreadyCharacterIDs lists occupants still at pass state None, skipping
// orphaned and archived characters; nobody waits on a character no one can
// play.
func unreadyCharacterIDs(ctx context.Context, tx storage.Store, campaignID string) ([]string, error) {
	occupants, err := tx.ListCampaignOccupants(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	characters, err := tx.ListCharacters(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool, len(characters))
	for _, c := range characters {
		excluded[c.ID] = c.ControllerUserID == "" || c.Archived
	}

	var unready []string
	for _, occupant := range occupants {
		if occupant.PassState != pass.StateNone {
			continue
		}
		if excluded[occupant.CharacterID] {
			continue
		}
		unready = append(unready, occupant.CharacterID)
	}
	return unready, nil
}
