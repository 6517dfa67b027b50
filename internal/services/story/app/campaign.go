package app

import (
	"context"

	apperrors "github.com/inkhaven/inkhaven/internal/platform/errors"
	"github.com/inkhaven/inkhaven/internal/services/story/domain/campaign"
	"github.com/inkhaven/inkhaven/internal/services/story/storage"
)

// CreateCampaign creates a campaign. The creator becomes its privileged
// actor; the transport layer encodes that in subsequent identities.
func (s *Service) CreateCampaign(ctx context.Context, identity Identity, name string) (storage.CampaignRecord, error) {
	created, err := campaign.Create(campaign.CreateInput{Name: name}, s.now, s.newID)
	if err != nil {
		return storage.CampaignRecord{}, err
	}

	record := storage.CampaignRecord{
		ID:                       created.ID,
		Name:                     created.Name,
		Phase:                    created.Phase,
		LastPrivilegedActivityAt: created.LastPrivilegedActivityAt,
		CreatedAt:                created.CreatedAt,
		UpdatedAt:                created.UpdatedAt,
	}
	if err := s.store.PutCampaign(ctx, record); err != nil {
		return storage.CampaignRecord{}, err
	}

	s.logger.Info().Str("campaign_id", record.ID).Str("user_id", identity.UserID).Msg("campaign created")
	return record, nil
}

// GetCampaign returns campaign metadata.
func (s *Service) GetCampaign(ctx context.Context, identity Identity, campaignID string) (storage.CampaignRecord, error) {
	return getCampaign(ctx, s.store, campaignID)
}

// ListCampaigns returns a page of campaigns.
func (s *Service) ListCampaigns(ctx context.Context, pageSize int, pageToken string) (storage.CampaignPage, error) {
	return s.store.ListCampaigns(ctx, pageSize, pageToken)
}

// PauseCampaign suspends phase advancement. Pausing blocks Resolve -> Write
// until the privileged actor unpauses.
func (s *Service) PauseCampaign(ctx context.Context, identity Identity, campaignID string) (storage.CampaignRecord, error) {
	return s.setPaused(ctx, identity, campaignID, true)
}

// UnpauseCampaign resumes phase advancement.
func (s *Service) UnpauseCampaign(ctx context.Context, identity Identity, campaignID string) (storage.CampaignRecord, error) {
	return s.setPaused(ctx, identity, campaignID, false)
}

func (s *Service) setPaused(ctx context.Context, identity Identity, campaignID string, paused bool) (storage.CampaignRecord, error) {
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

		now := s.now().UTC()
		record.Paused = paused
		record.LastPrivilegedActivityAt = now
		record.UpdatedAt = now
		return tx.PutCampaign(ctx, record)
	})
	if err != nil {
		return storage.CampaignRecord{}, err
	}

	eventType := EventCampaignUnpaused
	if paused {
		eventType = EventCampaignPaused
	}
	s.publish(ctx, Event{
		Type:        eventType,
		CampaignID:  campaignID,
		ActorUserID: identity.UserID,
	})
	return record, nil
}

// DeleteCampaign removes the campaign and everything under it.
func (s *Service) DeleteCampaign(ctx context.Context, identity Identity, campaignID string) error {
	if err := requirePrivileged(identity); err != nil {
		return err
	}

	err := s.store.DeleteCampaign(ctx, campaignID)
	if err != nil {
		if apperrors.Is(err, apperrors.CodeNotFound) {
			return apperrors.New(apperrors.CodeCampaignNotFound, "campaign not found")
		}
		return err
	}

	s.logger.Info().Str("campaign_id", campaignID).Str("user_id", identity.UserID).Msg("campaign deleted")
	return nil
}

// Statistics returns aggregate record counts.
func (s *Service) Statistics(ctx context.Context) (storage.Statistics, error) {
	return s.store.GetStatistics(ctx)
}
