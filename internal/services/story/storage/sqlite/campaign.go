package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/inkhaven/inkhaven/internal/services/story/domain/campaign"
	"github.com/inkhaven/inkhaven/internal/services/story/storage"
)

// PutCampaign inserts or updates a campaign record.
func (s *Store) PutCampaign(ctx context.Context, c storage.CampaignRecord) error {
	_, err := s.q.ExecContext(ctx, `
INSERT INTO campaigns (id, name, phase, phase_expires_at, paused, last_privileged_activity_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    name = excluded.name,
    phase = excluded.phase,
    phase_expires_at = excluded.phase_expires_at,
    paused = excluded.paused,
    last_privileged_activity_at = excluded.last_privileged_activity_at,
    updated_at = excluded.updated_at`,
		c.ID,
		c.Name,
		c.Phase.String(),
		toNullMillis(c.PhaseExpiresAt),
		c.Paused,
		toMillis(c.LastPrivilegedActivityAt),
		toMillis(c.CreatedAt),
		toMillis(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put campaign: %w", err)
	}
	return nil
}

// GetCampaign fetches a campaign by id.
func (s *Store) GetCampaign(ctx context.Context, id string) (storage.CampaignRecord, error) {
	row := s.q.QueryRowContext(ctx, `
SELECT id, name, phase, phase_expires_at, paused, last_privileged_activity_at, created_at, updated_at
FROM campaigns WHERE id = ?`, id)
	return scanCampaign(row)
}

// DeleteCampaign removes a campaign; foreign keys cascade to every dependent
// table.
func (s *Store) DeleteCampaign(ctx context.Context, id string) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM campaigns WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete campaign rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListCampaigns returns a page of campaigns ordered by id. IDs are
// time-ordered, so id order is creation order and the last id of a page is
// the next page token.
func (s *Store) ListCampaigns(ctx context.Context, pageSize int, pageToken string) (storage.CampaignPage, error) {
	if pageSize <= 0 {
		pageSize = 50
	}

	rows, err := s.q.QueryContext(ctx, `
SELECT id, name, phase, phase_expires_at, paused, last_privileged_activity_at, created_at, updated_at
FROM campaigns WHERE id > ? ORDER BY id LIMIT ?`, pageToken, pageSize+1)
	if err != nil {
		return storage.CampaignPage{}, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var page storage.CampaignPage
	for rows.Next() {
		record, err := scanCampaign(rows)
		if err != nil {
			return storage.CampaignPage{}, err
		}
		page.Campaigns = append(page.Campaigns, record)
	}
	if err := rows.Err(); err != nil {
		return storage.CampaignPage{}, fmt.Errorf("list campaigns rows: %w", err)
	}

	if len(page.Campaigns) > pageSize {
		page.Campaigns = page.Campaigns[:pageSize]
		page.NextPageToken = page.Campaigns[pageSize-1].ID
	}
	return page, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (storage.CampaignRecord, error) {
	var (
		record         storage.CampaignRecord
		phase          string
		phaseExpiresAt sql.NullInt64
		lastActivity   int64
		createdAt      int64
		updatedAt      int64
	)
	err := row.Scan(
		&record.ID,
		&record.Name,
		&phase,
		&phaseExpiresAt,
		&record.Paused,
		&lastActivity,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.CampaignRecord{}, storage.ErrNotFound
		}
		return storage.CampaignRecord{}, fmt.Errorf("scan campaign: %w", err)
	}

	parsed, ok := campaign.ParsePhase(phase)
	if !ok {
		return storage.CampaignRecord{}, fmt.Errorf("campaign %s has unknown phase %q", record.ID, phase)
	}
	record.Phase = parsed
	record.PhaseExpiresAt = fromNullMillis(phaseExpiresAt)
	record.LastPrivilegedActivityAt = fromMillis(lastActivity)
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
