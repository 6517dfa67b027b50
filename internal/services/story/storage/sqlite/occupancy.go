package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/inkhaven/inkhaven/internal/services/story/domain/pass"
	"github.com/inkhaven/inkhaven/internal/services/story/storage"
)

// AddOccupant inserts an occupancy row. The row carries the pass state, so
// joining a scene always starts the character at None.
func (s *Store) AddOccupant(ctx context.Context, o storage.OccupantRecord) error {
	_, err := s.q.ExecContext(ctx, `
INSERT INTO scene_occupants (campaign_id, scene_id, character_id, pass_state, joined_at, pass_updated_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		o.CampaignID,
		o.SceneID,
		o.CharacterID,
		pass.StateNone.String(),
		toMillis(o.JoinedAt),
		toMillis(o.JoinedAt),
	)
	if err != nil {
		return fmt.Errorf("add occupant: %w", err)
	}
	return nil
}

// RemoveOccupant deletes an occupancy row, discarding its pass state with it.
func (s *Store) RemoveOccupant(ctx context.Context, sceneID, characterID string) error {
	result, err := s.q.ExecContext(ctx,
		`DELETE FROM scene_occupants WHERE scene_id = ? AND character_id = ?`,
		sceneID, characterID,
	)
	if err != nil {
		return fmt.Errorf("remove occupant: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove occupant rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetOccupant fetches one occupancy row.
func (s *Store) GetOccupant(ctx context.Context, sceneID, characterID string) (storage.OccupantRecord, error) {
	row := s.q.QueryRowContext(ctx, `
SELECT campaign_id, scene_id, character_id, pass_state, joined_at, pass_updated_at
FROM scene_occupants WHERE scene_id = ? AND character_id = ?`, sceneID, characterID)
	return scanOccupant(row)
}

// GetOccupantByCharacter finds the character's occupancy anywhere in the
// campaign. The schema allows at most one row per character.
func (s *Store) GetOccupantByCharacter(ctx context.Context, campaignID, characterID string) (storage.OccupantRecord, error) {
	row := s.q.QueryRowContext(ctx, `
SELECT campaign_id, scene_id, character_id, pass_state, joined_at, pass_updated_at
FROM scene_occupants WHERE campaign_id = ? AND character_id = ?`, campaignID, characterID)
	return scanOccupant(row)
}

// ListSceneOccupants returns the scene's occupants ordered by join time.
func (s *Store) ListSceneOccupants(ctx context.Context, sceneID string) ([]storage.OccupantRecord, error) {
	return s.listOccupants(ctx, `
SELECT campaign_id, scene_id, character_id, pass_state, joined_at, pass_updated_at
FROM scene_occupants WHERE scene_id = ? ORDER BY joined_at, character_id`, sceneID)
}

// ListCampaignOccupants returns every occupancy row in the campaign.
func (s *Store) ListCampaignOccupants(ctx context.Context, campaignID string) ([]storage.OccupantRecord, error) {
	return s.listOccupants(ctx, `
SELECT campaign_id, scene_id, character_id, pass_state, joined_at, pass_updated_at
FROM scene_occupants WHERE campaign_id = ? ORDER BY scene_id, joined_at, character_id`, campaignID)
}

// SetPassState writes a character's pass state in place.
func (s *Store) SetPassState(ctx context.Context, sceneID, characterID string, state pass.State, updatedAt time.Time) error {
	result, err := s.q.ExecContext(ctx, `
UPDATE scene_occupants SET pass_state = ?, pass_updated_at = ?
WHERE scene_id = ? AND character_id = ?`,
		state.String(), toMillis(updatedAt), sceneID, characterID,
	)
	if err != nil {
		return fmt.Errorf("set pass state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set pass state rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ClearPassedExcept reverts Passed to None for every occupant of the scene
// other than the author. HardPassed rows survive new activity.
func (s *Store) ClearPassedExcept(ctx context.Context, sceneID, exceptCharacterID string, updatedAt time.Time) error {
	_, err := s.q.ExecContext(ctx, `
UPDATE scene_occupants SET pass_state = ?, pass_updated_at = ?
WHERE scene_id = ? AND character_id != ? AND pass_state = ?`,
		pass.StateNone.String(), toMillis(updatedAt), sceneID, exceptCharacterID, pass.StatePassed.String(),
	)
	if err != nil {
		return fmt.Errorf("clear passed states: %w", err)
	}
	return nil
}

// ResetPassStates clears every pass state in the campaign to None.
func (s *Store) ResetPassStates(ctx context.Context, campaignID string, updatedAt time.Time) error {
	_, err := s.q.ExecContext(ctx, `
UPDATE scene_occupants SET pass_state = ?, pass_updated_at = ?
WHERE campaign_id = ? AND pass_state != ?`,
		pass.StateNone.String(), toMillis(updatedAt), campaignID, pass.StateNone.String(),
	)
	if err != nil {
		return fmt.Errorf("reset pass states: %w", err)
	}
	return nil
}

// UpgradePassStates raises every pass state in the campaign to HardPassed.
func (s *Store) UpgradePassStates(ctx context.Context, campaignID string, updatedAt time.Time) error {
	_, err := s.q.ExecContext(ctx, `
UPDATE scene_occupants SET pass_state = ?, pass_updated_at = ?
WHERE campaign_id = ? AND pass_state != ?`,
		pass.StateHardPassed.String(), toMillis(updatedAt), campaignID, pass.StateHardPassed.String(),
	)
	if err != nil {
		return fmt.Errorf("upgrade pass states: %w", err)
	}
	return nil
}

func (s *Store) listOccupants(ctx context.Context, query string, args ...any) ([]storage.OccupantRecord, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list occupants: %w", err)
	}
	defer rows.Close()

	var occupants []storage.OccupantRecord
	for rows.Next() {
		record, err := scanOccupant(rows)
		if err != nil {
			return nil, err
		}
		occupants = append(occupants, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list occupants rows: %w", err)
	}
	return occupants, nil
}

func scanOccupant(row rowScanner) (storage.OccupantRecord, error) {
	var (
		record        storage.OccupantRecord
		passState     string
		joinedAt      int64
		passUpdatedAt int64
	)
	err := row.Scan(
		&record.CampaignID,
		&record.SceneID,
		&record.CharacterID,
		&passState,
		&joinedAt,
		&passUpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.OccupantRecord{}, storage.ErrNotFound
		}
		return storage.OccupantRecord{}, fmt.Errorf("scan occupant: %w", err)
	}

	parsed, ok := pass.Parse(passState)
	if !ok {
		return storage.OccupantRecord{}, fmt.Errorf("occupant %s has unknown pass state %q", record.CharacterID, passState)
	}
	record.PassState = parsed
	record.JoinedAt = fromMillis(joinedAt)
	record.PassUpdatedAt = fromMillis(passUpdatedAt)
	return record, nil
}
