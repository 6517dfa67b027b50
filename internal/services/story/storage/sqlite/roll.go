package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/inkhaven/inkhaven/internal/services/story/dice"
	"github.com/inkhaven/inkhaven/internal/services/story/domain/roll"
	"github.com/inkhaven/inkhaven/internal/services/story/storage"
)

// PutRoll inserts or updates a roll record. Dice and results are stored as
// JSON documents; queries only ever filter on status.
func (s *Store) PutRoll(ctx context.Context, r storage.RollRecord) error {
	diceJSON, err := json.Marshal(r.Dice)
	if err != nil {
		return fmt.Errorf("marshal roll dice: %w", err)
	}

	var resultJSON sql.NullString
	if r.Result != nil {
		encoded, err := json.Marshal(r.Result)
		if err != nil {
			return fmt.Errorf("marshal roll result: %w", err)
		}
		resultJSON = sql.NullString{String: string(encoded), Valid: true}
	}

	_, err = s.q.ExecContext(ctx, `
INSERT INTO rolls (id, campaign_id, scene_id, character_id, requested_by_user_id, dice, status, result, requested_at, resolved_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    status = excluded.status,
    result = excluded.result,
    resolved_at = excluded.resolved_at`,
		r.ID,
		r.CampaignID,
		r.SceneID,
		r.CharacterID,
		r.RequestedByUserID,
		string(diceJSON),
		r.Status.String(),
		resultJSON,
		toMillis(r.RequestedAt),
		toNullMillis(r.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("put roll: %w", err)
	}
	return nil
}

// GetRoll fetches a roll scoped to its campaign.
func (s *Store) GetRoll(ctx context.Context, campaignID, rollID string) (storage.RollRecord, error) {
	row := s.q.QueryRowContext(ctx, `
SELECT id, campaign_id, scene_id, character_id, requested_by_user_id, dice, status, result, requested_at, resolved_at
FROM rolls WHERE campaign_id = ? AND id = ?`, campaignID, rollID)
	return scanRoll(row)
}

// ListPendingRolls returns every unresolved roll in the campaign.
func (s *Store) ListPendingRolls(ctx context.Context, campaignID string) ([]storage.RollRecord, error) {
	rows, err := s.q.QueryContext(ctx, `
SELECT id, campaign_id, scene_id, character_id, requested_by_user_id, dice, status, result, requested_at, resolved_at
FROM rolls WHERE campaign_id = ? AND status = ? ORDER BY requested_at, id`,
		campaignID, roll.StatusPending.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list pending rolls: %w", err)
	}
	defer rows.Close()

	var rolls []storage.RollRecord
	for rows.Next() {
		record, err := scanRoll(rows)
		if err != nil {
			return nil, err
		}
		rolls = append(rolls, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pending rolls rows: %w", err)
	}
	return rolls, nil
}

// HasPendingRoll reports whether the character has an unresolved roll.
func (s *Store) HasPendingRoll(ctx context.Context, campaignID, characterID string) (bool, error) {
	var found int
	row := s.q.QueryRowContext(ctx,
		`SELECT 1 FROM rolls WHERE campaign_id = ? AND character_id = ? AND status = ? LIMIT 1`,
		campaignID, characterID, roll.StatusPending.String(),
	)
	err := row.Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check pending roll: %w", err)
	}
	return true, nil
}

func scanRoll(row rowScanner) (storage.RollRecord, error) {
	var (
		record      storage.RollRecord
		diceJSON    string
		status      string
		resultJSON  sql.NullString
		requestedAt int64
		resolvedAt  sql.NullInt64
	)
	err := row.Scan(
		&record.ID,
		&record.CampaignID,
		&record.SceneID,
		&record.CharacterID,
		&record.RequestedByUserID,
		&diceJSON,
		&status,
		&resultJSON,
		&requestedAt,
		&resolvedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.RollRecord{}, storage.ErrNotFound
		}
		return storage.RollRecord{}, fmt.Errorf("scan roll: %w", err)
	}

	if err := json.Unmarshal([]byte(diceJSON), &record.Dice); err != nil {
		return storage.RollRecord{}, fmt.Errorf("unmarshal roll dice: %w", err)
	}
	if resultJSON.Valid {
		var result dice.RollResult
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return storage.RollRecord{}, fmt.Errorf("unmarshal roll result: %w", err)
		}
		record.Result = &result
	}

	parsed, ok := roll.ParseStatus(status)
	if !ok {
		return storage.RollRecord{}, fmt.Errorf("roll %s has unknown status %q", record.ID, status)
	}
	record.Status = parsed
	record.RequestedAt = fromMillis(requestedAt)
	record.ResolvedAt = fromNullMillis(resolvedAt)
	return record, nil
}
