package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/inkhaven/inkhaven/internal/services/story/storage"
)

// PutLock inserts or replaces the lock for its (scene, character) key. The
// caller decides liveness inside a transaction before overwriting.
func (s *Store) PutLock(ctx context.Context, l storage.LockRecord) error {
	_, err := s.q.ExecContext(ctx, `
INSERT INTO compose_locks (id, campaign_id, scene_id, character_id, holder_user_id, hidden, acquired_at, expires_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (scene_id, character_id) DO UPDATE SET
    id = excluded.id,
    holder_user_id = excluded.holder_user_id,
    hidden = excluded.hidden,
    acquired_at = excluded.acquired_at,
    expires_at = excluded.expires_at`,
		l.ID,
		l.CampaignID,
		l.SceneID,
		l.CharacterID,
		l.HolderUserID,
		l.Hidden,
		toMillis(l.AcquiredAt),
		toMillis(l.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("put lock: %w", err)
	}
	return nil
}

// GetLock fetches a lock by id.
func (s *Store) GetLock(ctx context.Context, lockID string) (storage.LockRecord, error) {
	row := s.q.QueryRowContext(ctx, `
SELECT id, campaign_id, scene_id, character_id, holder_user_id, hidden, acquired_at, expires_at
FROM compose_locks WHERE id = ?`, lockID)
	return scanLock(row)
}

// GetLockByKey fetches the lock for a (scene, character) pair.
func (s *Store) GetLockByKey(ctx context.Context, sceneID, characterID string) (storage.LockRecord, error) {
	row := s.q.QueryRowContext(ctx, `
SELECT id, campaign_id, scene_id, character_id, holder_user_id, hidden, acquired_at, expires_at
FROM compose_locks WHERE scene_id = ? AND character_id = ?`, sceneID, characterID)
	return scanLock(row)
}

// DeleteLock removes a lock. Deleting an absent lock is a no-op so release
// stays idempotent.
func (s *Store) DeleteLock(ctx context.Context, lockID string) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM compose_locks WHERE id = ?`, lockID); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	return nil
}

// ListCampaignLocks returns every lock row in the campaign, expired rows
// included. Liveness is the caller's judgement against the clock.
func (s *Store) ListCampaignLocks(ctx context.Context, campaignID string) ([]storage.LockRecord, error) {
	rows, err := s.q.QueryContext(ctx, `
SELECT id, campaign_id, scene_id, character_id, holder_user_id, hidden, acquired_at, expires_at
FROM compose_locks WHERE campaign_id = ? ORDER BY acquired_at, id`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list locks: %w", err)
	}
	defer rows.Close()

	var locks []storage.LockRecord
	for rows.Next() {
		record, err := scanLock(rows)
		if err != nil {
			return nil, err
		}
		locks = append(locks, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list locks rows: %w", err)
	}
	return locks, nil
}

func scanLock(row rowScanner) (storage.LockRecord, error) {
	var (
		record     storage.LockRecord
		acquiredAt int64
		expiresAt  int64
	)
	err := row.Scan(
		&record.ID,
		&record.CampaignID,
		&record.SceneID,
		&record.CharacterID,
		&record.HolderUserID,
		&record.Hidden,
		&acquiredAt,
		&expiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.LockRecord{}, storage.ErrNotFound
		}
		return storage.LockRecord{}, fmt.Errorf("scan lock: %w", err)
	}
	record.AcquiredAt = fromMillis(acquiredAt)
	record.ExpiresAt = fromMillis(expiresAt)
	return record, nil
}
