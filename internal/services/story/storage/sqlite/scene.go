package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/inkhaven/inkhaven/internal/services/story/storage"
)

// PutScene inserts or updates a scene record.
func (s *Store) PutScene(ctx context.Context, scene storage.SceneRecord) error {
	_, err := s.q.ExecContext(ctx, `
INSERT INTO scenes (id, campaign_id, name, archived, archived_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    name = excluded.name,
    archived = excluded.archived,
    archived_at = excluded.archived_at,
    updated_at = excluded.updated_at`,
		scene.ID,
		scene.CampaignID,
		scene.Name,
		scene.Archived,
		toNullMillis(scene.ArchivedAt),
		toMillis(scene.CreatedAt),
		toMillis(scene.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put scene: %w", err)
	}
	return nil
}

// GetScene fetches a scene scoped to its campaign.
func (s *Store) GetScene(ctx context.Context, campaignID, sceneID string) (storage.SceneRecord, error) {
	row := s.q.QueryRowContext(ctx, `
SELECT id, campaign_id, name, archived, archived_at, created_at, updated_at
FROM scenes WHERE campaign_id = ? AND id = ?`, campaignID, sceneID)
	return scanScene(row)
}

// ListScenes returns the campaign's scenes ordered by creation.
func (s *Store) ListScenes(ctx context.Context, campaignID string) ([]storage.SceneRecord, error) {
	rows, err := s.q.QueryContext(ctx, `
SELECT id, campaign_id, name, archived, archived_at, created_at, updated_at
FROM scenes WHERE campaign_id = ? ORDER BY created_at, id`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()

	var scenes []storage.SceneRecord
	for rows.Next() {
		record, err := scanScene(rows)
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list scenes rows: %w", err)
	}
	return scenes, nil
}

// DeleteScene removes a scene; posts, locks, and occupancy rows cascade.
func (s *Store) DeleteScene(ctx context.Context, campaignID, sceneID string) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM scenes WHERE campaign_id = ? AND id = ?`, campaignID, sceneID)
	if err != nil {
		return fmt.Errorf("delete scene: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete scene rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CountScenes counts every scene in the campaign, archived included.
func (s *Store) CountScenes(ctx context.Context, campaignID string) (int, error) {
	var count int
	row := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM scenes WHERE campaign_id = ?`, campaignID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count scenes: %w", err)
	}
	return count, nil
}

// OldestArchivedScene returns the archived scene with the earliest archival
// time, the candidate eviction removes when the campaign is at capacity.
func (s *Store) OldestArchivedScene(ctx context.Context, campaignID string) (storage.SceneRecord, error) {
	row := s.q.QueryRowContext(ctx, `
SELECT id, campaign_id, name, archived, archived_at, created_at, updated_at
FROM scenes WHERE campaign_id = ? AND archived = 1
ORDER BY archived_at, id LIMIT 1`, campaignID)
	return scanScene(row)
}

func scanScene(row rowScanner) (storage.SceneRecord, error) {
	var (
		record     storage.SceneRecord
		archivedAt sql.NullInt64
		createdAt  int64
		updatedAt  int64
	)
	err := row.Scan(
		&record.ID,
		&record.CampaignID,
		&record.Name,
		&record.Archived,
		&archivedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SceneRecord{}, storage.ErrNotFound
		}
		return storage.SceneRecord{}, fmt.Errorf("scan scene: %w", err)
	}
	record.ArchivedAt = fromNullMillis(archivedAt)
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
