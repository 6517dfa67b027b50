package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/inkhaven/inkhaven/internal/services/story/storage"
)

// PutPost inserts or updates a post and replaces its witness rows. The two
// writes run in one transaction so a post can never be observed with a
// half-written witness set.
func (s *Store) PutPost(ctx context.Context, p storage.PostRecord) error {
	return s.WithTx(ctx, func(txStore storage.Store) error {
		ts := txStore.(*Store)

		_, err := ts.q.ExecContext(ctx, `
INSERT INTO posts (id, campaign_id, scene_id, author_character_id, author_user_id, body, hidden, witnesses_assigned, locked, locked_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    body = excluded.body,
    hidden = excluded.hidden,
    witnesses_assigned = excluded.witnesses_assigned,
    locked = excluded.locked,
    locked_at = excluded.locked_at,
    updated_at = excluded.updated_at`,
			p.ID,
			p.CampaignID,
			p.SceneID,
			p.AuthorCharacterID,
			p.AuthorUserID,
			p.Body,
			p.Hidden,
			p.WitnessesAssigned,
			p.Locked,
			toNullMillis(p.LockedAt),
			toMillis(p.CreatedAt),
			toMillis(p.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("put post: %w", err)
		}

		if _, err := ts.q.ExecContext(ctx, `DELETE FROM post_witnesses WHERE post_id = ?`, p.ID); err != nil {
			return fmt.Errorf("clear post witnesses: %w", err)
		}
		for _, characterID := range p.WitnessIDs {
			if _, err := ts.q.ExecContext(ctx,
				`INSERT INTO post_witnesses (post_id, character_id) VALUES (?, ?)`,
				p.ID, characterID,
			); err != nil {
				return fmt.Errorf("put post witness: %w", err)
			}
		}
		return nil
	})
}

// GetPost fetches a post and its witness set.
func (s *Store) GetPost(ctx context.Context, campaignID, postID string) (storage.PostRecord, error) {
	row := s.q.QueryRowContext(ctx, `
SELECT id, campaign_id, scene_id, author_character_id, author_user_id, body, hidden, witnesses_assigned, locked, locked_at, created_at, updated_at
FROM posts WHERE campaign_id = ? AND id = ?`, campaignID, postID)
	record, err := scanPost(row)
	if err != nil {
		return storage.PostRecord{}, err
	}

	witnesses, err := s.loadWitnesses(ctx, []string{record.ID})
	if err != nil {
		return storage.PostRecord{}, err
	}
	record.WitnessIDs = witnesses[record.ID]
	return record, nil
}

// ListScenePosts returns the scene's posts ordered by creation ascending.
func (s *Store) ListScenePosts(ctx context.Context, sceneID string) ([]storage.PostRecord, error) {
	return s.listPosts(ctx, `
SELECT id, campaign_id, scene_id, author_character_id, author_user_id, body, hidden, witnesses_assigned, locked, locked_at, created_at, updated_at
FROM posts WHERE scene_id = ? ORDER BY created_at, id`, sceneID)
}

// LatestScenePost returns the newest post in the scene.
func (s *Store) LatestScenePost(ctx context.Context, sceneID string) (storage.PostRecord, error) {
	row := s.q.QueryRowContext(ctx, `
SELECT id, campaign_id, scene_id, author_character_id, author_user_id, body, hidden, witnesses_assigned, locked, locked_at, created_at, updated_at
FROM posts WHERE scene_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, sceneID)
	record, err := scanPost(row)
	if err != nil {
		return storage.PostRecord{}, err
	}

	witnesses, err := s.loadWitnesses(ctx, []string{record.ID})
	if err != nil {
		return storage.PostRecord{}, err
	}
	record.WitnessIDs = witnesses[record.ID]
	return record, nil
}

// DeletePost removes a post; witness rows cascade.
func (s *Store) DeletePost(ctx context.Context, campaignID, postID string) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM posts WHERE campaign_id = ? AND id = ?`, campaignID, postID)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete post rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListPendingWitnessPosts returns posts whose witness assignment was deferred
// to the next phase boundary, ordered by creation.
func (s *Store) ListPendingWitnessPosts(ctx context.Context, campaignID string) ([]storage.PostRecord, error) {
	return s.listPosts(ctx, `
SELECT id, campaign_id, scene_id, author_character_id, author_user_id, body, hidden, witnesses_assigned, locked, locked_at, created_at, updated_at
FROM posts WHERE campaign_id = ? AND witnesses_assigned = 0 ORDER BY created_at, id`, campaignID)
}

// WitnessedSceneIDs returns the scenes in which the character witnesses at
// least one post.
func (s *Store) WitnessedSceneIDs(ctx context.Context, campaignID, characterID string) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `
SELECT DISTINCT p.scene_id
FROM posts p
JOIN post_witnesses w ON w.post_id = p.id
WHERE p.campaign_id = ? AND w.character_id = ?
ORDER BY p.scene_id`, campaignID, characterID)
	if err != nil {
		return nil, fmt.Errorf("list witnessed scenes: %w", err)
	}
	defer rows.Close()

	var sceneIDs []string
	for rows.Next() {
		var sceneID string
		if err := rows.Scan(&sceneID); err != nil {
			return nil, fmt.Errorf("scan witnessed scene: %w", err)
		}
		sceneIDs = append(sceneIDs, sceneID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list witnessed scenes rows: %w", err)
	}
	return sceneIDs, nil
}

func (s *Store) listPosts(ctx context.Context, query string, args ...any) ([]storage.PostRecord, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []storage.PostRecord
	var postIDs []string
	for rows.Next() {
		record, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, record)
		postIDs = append(postIDs, record.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list posts rows: %w", err)
	}

	witnesses, err := s.loadWitnesses(ctx, postIDs)
	if err != nil {
		return nil, err
	}
	for i := range posts {
		posts[i].WitnessIDs = witnesses[posts[i].ID]
	}
	return posts, nil
}

func (s *Store) loadWitnesses(ctx context.Context, postIDs []string) (map[string][]string, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(postIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(postIDs))
	for i, id := range postIDs {
		args[i] = id
	}

	rows, err := s.q.QueryContext(ctx, `
SELECT post_id, character_id FROM post_witnesses
WHERE post_id IN (`+placeholders+`) ORDER BY post_id, character_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("load post witnesses: %w", err)
	}
	defer rows.Close()

	witnesses := make(map[string][]string)
	for rows.Next() {
		var postID, characterID string
		if err := rows.Scan(&postID, &characterID); err != nil {
			return nil, fmt.Errorf("scan post witness: %w", err)
		}
		witnesses[postID] = append(witnesses[postID], characterID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load post witnesses rows: %w", err)
	}
	return witnesses, nil
}

func scanPost(row rowScanner) (storage.PostRecord, error) {
	var (
		record    storage.PostRecord
		lockedAt  sql.NullInt64
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(
		&record.ID,
		&record.CampaignID,
		&record.SceneID,
		&record.AuthorCharacterID,
		&record.AuthorUserID,
		&record.Body,
		&record.Hidden,
		&record.WitnessesAssigned,
		&record.Locked,
		&lockedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.PostRecord{}, storage.ErrNotFound
		}
		return storage.PostRecord{}, fmt.Errorf("scan post: %w", err)
	}
	record.LockedAt = fromNullMillis(lockedAt)
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
