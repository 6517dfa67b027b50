package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/inkhaven/inkhaven/internal/services/story/domain/character"
	"github.com/inkhaven/inkhaven/internal/services/story/storage"
)

// PutCharacter inserts or updates a character record.
func (s *Store) PutCharacter(ctx context.Context, c storage.CharacterRecord) error {
	_, err := s.q.ExecContext(ctx, `
INSERT INTO characters (id, campaign_id, name, kind, controller_user_id, archived, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    name = excluded.name,
    kind = excluded.kind,
    controller_user_id = excluded.controller_user_id,
    archived = excluded.archived,
    updated_at = excluded.updated_at`,
		c.ID,
		c.CampaignID,
		c.Name,
		c.Kind.String(),
		c.ControllerUserID,
		c.Archived,
		toMillis(c.CreatedAt),
		toMillis(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("put character: %w", err)
	}
	return nil
}

// GetCharacter fetches a character scoped to its campaign.
func (s *Store) GetCharacter(ctx context.Context, campaignID, characterID string) (storage.CharacterRecord, error) {
	row := s.q.QueryRowContext(ctx, `
SELECT id, campaign_id, name, kind, controller_user_id, archived, created_at, updated_at
FROM characters WHERE campaign_id = ? AND id = ?`, campaignID, characterID)
	return scanCharacter(row)
}

// ListCharacters returns the campaign's characters ordered by creation.
func (s *Store) ListCharacters(ctx context.Context, campaignID string) ([]storage.CharacterRecord, error) {
	rows, err := s.q.QueryContext(ctx, `
SELECT id, campaign_id, name, kind, controller_user_id, archived, created_at, updated_at
FROM characters WHERE campaign_id = ? ORDER BY created_at, id`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	defer rows.Close()

	var characters []storage.CharacterRecord
	for rows.Next() {
		record, err := scanCharacter(rows)
		if err != nil {
			return nil, err
		}
		characters = append(characters, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list characters rows: %w", err)
	}
	return characters, nil
}

func scanCharacter(row rowScanner) (storage.CharacterRecord, error) {
	var (
		record    storage.CharacterRecord
		kind      string
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(
		&record.ID,
		&record.CampaignID,
		&record.Name,
		&kind,
		&record.ControllerUserID,
		&record.Archived,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.CharacterRecord{}, storage.ErrNotFound
		}
		return storage.CharacterRecord{}, fmt.Errorf("scan character: %w", err)
	}

	parsed, ok := character.ParseKind(kind)
	if !ok {
		return storage.CharacterRecord{}, fmt.Errorf("character %s has unknown kind %q", record.ID, kind)
	}
	record.Kind = parsed
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
