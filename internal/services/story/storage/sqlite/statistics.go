package sqlite

import (
	"context"
	"fmt"

	"github.com/inkhaven/inkhaven/internal/services/story/storage"
)

// GetStatistics returns aggregate row counts across the store.
func (s *Store) GetStatistics(ctx context.Context) (storage.Statistics, error) {
	var stats storage.Statistics
	counts := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM campaigns", &stats.CampaignCount},
		{"SELECT COUNT(*) FROM scenes", &stats.SceneCount},
		{"SELECT COUNT(*) FROM characters", &stats.CharacterCount},
		{"SELECT COUNT(*) FROM posts", &stats.PostCount},
		{"SELECT COUNT(*) FROM compose_locks", &stats.LockCount},
	}
	for _, c := range counts {
		row := s.q.QueryRowContext(ctx, c.query)
		if err := row.Scan(c.dest); err != nil {
			return storage.Statistics{}, fmt.Errorf("count statistics: %w", err)
		}
	}
	return stats, nil
}
