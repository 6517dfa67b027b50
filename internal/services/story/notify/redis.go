package notify

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/inkhaven/inkhaven/internal/services/story/app"
)

// RedisPublisher mirrors events onto a Redis channel per campaign so other
// processes (bots, digests, future replicas) can follow along.
type RedisPublisher struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisPublisher builds a publisher from a Redis URL.
func NewRedisPublisher(url string, logger zerolog.Logger) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisPublisher{client: redis.NewClient(opts), logger: logger}, nil
}

// Channel returns the pub/sub channel for a campaign.
func Channel(campaignID string) string {
	return "inkhaven:campaign:" + campaignID
}

// Publish implements app.Notifier. Failures are logged and swallowed; the
// triggering operation already committed.
func (p *RedisPublisher) Publish(ctx context.Context, event app.Event) {
	payload, err := json.Marshal(event.Masked())
	if err != nil {
		p.logger.Error().Err(err).Msg("marshal event for redis")
		return
	}
	if err := p.client.Publish(ctx, Channel(event.CampaignID), payload).Err(); err != nil {
		p.logger.Warn().
			Err(err).
			Str("campaign_id", event.CampaignID).
			Msg("publish event to redis")
	}
}

// Close releases the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
