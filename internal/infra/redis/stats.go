package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// Stats keeps analytics counters as Redis integers keyed by their path.
type Stats struct {
	client *redis.Client
}

func NewStats(client *redis.Client) *Stats {
	return &Stats{client: client}
}

func (s *Stats) Incr(ctx context.Context, path string) error {
	return s.client.Incr(ctx, path).Err()
}

// Count reads the counter at path; missing counters are zero.
func (s *Stats) Count(ctx context.Context, path string) (int64, error) {
	n, err := s.client.Get(ctx, path).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}
