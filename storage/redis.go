package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// pingTimeout bounds the connectivity check when building a client.
const pingTimeout = 5 * time.Second

// NewRedisClient builds a redis client from a connection URL and verifies
// connectivity before returning it. The caller owns the client and must Close it.
func NewRedisClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// ScoresKey names the ordered list of recorded score records for a game.
// The game header lives at the bare game id.
func ScoresKey(gameID string) string {
	return gameID + ":scores"
}
