package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/courtside/scorecast/config"
	"github.com/courtside/scorecast/storage"
)

// Factory builds a feeder for a game id using the configured source.
type Factory func(ctx context.Context, gameID string) (Feeder, error)

// NewFactory returns a Factory for the configured feeder implementation.
// The redis client may be nil when the file feeder is selected.
func NewFactory(cfg *config.Config, client *redis.Client) (Factory, error) {
	batch := WithBatchSize(cfg.App.ScoreBatchSize)

	switch cfg.App.GameFeeder {
	case config.FeederFile:
		store, err := storage.NewFileStore(cfg.App.GameDataDir, storage.WithExtension(cfg.App.GameFileExt))
		if err != nil {
			return nil, fmt.Errorf("failed to open game data directory: %w", err)
		}
		return func(_ context.Context, gameID string) (Feeder, error) {
			return NewFileFeeder(store, gameID, batch), nil
		}, nil

	case config.FeederRedis:
		if client == nil {
			return nil, errors.New("redis feeder requires a redis client")
		}
		return func(_ context.Context, gameID string) (Feeder, error) {
			return NewRedisFeeder(client, gameID, batch), nil
		}, nil

	default:
		return nil, fmt.Errorf("unknown app.gameFeeder %q", cfg.App.GameFeeder)
	}
}
