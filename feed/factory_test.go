package feed

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/scorecast/config"
)

func TestNewFactoryFile(t *testing.T) {
	cfg := config.Default()
	cfg.App.GameDataDir = t.TempDir()

	factory, err := NewFactory(cfg, nil)
	require.NoError(t, err)

	f, err := factory(context.Background(), "g1")
	require.NoError(t, err)
	assert.IsType(t, &FileFeeder{}, f)
}

func TestNewFactoryRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.Default()
	cfg.App.GameFeeder = config.FeederRedis

	factory, err := NewFactory(cfg, client)
	require.NoError(t, err)

	f, err := factory(context.Background(), "g1")
	require.NoError(t, err)
	assert.IsType(t, &RedisFeeder{}, f)
}

func TestNewFactoryRedisRequiresClient(t *testing.T) {
	cfg := config.Default()
	cfg.App.GameFeeder = config.FeederRedis

	_, err := NewFactory(cfg, nil)
	assert.Error(t, err)
}
