package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/courtside/scorecast/storage"
)

// RedisFeeder replays a game recorded in redis: the header at key <game_id>,
// the ordered score list at <game_id>:scores. Scores are paged through a
// cursor and refilled batch by batch.
type RedisFeeder struct {
	client *redis.Client
	gameID string

	detailsOnce sync.Once
	details     Details
	detailsErr  error

	buf *buffer
}

// NewRedisFeeder creates a feeder reading gameID from redis. The client is
// shared and stays open after Cleanup.
func NewRedisFeeder(client *redis.Client, gameID string, opts ...Option) *RedisFeeder {
	o := applyOptions(opts)
	f := &RedisFeeder{
		client: client,
		gameID: gameID,
	}
	f.buf = newBuffer(o.batchSize, f.fetch)
	return f
}

// Details returns the game header stored at the bare game id key.
func (f *RedisFeeder) Details(ctx context.Context) (Details, error) {
	f.detailsOnce.Do(func() {
		data, err := f.client.Get(ctx, f.gameID).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				f.detailsErr = fmt.Errorf("%w: no header at key %q", storage.ErrNotFound, f.gameID)
				return
			}
			f.detailsErr = fmt.Errorf("redis get failed: %w", err)
			return
		}

		var d Details
		if err := json.Unmarshal(data, &d); err != nil {
			f.detailsErr = fmt.Errorf("%w: %v", storage.ErrCorrupt, err)
			return
		}
		if d.GameID == "" || len(d.Teams) == 0 {
			f.detailsErr = fmt.Errorf("%w: header at key %q is missing fields", storage.ErrCorrupt, f.gameID)
			return
		}
		f.details = d
	})
	return f.details, f.detailsErr
}

// Next returns the next recorded score in list order.
func (f *RedisFeeder) Next(ctx context.Context) (json.RawMessage, error) {
	return f.buf.next(ctx)
}

// fetch pages one batch out of the score list.
func (f *RedisFeeder) fetch(ctx context.Context, cursor, limit int) ([]json.RawMessage, bool, error) {
	key := storage.ScoresKey(f.gameID)
	vals, err := f.client.LRange(ctx, key, int64(cursor), int64(cursor+limit-1)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis lrange failed: %w", err)
	}

	records := make([]json.RawMessage, 0, len(vals))
	for i, v := range vals {
		raw := json.RawMessage(v)
		if !json.Valid(raw) {
			return nil, false, fmt.Errorf("%w: record %d of %q is not valid JSON", storage.ErrCorrupt, cursor+i, key)
		}
		records = append(records, raw)
	}

	// A full page may have more behind it; a short or empty one ends the list.
	return records, len(vals) == limit, nil
}

// Cleanup releases buffered records. Idempotent; the client is left open.
func (f *RedisFeeder) Cleanup() error {
	f.buf.clear()
	return nil
}
