// Package feed provides lazy, ordered sources of recorded score events, one
// feeder per game. A feeder hands out its game header once and then steps
// through the recorded score list in source order, batching reads from the
// underlying store.
//
// A feeder's score stream is owned by a single scheduler goroutine and is not
// safe for concurrent stepping; Details may be called from other goroutines.
package feed

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrExhausted reports the normal end of a recorded score stream.
// Stepping past the last record keeps returning it.
var ErrExhausted = errors.New("score stream exhausted")

// Details is the once-cached game header.
type Details struct {
	GameID string          `json:"game_id"`
	Teams  json.RawMessage `json:"teams,omitempty"`
}

// Feeder provides game metadata and a lazy, restart-free sequence of score
// records.
type Feeder interface {
	// Details returns the game header. The first call reads the source; the
	// result is cached for the feeder's lifetime.
	Details(ctx context.Context) (Details, error)

	// Next returns the next score record in source order, refilling the
	// internal buffer from the source as needed. Returns ErrExhausted when
	// the source has no more records.
	Next(ctx context.Context) (json.RawMessage, error)

	// Cleanup releases buffered records and any holds on the source.
	// Idempotent; the stream stays exhausted afterwards.
	Cleanup() error
}

// defaultBatchSize is the read-ahead batch when none is configured.
const defaultBatchSize = 30

type options struct {
	batchSize int
}

// Option configures a feeder.
type Option func(*options)

// WithBatchSize sets how many records a single source read fetches.
func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{batchSize: defaultBatchSize}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
