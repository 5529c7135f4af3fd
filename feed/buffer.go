package feed

import (
	"context"
	"encoding/json"
)

// fetchFunc loads one batch of records starting at cursor. more reports
// whether the source may hold records beyond the returned batch.
type fetchFunc func(ctx context.Context, cursor, limit int) (records []json.RawMessage, more bool, err error)

// buffer implements the shared batching discipline of all feeders: refill
// from the source when empty, hand out one record per step, report
// exhaustion once the source is drained. Owned by a single goroutine.
type buffer struct {
	fetch     fetchFunc
	batchSize int

	records   []json.RawMessage
	cursor    int
	exhausted bool
}

func newBuffer(batchSize int, fetch fetchFunc) *buffer {
	return &buffer{fetch: fetch, batchSize: batchSize}
}

// next returns the next buffered record, refilling first when needed.
func (b *buffer) next(ctx context.Context) (json.RawMessage, error) {
	if len(b.records) == 0 {
		if b.exhausted {
			return nil, ErrExhausted
		}
		if err := b.refill(ctx); err != nil {
			return nil, err
		}
		if len(b.records) == 0 {
			b.exhausted = true
			return nil, ErrExhausted
		}
	}

	rec := b.records[0]
	b.records = b.records[1:]
	return rec, nil
}

func (b *buffer) refill(ctx context.Context) error {
	records, more, err := b.fetch(ctx, b.cursor, b.batchSize)
	if err != nil {
		return err
	}
	b.records = append(b.records, records...)
	b.cursor += len(records)
	if !more {
		b.exhausted = true
	}
	return nil
}

// clear drops buffered records and marks the stream exhausted.
func (b *buffer) clear() {
	b.records = nil
	b.exhausted = true
}
