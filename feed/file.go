package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/courtside/scorecast/storage"
)

// recordedGame is the on-disk shape of one recorded game file.
type recordedGame struct {
	GameID string            `json:"game_id"`
	Teams  json.RawMessage   `json:"teams"`
	Scores []json.RawMessage `json:"scores"`
}

// FileFeeder replays a game recorded as a single JSON file. The whole score
// list is loaded in one batch; afterwards the feeder reports exhaustion.
type FileFeeder struct {
	store  *storage.FileStore
	gameID string

	loadOnce sync.Once
	game     recordedGame
	loadErr  error

	buf *buffer
}

// NewFileFeeder creates a feeder reading gameID from the given file store.
// The file is not touched until the first Details or Next call.
func NewFileFeeder(store *storage.FileStore, gameID string, opts ...Option) *FileFeeder {
	o := applyOptions(opts)
	f := &FileFeeder{
		store:  store,
		gameID: gameID,
	}
	f.buf = newBuffer(o.batchSize, f.fetch)
	return f
}

// load reads and parses the recorded game exactly once.
func (f *FileFeeder) load(ctx context.Context) error {
	f.loadOnce.Do(func() {
		data, err := f.store.ReadGame(ctx, f.gameID)
		if err != nil {
			f.loadErr = err
			return
		}
		if err := json.Unmarshal(data, &f.game); err != nil {
			f.loadErr = fmt.Errorf("%w: %v", storage.ErrCorrupt, err)
			return
		}
		if f.game.GameID == "" || len(f.game.Teams) == 0 {
			f.loadErr = fmt.Errorf("%w: recorded game %q is missing its header", storage.ErrCorrupt, f.gameID)
		}
	})
	return f.loadErr
}

// Details returns the game header from the recorded file.
func (f *FileFeeder) Details(ctx context.Context) (Details, error) {
	if err := f.load(ctx); err != nil {
		return Details{}, err
	}
	return Details{GameID: f.game.GameID, Teams: f.game.Teams}, nil
}

// Next returns the next recorded score in file order.
func (f *FileFeeder) Next(ctx context.Context) (json.RawMessage, error) {
	return f.buf.next(ctx)
}

// fetch loads the whole score list in one batch.
func (f *FileFeeder) fetch(ctx context.Context, cursor, _ int) ([]json.RawMessage, bool, error) {
	if err := f.load(ctx); err != nil {
		return nil, false, err
	}
	if cursor >= len(f.game.Scores) {
		return nil, false, nil
	}
	return f.game.Scores[cursor:], false, nil
}

// Cleanup releases buffered records. Idempotent.
func (f *FileFeeder) Cleanup() error {
	f.buf.clear()
	f.game.Scores = nil
	return nil
}
