// Package storage provides access to the recorded-game sources: a directory
// of game files and a redis database. Feeders build on these primitives; the
// rest of the runtime only sees the sentinel errors.
package storage

import "errors"

var (
	// ErrNotFound indicates the requested game has no recorded source.
	ErrNotFound = errors.New("game source not found")

	// ErrCorrupt indicates the recorded source exists but its structure is invalid.
	ErrCorrupt = errors.New("game source is corrupt")

	// ErrInvalidGameID indicates a game identifier that cannot name a source.
	ErrInvalidGameID = errors.New("invalid game id")
)
