package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// defaultFileExt names recorded-game files when no extension is configured.
const defaultFileExt = ".json"

// FileStore reads recorded games from a directory, one file per game.
type FileStore struct {
	baseDir string
	ext     string
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithExtension sets the recorded-game file extension. Default is ".json".
func WithExtension(ext string) FileOption {
	return func(s *FileStore) {
		s.ext = ext
	}
}

// NewFileStore creates a file store rooted at baseDir, creating the directory
// if it does not exist.
func NewFileStore(baseDir string, opts ...FileOption) (*FileStore, error) {
	store := &FileStore{
		baseDir: baseDir,
		ext:     defaultFileExt,
	}

	for _, opt := range opts {
		opt(store)
	}

	if err := os.MkdirAll(store.baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create game data directory: %w", err)
	}
	return store, nil
}

// GamePath resolves the file path for a game id. Identifiers that would
// escape the base directory are rejected, since game ids arrive from clients.
func (s *FileStore) GamePath(gameID string) (string, error) {
	if gameID == "" || strings.ContainsAny(gameID, `/\`) || strings.Contains(gameID, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidGameID, gameID)
	}

	path := filepath.Join(s.baseDir, gameID+s.ext)

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve game path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q escapes the data directory", ErrInvalidGameID, gameID)
	}
	return path, nil
}

// ReadGame returns the raw recorded-game file for a game id.
// A missing file reports ErrNotFound.
func (s *FileStore) ReadGame(ctx context.Context, gameID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.GamePath(gameID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: no recorded game at %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to read game file: %w", err)
	}
	return data, nil
}

// BaseDir returns the directory games are read from.
func (s *FileStore) BaseDir() string { return s.baseDir }
