package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	return store, dir
}

func TestNewFileStoreCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "games", "recorded")
	_, err := NewFileStore(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestReadGame(t *testing.T) {
	store, dir := setupFileStore(t)
	content := []byte(`{"game_id":"g1","teams":["home","away"],"scores":[]}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "g1.json"), content, 0o644))

	data, err := store.ReadGame(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestReadGameMissing(t *testing.T) {
	store, _ := setupFileStore(t)

	_, err := store.ReadGame(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadGameCancelledContext(t *testing.T) {
	store, _ := setupFileStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.ReadGame(ctx, "g1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGamePathRejectsTraversal(t *testing.T) {
	store, _ := setupFileStore(t)

	for _, id := range []string{"", "../etc/passwd", "a/b", `a\b`, "foo..bar"} {
		_, err := store.GamePath(id)
		assert.ErrorIs(t, err, ErrInvalidGameID, "id %q", id)
	}
}

func TestGamePathUsesExtension(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, WithExtension(".game"))
	require.NoError(t, err)

	path, err := store.GamePath("final-2024")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "final-2024.game"), path)
}

func TestScoresKey(t *testing.T) {
	assert.Equal(t, "g1:scores", ScoresKey("g1"))
}
