// Package local_test tests the local filesystem blob store.
package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/canadian-music-ledger/internal/storage"
	"github.com/JakeFAU/canadian-music-ledger/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})
	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "public", "data")
		_, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})
	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})
	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "testfile")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})
}

func TestPutObjects(t *testing.T) {
	tempDir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: tempDir})
	require.NoError(t, err)

	t.Run("WritesAll", func(t *testing.T) {
		uris, err := store.PutObjects(context.Background(), []storage.Object{
			{Path: "data/releases.json", ContentType: "application/json", Data: []byte("[]")},
			{Path: "data/tally.json", ContentType: "application/json", Data: []byte("{}")},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{
			"file://" + filepath.Join(tempDir, "data", "releases.json"),
			"file://" + filepath.Join(tempDir, "data", "tally.json"),
		}, uris)

		// #nosec G304 -- test reads from the controlled temp directory.
		got, err := os.ReadFile(filepath.Join(tempDir, "data", "tally.json"))
		require.NoError(t, err)
		assert.Equal(t, "{}", string(got))
	})

	t.Run("ReplacesExisting", func(t *testing.T) {
		_, err := store.PutObjects(context.Background(), []storage.Object{
			{Path: "data/releases.json", Data: []byte(`[{"artist":"x"}]`)},
		})
		require.NoError(t, err)
		// #nosec G304 -- test reads from the controlled temp directory.
		got, err := os.ReadFile(filepath.Join(tempDir, "data", "releases.json"))
		require.NoError(t, err)
		assert.Equal(t, `[{"artist":"x"}]`, string(got))
	})

	t.Run("StagingFailureLeavesExistingUntouched", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(tempDir, "blocker"), []byte("file"), 0o600))

		_, err := store.PutObjects(context.Background(), []storage.Object{
			{Path: "data/releases.json", Data: []byte("new")},
			{Path: "blocker/tally.json", Data: []byte("new")},
		})
		require.Error(t, err)

		// #nosec G304 -- test reads from the controlled temp directory.
		got, err := os.ReadFile(filepath.Join(tempDir, "data", "releases.json"))
		require.NoError(t, err)
		assert.Equal(t, `[{"artist":"x"}]`, string(got))

		entries, err := os.ReadDir(filepath.Join(tempDir, "data"))
		require.NoError(t, err)
		for _, e := range entries {
			assert.NotContains(t, e.Name(), ".tmp-", "staging files must be cleaned up")
		}
	})

	t.Run("RejectsTraversal", func(t *testing.T) {
		_, err := store.PutObjects(context.Background(), []storage.Object{{Path: "../escape.json"}})
		assert.ErrorIs(t, err, storage.ErrInvalidPath)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := store.PutObjects(ctx, []storage.Object{{Path: "data/x.json"}})
		assert.Error(t, err)
	})
}
