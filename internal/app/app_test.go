// Package app_test contains unit tests for the app package.
package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/canadian-music-ledger/internal/app"
	"github.com/JakeFAU/canadian-music-ledger/internal/config"
	"github.com/JakeFAU/canadian-music-ledger/internal/fetcher/headless"
	"github.com/JakeFAU/canadian-music-ledger/internal/release"
	"github.com/JakeFAU/canadian-music-ledger/internal/source"
	"github.com/JakeFAU/canadian-music-ledger/internal/storage/local"
	"github.com/JakeFAU/canadian-music-ledger/internal/storage/memory"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.Provider = config.ProviderMemory
	cfg.LastFM.APIKey = ""
	return cfg
}

func TestNewApp_Defaults(t *testing.T) {
	cfg := baseConfig(t)

	a, err := app.NewApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &memory.BlobStore{}, a.Store())
	assert.NotNil(t, a.Runner())
	assert.Equal(t, []release.Platform{
		release.PlatformMusicBrainz,
		release.PlatformBandcamp,
		release.PlatformITunes,
	}, a.Sources())
}

func TestNewApp_LastFMRequiresKey(t *testing.T) {
	cfg := baseConfig(t)
	cfg.LastFM.APIKey = "key"
	cfg.Bandcamp.Enabled = false

	a, err := app.NewApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []release.Platform{
		release.PlatformMusicBrainz,
		release.PlatformITunes,
		release.PlatformLastFM,
	}, a.Sources())
}

func TestNewApp_LocalStorage(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Storage.Provider = config.ProviderLocal
	cfg.Storage.Local.BaseDir = t.TempDir()

	a, err := app.NewApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &local.BlobStore{}, a.Store())
}

func TestNewApp_UnknownStorageProvider(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Storage.Provider = "noop"

	_, err := app.NewApp(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage provider")
}

func TestNewApp_BadArchiveDSN(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Archive.Postgres.DSN = "://not-a-dsn"

	_, err := app.NewApp(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive")
}

func TestNewApp_NoSources(t *testing.T) {
	cfg := baseConfig(t)
	cfg.MusicBrainz.Enabled = false
	cfg.Bandcamp.Enabled = false
	cfg.ITunes.Enabled = false

	a, err := app.NewApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Empty(t, a.Sources())
	report, err := a.Runner().Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Releases)

	store, ok := a.Store().(*memory.BlobStore)
	require.True(t, ok)
	data, ok := store.Get("data/releases.json")
	require.True(t, ok)
	assert.JSONEq(t, "[]", string(data))
}

func TestNewApp_DisabledRendererReportsSetupFailure(t *testing.T) {
	cfg := baseConfig(t)
	cfg.MusicBrainz.Enabled = false
	cfg.ITunes.Enabled = false
	cfg.Bandcamp.ChromePath = app.ChromeDisabled

	a, err := app.NewApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	report, err := a.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Sources, 1)
	assert.Equal(t, release.PlatformBandcamp, report.Sources[0].Source)
	require.Len(t, report.Sources[0].Failures, 1)
	assert.Equal(t, source.KindSetup, report.Sources[0].Failures[0].Kind)
	assert.ErrorIs(t, report.Sources[0].Failures[0], headless.ErrRendererDisabled)
}
