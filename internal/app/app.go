// Package app builds the long-lived services for a ledger build from
// configuration, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/canadian-music-ledger/internal/aggregate"
	"github.com/JakeFAU/canadian-music-ledger/internal/classify"
	"github.com/JakeFAU/canadian-music-ledger/internal/clock/system"
	"github.com/JakeFAU/canadian-music-ledger/internal/config"
	collyfetcher "github.com/JakeFAU/canadian-music-ledger/internal/fetcher/colly"
	"github.com/JakeFAU/canadian-music-ledger/internal/fetcher/headless"
	"github.com/JakeFAU/canadian-music-ledger/internal/hash/sha256"
	"github.com/JakeFAU/canadian-music-ledger/internal/id/uuid"
	"github.com/JakeFAU/canadian-music-ledger/internal/metrics"
	"github.com/JakeFAU/canadian-music-ledger/internal/pipeline"
	"github.com/JakeFAU/canadian-music-ledger/internal/politeness"
	pubsubpublisher "github.com/JakeFAU/canadian-music-ledger/internal/publisher/pubsub"
	"github.com/JakeFAU/canadian-music-ledger/internal/release"
	"github.com/JakeFAU/canadian-music-ledger/internal/sink"
	"github.com/JakeFAU/canadian-music-ledger/internal/source"
	"github.com/JakeFAU/canadian-music-ledger/internal/source/bandcamp"
	"github.com/JakeFAU/canadian-music-ledger/internal/source/itunes"
	"github.com/JakeFAU/canadian-music-ledger/internal/source/lastfm"
	"github.com/JakeFAU/canadian-music-ledger/internal/source/musicbrainz"
	"github.com/JakeFAU/canadian-music-ledger/internal/storage"
	gcsstore "github.com/JakeFAU/canadian-music-ledger/internal/storage/gcs"
	"github.com/JakeFAU/canadian-music-ledger/internal/storage/local"
	"github.com/JakeFAU/canadian-music-ledger/internal/storage/memory"
	"github.com/JakeFAU/canadian-music-ledger/internal/storage/postgres"
)

// App holds the services shared by one build: the blob store, the optional
// archive and publisher, the registered source adapters, and the runner that
// ties them together.
type App struct {
	logger   *zap.Logger
	store    storage.BlobStore
	adapters []source.Adapter
	runner   *pipeline.Runner
	closers  []func()
}

// Store returns the configured artifact backend.
func (a *App) Store() storage.BlobStore { return a.store }

// Runner returns the build pipeline.
func (a *App) Runner() *pipeline.Runner { return a.runner }

// Run performs one build.
func (a *App) Run(ctx context.Context) (pipeline.Report, error) { return a.runner.Run(ctx) }

// Sources lists registered adapters in dispatch order.
func (a *App) Sources() []release.Platform {
	out := make([]release.Platform, 0, len(a.adapters))
	for _, ad := range a.adapters {
		out = append(out, ad.Name())
	}
	return out
}

// NewApp creates every service described by cfg. It fails fast if a required
// backend cannot be initialized. Optional backends (archive, publisher) are
// only constructed when configured.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	tables := classify.Default().WithDenylist(cfg.Run.Denylist...)

	// 1. Artifact storage.
	if a.store, err = a.newBlobStore(ctx, cfg.Storage); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// 2. Source adapters, paced by one governor.
	a.adapters = a.newAdapters(cfg, tables)
	if len(a.adapters) == 0 {
		logger.Warn("no sources enabled; the build will publish an empty ledger")
	}

	artifactSink, err := sink.New(a.store, sink.Paths{
		Releases: cfg.Run.ObjectPath(cfg.Run.ReleasesObject),
		Tally:    cfg.Run.ObjectPath(cfg.Run.TallyObject),
	}, logger)
	if err != nil {
		return nil, err
	}

	deps := pipeline.Deps{
		Collector: aggregate.New(logger, a.adapters...),
		Writer:    artifactSink,
		Tables:    tables,
		Clock:     system.New(),
		IDs:       uuid.New(),
		Hasher:    sha256.New(),
	}

	// 3. Snapshot archive.
	if dsn := cfg.Archive.Postgres.DSN; dsn != "" {
		logger.Info("Connecting to PostgreSQL snapshot archive...")
		archive, archiveErr := postgres.NewSnapshotStore(ctx, postgres.Config{DSN: dsn, Table: cfg.Archive.Postgres.Table})
		if archiveErr != nil {
			return nil, fmt.Errorf("failed to initialize archive: %w", archiveErr)
		}
		a.closers = append(a.closers, archive.Close)
		deps.Archiver = archive
	}

	// 4. Snapshot notifications.
	if ps := cfg.Publish.PubSub; ps.TopicID != "" {
		logger.Info("Connecting to GCP Pub/Sub", zap.String("topic", ps.TopicID))
		client, clientErr := pubsub.NewClient(ctx, ps.ProjectID)
		if clientErr != nil {
			return nil, fmt.Errorf("failed to initialize pubsub: %w", clientErr)
		}
		publisher := pubsubpublisher.New(client.Topic(ps.TopicID))
		a.closers = append(a.closers, func() {
			publisher.Stop()
			if closeErr := client.Close(); closeErr != nil {
				logger.Warn("Error closing pubsub client", zap.Error(closeErr))
			}
		})
		deps.Publisher = publisher
	}

	a.runner, err = pipeline.New(deps, pipeline.Config{
		LookbackDays: cfg.Run.LookbackDays,
		Metrics: metrics.ExportConfig{
			TextfilePath:   cfg.Metrics.TextfilePath,
			PushgatewayURL: cfg.Metrics.PushgatewayURL,
			JobName:        cfg.Metrics.JobName,
		},
	}, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("Application services initialized successfully.", zap.Any("sources", a.Sources()))
	return a, nil
}

func (a *App) newBlobStore(ctx context.Context, cfg config.StorageConfig) (storage.BlobStore, error) {
	switch cfg.Provider {
	case config.ProviderLocal:
		a.logger.Info("Using local storage provider", zap.String("base_dir", cfg.Local.BaseDir))
		return local.New(local.Config{BaseDir: cfg.Local.BaseDir})
	case config.ProviderGCS:
		a.logger.Info("Using GCS storage provider", zap.String("bucket", cfg.GCS.Bucket))
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		a.closers = append(a.closers, func() {
			if closeErr := client.Close(); closeErr != nil {
				a.logger.Warn("Error closing gcs client", zap.Error(closeErr))
			}
		})
		return gcsstore.New(client, gcsstore.Config{Bucket: cfg.GCS.Bucket, CacheControl: cfg.GCS.CacheControl})
	case config.ProviderMemory:
		a.logger.Info("Using in-memory storage provider. Artifacts will be discarded.")
		return memory.NewBlobStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Provider)
	}
}

// newAdapters registers sources in their fixed dispatch order.
func (a *App) newAdapters(cfg config.Config, tables *classify.Tables) []source.Adapter {
	governor := politeness.New(politeness.Policy{}, map[string]politeness.Policy{
		string(release.PlatformMusicBrainz): policyOf(cfg.MusicBrainz.SourcePolicy),
		string(release.PlatformBandcamp):    policyOf(cfg.Bandcamp.SourcePolicy),
		string(release.PlatformITunes):      policyOf(cfg.ITunes.SourcePolicy),
		string(release.PlatformLastFM):      policyOf(cfg.LastFM.SourcePolicy),
	})
	fetcher := collyfetcher.New(collyfetcher.Config{UserAgent: cfg.MusicBrainz.UserAgent})

	var adapters []source.Adapter
	if cfg.MusicBrainz.Enabled {
		adapters = append(adapters, musicbrainz.New(musicbrainz.Config{
			BaseURL:    cfg.MusicBrainz.BaseURL,
			UserAgent:  cfg.MusicBrainz.UserAgent,
			PageSize:   cfg.MusicBrainz.PageSize,
			MaxRecords: cfg.MusicBrainz.MaxRecords,
		}, fetcher, governor, tables, a.logger))
	}
	if cfg.Bandcamp.Enabled {
		adapters = append(adapters, bandcamp.New(bandcampConfig(cfg.Bandcamp), a.newRenderer(cfg.Bandcamp), governor, tables, a.logger))
	}
	if cfg.ITunes.Enabled {
		adapters = append(adapters, itunes.New(itunes.Config{Feeds: cfg.ITunes.Feeds}, fetcher, governor, tables, a.logger))
	}
	lastfmCfg := lastfm.Config{
		APIKey:      cfg.LastFM.APIKey,
		BaseURL:     cfg.LastFM.BaseURL,
		TopArtists:  cfg.LastFM.TopArtists,
		ArtistLimit: cfg.LastFM.ArtistLimit,
		AlbumLimit:  cfg.LastFM.AlbumLimit,
	}
	if lastfmCfg.Enabled() {
		adapters = append(adapters, lastfm.New(lastfmCfg, fetcher, governor, tables, a.logger))
	} else {
		a.logger.Info("Last.fm disabled: no API key configured")
	}
	return adapters
}

// ChromeDisabled turns the headless renderer off while keeping the Bandcamp
// source registered, so its setup failure is still reported per run.
const ChromeDisabled = "off"

func (a *App) newRenderer(cfg config.BandcampConfig) source.Renderer {
	if cfg.ChromePath == ChromeDisabled {
		return headless.Disabled{}
	}
	return headless.NewChromedp(headless.Config{
		UserAgent:         cfg.UserAgent,
		NavigationTimeout: cfg.NavigationTimeout,
		ExecPath:          cfg.ChromePath,
	})
}

func bandcampConfig(cfg config.BandcampConfig) bandcamp.Config {
	out := bandcamp.Config{
		URLTemplate: cfg.URLTemplate,
		Settle:      cfg.Settle,
		Primary:     bandcamp.Selector(cfg.PrimarySelector),
		Fallback:    bandcamp.Selector(cfg.FallbackSelector),
	}
	for _, t := range cfg.Targets {
		out.Targets = append(out.Targets, bandcamp.Target{Tag: t.Tag, Locality: t.Locality})
	}
	return out
}

func policyOf(p config.SourcePolicy) politeness.Policy {
	return politeness.Policy{Interval: p.Delay, Timeout: p.Timeout}
}

// Close gracefully shuts down every service in reverse construction order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
