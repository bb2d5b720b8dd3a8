// Package pipeline runs one ledger build: collect candidates from every source,
// drop stale ones, reconcile duplicates, tally, and write the artifacts.
//
// Writing the artifacts is the only step whose failure fails the run. The
// archive, notification, and metrics steps that follow are best effort.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/canadian-music-ledger/internal/aggregate"
	"github.com/JakeFAU/canadian-music-ledger/internal/classify"
	"github.com/JakeFAU/canadian-music-ledger/internal/metrics"
	"github.com/JakeFAU/canadian-music-ledger/internal/reconcile"
	"github.com/JakeFAU/canadian-music-ledger/internal/release"
	"github.com/JakeFAU/canadian-music-ledger/internal/sink"
	"github.com/JakeFAU/canadian-music-ledger/internal/storage/postgres"
	"github.com/JakeFAU/canadian-music-ledger/internal/tally"
)

// EventSnapshotPublished is the event attribute on every notification.
const EventSnapshotPublished = "ledger.snapshot.published"

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher computes digests for change detection downstream.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Collector gathers candidates from every source.
type Collector interface {
	Run(ctx context.Context, window release.DateRange) aggregate.Outcome
}

// ArtifactWriter persists both artifacts together.
type ArtifactWriter interface {
	Write(ctx context.Context, releases []release.Release, t release.Tally) (sink.Written, error)
}

// Archiver stores a copy of each published snapshot.
type Archiver interface {
	Archive(ctx context.Context, snap postgres.Snapshot) error
}

// Publisher announces a published snapshot.
type Publisher interface {
	Publish(ctx context.Context, attributes map[string]string, payload any) (string, error)
}

// Config controls Runner behavior.
type Config struct {
	LookbackDays int
	Metrics      metrics.ExportConfig
}

// Deps are the collaborators a Runner needs. Archiver and Publisher are optional.
type Deps struct {
	Collector Collector
	Writer    ArtifactWriter
	Tables    *classify.Tables
	Clock     Clock
	IDs       IDGenerator
	Hasher    Hasher
	Archiver  Archiver
	Publisher Publisher
}

// Notification is the payload sent after a successful write.
type Notification struct {
	RunID        string    `json:"run_id"`
	GeneratedAt  time.Time `json:"generated_at"`
	ReleaseCount int       `json:"release_count"`
	Digest       string    `json:"releases_sha256,omitempty"`
	Last7Days    int       `json:"total_releases_last_7_days"`
	Last30Days   int       `json:"total_releases_last_30_days"`
	ReleasesURI  string    `json:"releases_uri"`
	TallyURI     string    `json:"tally_uri"`
}

// Report summarizes a finished run.
type Report struct {
	RunID          string
	Window         release.DateRange
	Sources        []aggregate.SourceSummary
	Candidates     int
	DroppedByAge   int
	Releases       []release.Release
	Tally          release.Tally
	Written        sink.Written
	Digest         string
	Archived       bool
	NotificationID string
	Duration       time.Duration
}

// Runner executes builds.
type Runner struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New validates deps and returns a Runner.
func New(deps Deps, cfg Config, logger *zap.Logger) (*Runner, error) {
	switch {
	case deps.Collector == nil:
		return nil, errors.New("pipeline: collector is required")
	case deps.Writer == nil:
		return nil, errors.New("pipeline: artifact writer is required")
	case deps.Tables == nil:
		return nil, errors.New("pipeline: classification tables are required")
	case deps.Clock == nil:
		return nil, errors.New("pipeline: clock is required")
	case deps.IDs == nil:
		return nil, errors.New("pipeline: id generator is required")
	}
	if cfg.LookbackDays <= 0 {
		return nil, fmt.Errorf("pipeline: lookback days must be > 0, got %d", cfg.LookbackDays)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{deps: deps, cfg: cfg, logger: logger.Named("pipeline")}, nil
}

// Run performs one build. It returns an error only when the run could not
// start or the artifacts could not be written.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	start := r.deps.Clock.Now()
	runID, err := r.deps.IDs.NewID()
	if err != nil {
		return Report{}, fmt.Errorf("generate run id: %w", err)
	}
	logger := r.logger.With(zap.String("run_id", runID))

	window := release.LookbackWindow(start, r.cfg.LookbackDays)
	logger.Info("build started",
		zap.Int("lookback_days", r.cfg.LookbackDays),
		zap.String("from", window.FromDate()),
		zap.String("to", window.ToDate()),
	)

	outcome := r.deps.Collector.Run(ctx, window)
	if err := ctx.Err(); err != nil {
		return Report{}, fmt.Errorf("build canceled: %w", err)
	}
	logger.Info("combined raw", zap.Int("candidates", len(outcome.Candidates)))

	fresh, dropped := reconcile.FilterByAge(outcome.Candidates, start, r.cfg.LookbackDays)
	metrics.ObserveDroppedByAge(dropped)
	if dropped > 0 {
		logger.Info("dropped stale candidates", zap.Int("dropped", dropped))
	}

	releases := reconcile.Reconcile(fresh)
	logger.Info("after dedup", zap.Int("releases", len(releases)))

	summary := tally.Compute(releases, start, r.deps.Tables)
	logger.Info("tally computed",
		zap.Int("last_7_days", summary.Last7Days),
		zap.Int("last_30_days", summary.Last30Days),
		zap.Int("independent", summary.Independent),
		zap.Int("label", summary.LabelBacked),
	)

	written, err := r.deps.Writer.Write(ctx, releases, summary)
	if err != nil {
		return Report{}, fmt.Errorf("publish artifacts: %w", err)
	}

	report := Report{
		RunID:        runID,
		Window:       window,
		Sources:      outcome.Sources,
		Candidates:   len(outcome.Candidates),
		DroppedByAge: dropped,
		Releases:     releases,
		Tally:        summary,
		Written:      written,
	}

	report.Digest = r.digest(logger, written.Releases)
	report.Archived = r.archive(ctx, logger, &report)
	report.NotificationID = r.notify(ctx, logger, &report)

	finished := r.deps.Clock.Now()
	report.Duration = finished.Sub(start)
	metrics.ObserveRun(len(releases), report.Duration, finished)
	if err := metrics.Export(ctx, r.cfg.Metrics); err != nil {
		logger.Warn("metrics export failed", zap.Error(err))
	}

	logger.Info("build finished",
		zap.Int("releases", len(releases)),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (r *Runner) digest(logger *zap.Logger, data []byte) string {
	if r.deps.Hasher == nil {
		return ""
	}
	sum, err := r.deps.Hasher.Hash(data)
	if err != nil {
		logger.Warn("releases digest failed", zap.Error(err))
		return ""
	}
	return sum
}

func (r *Runner) archive(ctx context.Context, logger *zap.Logger, rep *Report) bool {
	if r.deps.Archiver == nil {
		return false
	}
	err := r.deps.Archiver.Archive(ctx, postgres.Snapshot{
		RunID:        rep.RunID,
		GeneratedAt:  rep.Tally.GeneratedAt,
		ReleaseCount: len(rep.Releases),
		Digest:       rep.Digest,
		Releases:     rep.Written.Releases,
		Tally:        rep.Written.Tally,
	})
	if err != nil {
		logger.Warn("snapshot archive failed", zap.Error(err))
		return false
	}
	return true
}

func (r *Runner) notify(ctx context.Context, logger *zap.Logger, rep *Report) string {
	if r.deps.Publisher == nil {
		return ""
	}
	attrs := map[string]string{"event": EventSnapshotPublished, "run_id": rep.RunID}
	id, err := r.deps.Publisher.Publish(ctx, attrs, Notification{
		RunID:        rep.RunID,
		GeneratedAt:  rep.Tally.GeneratedAt,
		ReleaseCount: len(rep.Releases),
		Digest:       rep.Digest,
		Last7Days:    rep.Tally.Last7Days,
		Last30Days:   rep.Tally.Last30Days,
		ReleasesURI:  rep.Written.ReleasesURI,
		TallyURI:     rep.Written.TallyURI,
	})
	if err != nil {
		logger.Warn("snapshot notification failed", zap.Error(err))
		return ""
	}
	logger.Info("snapshot notification sent", zap.String("message_id", id))
	return id
}
