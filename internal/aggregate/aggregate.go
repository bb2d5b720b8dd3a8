// Package aggregate runs every source adapter concurrently and combines their
// candidates in registration order.
package aggregate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/canadian-music-ledger/internal/metrics"
	"github.com/JakeFAU/canadian-music-ledger/internal/release"
	"github.com/JakeFAU/canadian-music-ledger/internal/source"
)

// SourceSummary reports one adapter's contribution to a run.
type SourceSummary struct {
	Source   release.Platform
	Releases int
	Units    int
	Failures []*source.FetchError
	Duration time.Duration
}

// Outcome is the combined result of one aggregation.
type Outcome struct {
	Candidates []release.Release
	Sources    []SourceSummary
}

// Aggregator fans out to adapters.
type Aggregator struct {
	adapters []source.Adapter
	logger   *zap.Logger
}

// New creates an Aggregator. Adapter order fixes the candidate order.
func New(logger *zap.Logger, adapters ...source.Adapter) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{adapters: adapters, logger: logger.Named("aggregate")}
}

// Run invokes every adapter in its own goroutine. Each goroutine writes only
// its own slot, so no locking is needed; slots are concatenated after all
// adapters return, independent of completion order.
func (a *Aggregator) Run(ctx context.Context, window release.DateRange) Outcome {
	slots := make([][]source.Result, len(a.adapters))
	durations := make([]time.Duration, len(a.adapters))

	var g errgroup.Group
	for i, adapter := range a.adapters {
		g.Go(func() error {
			start := time.Now()
			slots[i] = a.invoke(ctx, adapter, window)
			durations[i] = time.Since(start)
			return nil
		})
	}
	_ = g.Wait()

	out := Outcome{Sources: make([]SourceSummary, 0, len(a.adapters))}
	for i, adapter := range a.adapters {
		summary := SourceSummary{Source: adapter.Name(), Units: len(slots[i]), Duration: durations[i]}
		for _, res := range slots[i] {
			out.Candidates = append(out.Candidates, res.Releases...)
			summary.Releases += len(res.Releases)
			if res.Err != nil {
				summary.Failures = append(summary.Failures, res.Err)
				metrics.ObserveSourceFailure(string(adapter.Name()), string(res.Err.Kind))
				a.logger.Warn("unit skipped",
					zap.String("source", string(adapter.Name())),
					zap.String("unit", res.Err.Unit),
					zap.String("kind", string(res.Err.Kind)),
					zap.Error(res.Err.Err),
				)
			}
		}
		metrics.ObserveSourceReleases(string(adapter.Name()), summary.Releases)
		a.logger.Info("source finished",
			zap.String("source", string(adapter.Name())),
			zap.Int("releases", summary.Releases),
			zap.Int("units", summary.Units),
			zap.Int("failures", len(summary.Failures)),
			zap.Duration("duration", summary.Duration),
		)
		out.Sources = append(out.Sources, summary)
	}
	return out
}

// invoke calls one adapter and converts a panic into a setup failure so one
// broken adapter cannot take down its siblings.
func (a *Aggregator) invoke(ctx context.Context, adapter source.Adapter, window release.DateRange) (results []source.Result) {
	defer func() {
		if r := recover(); r != nil {
			results = []source.Result{source.Failure(adapter.Name(), "adapter", source.KindSetup,
				fmt.Errorf("adapter panicked: %v", r), nil)}
		}
	}()
	return adapter.Fetch(ctx, window)
}
