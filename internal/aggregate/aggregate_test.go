package aggregate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/canadian-music-ledger/internal/release"
	"github.com/JakeFAU/canadian-music-ledger/internal/source"
)

type stubAdapter struct {
	name    release.Platform
	delay   time.Duration
	results []source.Result
	panics  bool
}

func (s *stubAdapter) Name() release.Platform { return s.name }

func (s *stubAdapter) Fetch(ctx context.Context, _ release.DateRange) []source.Result {
	if s.panics {
		panic("selector exploded")
	}
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
	}
	return s.results
}

func rel(artist string, p release.Platform) release.Release {
	return release.Release{Artist: artist, Title: "T", Platforms: []release.Platform{p}}
}

func TestRunConcatenatesInRegistrationOrder(t *testing.T) {
	t.Parallel()

	slow := &stubAdapter{name: release.PlatformMusicBrainz, delay: 50 * time.Millisecond, results: []source.Result{
		source.Success("offset=0", []release.Release{rel("a", release.PlatformMusicBrainz), rel("b", release.PlatformMusicBrainz)}),
	}}
	fast := &stubAdapter{name: release.PlatformBandcamp, results: []source.Result{
		source.Failure(release.PlatformBandcamp, "toronto", source.KindTransport, errors.New("timeout"), nil),
		source.Success("montreal", []release.Release{rel("c", release.PlatformBandcamp)}),
	}}

	out := New(zap.NewNop(), slow, fast).Run(context.Background(), release.DateRange{})

	require.Len(t, out.Candidates, 3)
	assert.Equal(t, "a", out.Candidates[0].Artist)
	assert.Equal(t, "b", out.Candidates[1].Artist)
	assert.Equal(t, "c", out.Candidates[2].Artist)

	require.Len(t, out.Sources, 2)
	assert.Equal(t, release.PlatformMusicBrainz, out.Sources[0].Source)
	assert.Equal(t, 2, out.Sources[0].Releases)
	assert.Empty(t, out.Sources[0].Failures)
	assert.Equal(t, 1, out.Sources[1].Releases)
	assert.Equal(t, 2, out.Sources[1].Units)
	require.Len(t, out.Sources[1].Failures, 1)
	assert.Equal(t, "toronto", out.Sources[1].Failures[0].Unit)
}

func TestRunIsolatesPanickingAdapter(t *testing.T) {
	t.Parallel()

	broken := &stubAdapter{name: release.PlatformBandcamp, panics: true}
	healthy := &stubAdapter{name: release.PlatformITunes, results: []source.Result{
		source.Success("feed", []release.Release{rel("d", release.PlatformITunes)}),
	}}

	out := New(nil, broken, healthy).Run(context.Background(), release.DateRange{})

	require.Len(t, out.Candidates, 1)
	require.Len(t, out.Sources[0].Failures, 1)
	assert.Equal(t, source.KindSetup, out.Sources[0].Failures[0].Kind)
	assert.ErrorIs(t, out.Sources[0].Failures[0], source.ErrSetup)
}

func TestRunWithNoAdapters(t *testing.T) {
	t.Parallel()

	out := New(nil).Run(context.Background(), release.DateRange{})
	assert.Empty(t, out.Candidates)
	assert.Empty(t, out.Sources)
}
