package bandcamp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/canadian-music-ledger/internal/classify"
	"github.com/JakeFAU/canadian-music-ledger/internal/politeness"
	"github.com/JakeFAU/canadian-music-ledger/internal/release"
	"github.com/JakeFAU/canadian-music-ledger/internal/source"
)

const primaryMarkup = `<html><body><ul>
<li class="results-grid-item"><a href="https://artist.bandcamp.com/album/full-circle">
  <div class="meta"><p><strong>Full Circle</strong> <span>by Haviah Mighty</span></p></div></a></li>
<li class="results-grid-item"><div class="meta"><p><strong></strong><span>by Nobody</span></p></div></li>
<li class="results-grid-item"><a href="/album/flight"><div class="meta"><p><strong>Flight</strong><span>The Cure</span></p></div></a></li>
</ul></body></html>`

const fallbackMarkup = `<html><body><ul>
<li class="item"><a href="/album/paper-kites"><div class="itemtext"> Paper   Kites </div><div class="itemsubtext">Marsh Birds</div></a></li>
</ul></body></html>`

type fakeRenderer struct {
	pages   map[string]string
	fail    map[string]error
	openErr error

	mu      sync.Mutex
	visited []string
	settles []time.Duration
	closed  bool
}

func (f *fakeRenderer) Open(context.Context) (source.Session, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f, nil
}

func (f *fakeRenderer) Render(_ context.Context, rawURL string, settle time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visited = append(f.visited, rawURL)
	f.settles = append(f.settles, settle)
	if err := f.fail[rawURL]; err != nil {
		return "", err
	}
	return f.pages[rawURL], nil
}

func (f *fakeRenderer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func newGovernor() *politeness.Governor {
	return politeness.New(politeness.Policy{Timeout: time.Second}, nil)
}

func testWindow() release.DateRange {
	return release.LookbackWindow(time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), 60)
}

func TestFetchUsesPrimaryThenFallbackSelectors(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{pages: map[string]string{
		"https://bandcamp.com/discover/toronto":          primaryMarkup,
		"https://bandcamp.com/discover/canadian-hip-hop": fallbackMarkup,
	}}
	adapter := New(Config{
		Targets: []Target{{Tag: "toronto", Locality: "Toronto"}, {Tag: "canadian-hip-hop"}},
		Settle:  10 * time.Millisecond,
	}, renderer, newGovernor(), classify.Default(), nil)

	results := adapter.Fetch(context.Background(), testWindow())

	require.Len(t, results, 2)
	assert.Equal(t, []string{
		"https://bandcamp.com/discover/toronto",
		"https://bandcamp.com/discover/canadian-hip-hop",
	}, renderer.visited, "targets must be visited in declared order")
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 10 * time.Millisecond}, renderer.settles)
	assert.True(t, renderer.closed)

	toronto := results[0]
	require.True(t, toronto.OK())
	require.Len(t, toronto.Releases, 1, "blank titles and denylisted artists are dropped")
	rel := toronto.Releases[0]
	assert.Equal(t, "Haviah Mighty", rel.Artist)
	assert.Equal(t, "Full Circle", rel.Title)
	assert.Equal(t, "ON", rel.Region)
	assert.Equal(t, "Toronto", rel.Locality)
	assert.Empty(t, rel.ReleaseDate)
	assert.Equal(t, release.GenreOther, rel.PrimaryGenre)
	assert.Equal(t, []release.Platform{release.PlatformBandcamp}, rel.Platforms)
	assert.Equal(t, "https://artist.bandcamp.com/album/full-circle", rel.SourceURL)
	assert.Equal(t, "2024-05-10", rel.ObservedAt)

	hipHop := results[1]
	require.True(t, hipHop.OK())
	require.Len(t, hipHop.Releases, 1)
	assert.Equal(t, "Paper Kites", hipHop.Releases[0].Title)
	assert.Equal(t, "Marsh Birds", hipHop.Releases[0].Artist)
	assert.Equal(t, release.GenreHipHop, hipHop.Releases[0].PrimaryGenre)
	assert.Empty(t, hipHop.Releases[0].Region)
	assert.Equal(t, "https://bandcamp.com/album/paper-kites", hipHop.Releases[0].SourceURL)
}

func TestFetchRegionFallsBackToTagText(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{pages: map[string]string{
		"https://bandcamp.com/discover/halifax": fallbackMarkup,
	}}
	adapter := New(Config{Targets: []Target{{Tag: "halifax"}}}, renderer, newGovernor(), classify.Default(), nil)

	results := adapter.Fetch(context.Background(), testWindow())
	require.Len(t, results, 1)
	require.Len(t, results[0].Releases, 1)
	assert.Equal(t, "NS", results[0].Releases[0].Region)
}

func TestFetchSkipsFailedTargetAndContinues(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{
		pages: map[string]string{"https://example.test/b": primaryMarkup},
		fail:  map[string]error{"https://example.test/a": errors.New("navigation timeout")},
	}
	adapter := New(Config{
		URLTemplate: "https://example.test/{tag}",
		Targets:     []Target{{Tag: "a"}, {Tag: "b"}},
	}, renderer, newGovernor(), classify.Default(), nil)

	results := adapter.Fetch(context.Background(), testWindow())
	require.Len(t, results, 2)
	require.False(t, results[0].OK())
	assert.Equal(t, source.KindTransport, results[0].Err.Kind)
	assert.Equal(t, "a", results[0].Err.Unit)
	require.True(t, results[1].OK())
	assert.Len(t, results[1].Releases, 1)
}

func TestFetchReportsSetupFailureWhenSessionCannotOpen(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{openErr: errors.New("chrome not found")}
	adapter := New(Config{}, renderer, newGovernor(), classify.Default(), nil)

	results := adapter.Fetch(context.Background(), testWindow())
	require.Len(t, results, 1)
	require.False(t, results[0].OK())
	assert.Equal(t, source.KindSetup, results[0].Err.Kind)
	assert.ErrorIs(t, results[0].Err, source.ErrSetup)
	assert.Empty(t, results[0].Releases)
}

func TestFetchEmptyPageIsNotAFailure(t *testing.T) {
	t.Parallel()

	renderer := &fakeRenderer{pages: map[string]string{}}
	adapter := New(Config{Targets: []Target{{Tag: "ottawa", Locality: "Ottawa"}}}, renderer, newGovernor(), classify.Default(), nil)

	results := adapter.Fetch(context.Background(), testWindow())
	require.Len(t, results, 1)
	assert.True(t, results[0].OK())
	assert.Empty(t, results[0].Releases)
}

func TestGenreText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hip hop", genreText("canadian-hip-hop"))
	assert.Equal(t, "toronto", genreText("Toronto"))
	assert.Equal(t, "electronic", genreText("canadian-electronic"))
}
