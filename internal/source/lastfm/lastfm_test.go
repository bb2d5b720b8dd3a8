package lastfm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/canadian-music-ledger/internal/classify"
	collyfetcher "github.com/JakeFAU/canadian-music-ledger/internal/fetcher/colly"
	"github.com/JakeFAU/canadian-music-ledger/internal/politeness"
	"github.com/JakeFAU/canadian-music-ledger/internal/release"
	"github.com/JakeFAU/canadian-music-ledger/internal/source"
)

func testWindow() release.DateRange {
	return release.LookbackWindow(time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), 60)
}

func newAdapter(baseURL string, cfg Config) *Adapter {
	cfg.BaseURL = baseURL
	return New(cfg,
		collyfetcher.New(collyfetcher.Config{Timeout: time.Second}),
		politeness.New(politeness.Policy{Timeout: 5 * time.Second}, nil),
		classify.Default(), nil)
}

func TestFetchWithoutKeyIsSetupFailure(t *testing.T) {
	t.Parallel()

	adapter := New(Config{}, nil, nil, nil, nil)
	require.False(t, Config{APIKey: "  "}.Enabled())
	results := adapter.Fetch(context.Background(), testWindow())
	require.Len(t, results, 1)
	assert.Equal(t, source.KindSetup, results[0].Err.Kind)
	assert.True(t, errors.Is(results[0].Err, ErrNoAPIKey))
}

func TestFetchLooksUpAlbumsPerArtist(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("api_key") != "secret" || q.Get("format") != "json" {
			http.Error(w, "bad key", http.StatusForbidden)
			return
		}
		switch q.Get("method") {
		case "geo.gettopartists":
			assert.Equal(t, "Canada", q.Get("country"))
			_, _ = w.Write([]byte(`{"topartists":{"artist":[
				{"name":"Drake"},{"name":"Foo Fighters"},{"name":"Broken Social Scene"},{"name":"Feist"},{"name":"Beyond Limit"}]}}`))
		case "artist.gettopalbums":
			switch q.Get("artist") {
			case "Drake":
				_, _ = w.Write([]byte(`{"topalbums":{"album":[
					{"name":"Views","url":"https://www.last.fm/music/Drake/Views"},
					{"name":"(null)"},
					{"name":"views"}]}}`))
			case "Broken Social Scene":
				_, _ = w.Write([]byte(`{"error":6,"message":"The artist you supplied could not be found"}`))
			case "Feist":
				_, _ = w.Write([]byte(`{"topalbums":{"album":[{"name":"Multitudes"}]}}`))
			default:
				t.Errorf("unexpected artist lookup %q", q.Get("artist"))
			}
		}
	}))
	defer srv.Close()

	results := newAdapter(srv.URL, Config{APIKey: "secret", ArtistLimit: 4}).Fetch(context.Background(), testWindow())

	// listing, Drake, Broken Social Scene, Feist; Foo Fighters is denylisted.
	require.Len(t, results, 4)
	require.True(t, results[0].OK())
	require.True(t, results[1].OK())
	require.Len(t, results[1].Releases, 1, "(null) and case-duplicate titles are dropped")
	views := results[1].Releases[0]
	assert.Equal(t, "Drake", views.Artist)
	assert.Equal(t, "Views", views.Title)
	assert.Empty(t, views.ReleaseDate)
	assert.Equal(t, release.KindAlbum, views.Kind)
	assert.Equal(t, release.GenreOther, views.PrimaryGenre)
	assert.Equal(t, []release.Platform{release.PlatformLastFM}, views.Platforms)
	assert.Equal(t, "https://www.last.fm/music/Drake/Views", views.SourceURL)

	require.False(t, results[2].OK())
	assert.Equal(t, "Broken Social Scene", results[2].Err.Unit)
	require.True(t, results[3].OK())
	assert.Equal(t, "Multitudes", results[3].Releases[0].Title)
}

func TestFetchListingFailureEndsRun(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	results := newAdapter(srv.URL, Config{APIKey: "secret"}).Fetch(context.Background(), testWindow())
	require.Len(t, results, 1)
	assert.Equal(t, source.KindParse, results[0].Err.Kind)
}

func TestFetchSkipsMalformedListingElements(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch q.Get("method") {
		case "geo.gettopartists":
			_, _ = w.Write([]byte(`{"topartists":{"artist":[{"name":"Feist"},{"name":12345},{"name":"Drake"}]}}`))
		case "artist.gettopalbums":
			switch q.Get("artist") {
			case "Feist":
				_, _ = w.Write([]byte(`{"topalbums":{"album":{"name":"Metals"}}}`))
			case "Drake":
				_, _ = w.Write([]byte(`{"topalbums":{"album":[{"name":"Views"},{"name":["Scorpion"]},{"name":"Nothing Was the Same"}]}}`))
			default:
				t.Errorf("unexpected artist lookup %q", q.Get("artist"))
			}
		}
	}))
	defer srv.Close()

	results := newAdapter(srv.URL, Config{APIKey: "secret"}).Fetch(context.Background(), testWindow())

	// listing, Feist, Drake; the numeric artist name is skipped.
	require.Len(t, results, 3)
	for _, res := range results {
		require.True(t, res.OK())
	}
	require.Len(t, results[1].Releases, 1)
	assert.Equal(t, "Metals", results[1].Releases[0].Title)
	require.Len(t, results[2].Releases, 2)
	assert.Equal(t, "Views", results[2].Releases[0].Title)
	assert.Equal(t, "Nothing Was the Same", results[2].Releases[1].Title)
}
