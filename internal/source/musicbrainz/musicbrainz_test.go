package musicbrainz

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
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

const firstPage = `{
  "count": 250,
  "offset": 0,
  "releases": [
    {
      "id": "a1",
      "title": "Flower City",
      "date": "2024-05-03",
      "artist-credit": [{"name": "Haviah Mighty", "joinphrase": " & "}, {"artist": {"name": "Guest"}}],
      "label-info": [{"label": {"name": "Sub Pop"}}],
      "tags": [{"name": "hip hop"}, {"name": "trap"}],
      "release-group": {"primary-type": "Album", "tags": [{"name": "hip hop"}, {"name": "soul"}]},
      "release-events": [{"area": {"name": "Greater Toronto Area"}}]
    },
    {"id": "broken", "title": 42}
  ]
}`

const secondPage = `{
  "count": 250,
  "offset": 2,
  "releases": [
    {
      "id": "b1",
      "title": "Wasting Light",
      "artist-credit": [{"name": "Foo Fighters"}],
      "release-events": [{"area": {"name": "Canada"}}]
    }
  ]
}`

func newTestAdapter(t *testing.T, baseURL string, cfg Config) *Adapter {
	t.Helper()
	cfg.BaseURL = baseURL
	gov := politeness.New(politeness.Policy{Timeout: 5 * time.Second}, nil)
	fetcher := collyfetcher.New(collyfetcher.Config{Timeout: 5 * time.Second})
	return New(cfg, fetcher, gov, classify.Default(), nil)
}

func testWindow() release.DateRange {
	return release.LookbackWindow(time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC), 60)
}

func TestFetchPaginatesUpToMaxRecords(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	var gotQuery, gotAgent atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gotQuery.Store(r.URL.Query().Get("query"))
		gotAgent.Store(r.UserAgent())
		switch r.URL.Query().Get("offset") {
		case "0":
			_, _ = w.Write([]byte(firstPage))
		case "2":
			_, _ = w.Write([]byte(secondPage))
		default:
			http.Error(w, "unexpected offset", http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	adapter := newTestAdapter(t, srv.URL, Config{UserAgent: "ledger-test/1.0 (ops@example.com)", PageSize: 2, MaxRecords: 3})
	results := adapter.Fetch(context.Background(), testWindow())

	require.Len(t, results, 2)
	require.True(t, results[0].OK())
	require.True(t, results[1].OK())
	assert.Equal(t, "offset=0", results[0].Unit)
	assert.Empty(t, results[1].Releases, "denylisted artist must be dropped")
	assert.EqualValues(t, 2, hits.Load())
	assert.Equal(t, "artistcountry:CA AND date:[2024-03-11 TO 2024-05-10]", gotQuery.Load())
	assert.Equal(t, "ledger-test/1.0 (ops@example.com)", gotAgent.Load())

	require.Len(t, results[0].Releases, 1)
	rel := results[0].Releases[0]
	assert.Equal(t, "Haviah Mighty & Guest", rel.Artist)
	assert.Equal(t, "Flower City", rel.Title)
	assert.Equal(t, "ON", rel.Region)
	assert.Equal(t, "Greater Toronto Area", rel.Locality)
	assert.Equal(t, release.KindAlbum, rel.Kind)
	assert.Equal(t, release.GenreHipHop, rel.PrimaryGenre)
	assert.Equal(t, []release.Genre{release.GenreRnBSoul}, rel.SecondaryGenres)
	assert.Equal(t, "Sub Pop", rel.Label)
	assert.False(t, rel.Independent)
	assert.Equal(t, []release.Platform{release.PlatformMusicBrainz}, rel.Platforms)
	assert.Equal(t, "https://musicbrainz.org/release/a1", rel.SourceURL)
	assert.Equal(t, "2024-05-10", rel.ObservedAt)
	assert.Equal(t, release.CountryCanada, rel.Country)
}

func TestFetchStopsOnFailedPage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "0" {
			_, _ = w.Write([]byte(firstPage))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	adapter := newTestAdapter(t, srv.URL, Config{PageSize: 2, MaxRecords: 10})
	results := adapter.Fetch(context.Background(), testWindow())

	require.Len(t, results, 2)
	require.True(t, results[0].OK())
	require.Len(t, results[0].Releases, 1)
	require.False(t, results[1].OK())
	assert.Equal(t, source.KindTransport, results[1].Err.Kind)
	assert.Equal(t, "offset=2", results[1].Err.Unit)
}

func TestFetchReportsParseFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	results := newTestAdapter(t, srv.URL, Config{}).Fetch(context.Background(), testWindow())
	require.Len(t, results, 1)
	require.False(t, results[0].OK())
	assert.Equal(t, source.KindParse, results[0].Err.Kind)
}

func TestFetchWithoutDependenciesIsSetupFailure(t *testing.T) {
	t.Parallel()

	results := New(Config{}, nil, nil, nil, nil).Fetch(context.Background(), testWindow())
	require.Len(t, results, 1)
	assert.Equal(t, source.KindSetup, results[0].Err.Kind)
	assert.ErrorIs(t, results[0].Err, source.ErrSetup)
}

func TestArtistCreditAcceptsBareStrings(t *testing.T) {
	t.Parallel()

	adapter := New(Config{}, nil, nil, classify.Default(), nil)
	out := adapter.convertPage([]json.RawMessage{
		[]byte(`{"id":"x","title":"Split","artist-credit":[{"name":"A"}," x ",{"artist":{"name":"B"}}]}`),
	}, "2024-05-10")
	require.Len(t, out, 1)
	assert.Equal(t, "A x B", out[0].Artist)
	assert.Equal(t, release.KindUnknown, out[0].Kind)
	assert.True(t, out[0].Independent)
	assert.Equal(t, release.GenreOther, out[0].PrimaryGenre)
	assert.NotNil(t, out[0].SecondaryGenres)
}
