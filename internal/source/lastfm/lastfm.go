// Package lastfm discovers albums by popular Canadian artists through the
// Last.fm API. It only runs when an API key is configured.
package lastfm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/canadian-music-ledger/internal/classify"
	"github.com/JakeFAU/canadian-music-ledger/internal/politeness"
	"github.com/JakeFAU/canadian-music-ledger/internal/release"
	"github.com/JakeFAU/canadian-music-ledger/internal/source"
)

// Defaults applied when Config leaves a field unset.
const (
	DefaultBaseURL     = "https://ws.audioscrobbler.com/2.0/"
	DefaultTopArtists  = 100
	DefaultArtistLimit = 50
	DefaultAlbumLimit  = 5
)

// ErrNoAPIKey is the setup failure reported when the adapter is invoked without a key.
var ErrNoAPIKey = errors.New("lastfm api key not configured")

// Config tunes the adapter.
type Config struct {
	APIKey      string
	BaseURL     string
	TopArtists  int
	ArtistLimit int
	AlbumLimit  int
}

// Enabled reports whether the adapter should be registered.
func (c Config) Enabled() bool { return strings.TrimSpace(c.APIKey) != "" }

// Adapter looks up top albums for each top Canadian artist.
type Adapter struct {
	cfg      Config
	fetcher  source.Fetcher
	governor *politeness.Governor
	tables   *classify.Tables
	logger   *zap.Logger
}

// New constructs the adapter.
func New(cfg Config, fetcher source.Fetcher, governor *politeness.Governor, tables *classify.Tables, logger *zap.Logger) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TopArtists <= 0 {
		cfg.TopArtists = DefaultTopArtists
	}
	if cfg.ArtistLimit <= 0 {
		cfg.ArtistLimit = DefaultArtistLimit
	}
	if cfg.AlbumLimit <= 0 {
		cfg.AlbumLimit = DefaultAlbumLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{cfg: cfg, fetcher: fetcher, governor: governor, tables: tables, logger: logger.Named("lastfm")}
}

// Name implements source.Adapter.
func (a *Adapter) Name() release.Platform { return release.PlatformLastFM }

// Fetch implements source.Adapter. The artist listing and each artist lookup
// are separate units of work; a failed listing leaves nothing to look up.
func (a *Adapter) Fetch(ctx context.Context, window release.DateRange) []source.Result {
	if !a.cfg.Enabled() {
		return []source.Result{source.Failure(a.Name(), "setup", source.KindSetup, ErrNoAPIKey, nil)}
	}
	if a.fetcher == nil || a.governor == nil || a.tables == nil {
		return []source.Result{source.Failure(a.Name(), "setup", source.KindSetup,
			errors.New("lastfm adapter is missing dependencies"), nil)}
	}

	var top topArtistsResponse
	unit := "geo.gettopartists"
	if kind, err := a.call(ctx, url.Values{
		"method":  {"geo.gettopartists"},
		"country": {"Canada"},
		"limit":   {strconv.Itoa(a.cfg.TopArtists)},
	}, &top); err != nil {
		return []source.Result{source.Failure(a.Name(), unit, kind, err, nil)}
	}
	artists := top.TopArtists.Artists
	a.logger.Debug("top artists listed", zap.Int("artists", len(artists)))
	if len(artists) > a.cfg.ArtistLimit {
		artists = artists[:a.cfg.ArtistLimit]
	}

	observed := window.ToDate()
	seen := make(map[string]struct{})
	results := []source.Result{source.Success(unit, nil)}
	for i, raw := range artists {
		var artist topArtist
		if err := json.Unmarshal(raw, &artist); err != nil {
			a.logger.Warn("skipping malformed artist", zap.Int("index", i), zap.Error(err))
			continue
		}
		name := strings.TrimSpace(artist.Name)
		if name == "" || a.tables.IsDenied(name) {
			continue
		}
		if ctx.Err() != nil {
			results = append(results, source.Failure(a.Name(), name, source.KindTransport, ctx.Err(), nil))
			break
		}
		results = append(results, a.fetchArtist(ctx, name, observed, seen))
	}
	return results
}

func (a *Adapter) fetchArtist(ctx context.Context, artist, observed string, seen map[string]struct{}) source.Result {
	var albums topAlbumsResponse
	if kind, err := a.call(ctx, url.Values{
		"method": {"artist.gettopalbums"},
		"artist": {artist},
		"limit":  {strconv.Itoa(a.cfg.AlbumLimit)},
	}, &albums); err != nil {
		return source.Failure(a.Name(), artist, kind, err, nil)
	}

	var out []release.Release
	for i, raw := range albums.TopAlbums.Albums {
		var album topAlbum
		if err := json.Unmarshal(raw, &album); err != nil {
			a.logger.Warn("skipping malformed album", zap.String("artist", artist), zap.Int("index", i), zap.Error(err))
			continue
		}
		title := strings.TrimSpace(album.Name)
		if title == "" || title == "(null)" {
			continue
		}
		key := strings.ToLower(artist + "||" + title)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, release.Release{
			Artist:          artist,
			Country:         release.CountryCanada,
			Title:           title,
			Kind:            release.KindAlbum,
			PrimaryGenre:    release.GenreOther,
			SecondaryGenres: []release.Genre{},
			Platforms:       []release.Platform{release.PlatformLastFM},
			Independent:     true,
			SourceURL:       album.URL,
			ObservedAt:      observed,
		})
	}
	return source.Success(artist, out)
}

// call performs one paced API request and decodes the JSON body into out.
func (a *Adapter) call(ctx context.Context, params url.Values, out any) (source.ErrorKind, error) {
	params.Set("api_key", a.cfg.APIKey)
	params.Set("format", "json")
	req := source.FetchRequest{URL: a.cfg.BaseURL, Query: params}

	var resp source.FetchResponse
	err := a.governor.Do(ctx, string(a.Name()), func(ctx context.Context) error {
		var fetchErr error
		resp, fetchErr = a.fetcher.Fetch(ctx, req)
		return fetchErr
	})
	if err != nil {
		return source.KindTransport, fmt.Errorf("%s: %w", params.Get("method"), err)
	}

	var apiErr apiError
	if json.Unmarshal(resp.Body, &apiErr) == nil && apiErr.Code != 0 {
		return source.KindTransport, fmt.Errorf("%s: api error %d: %s", params.Get("method"), apiErr.Code, apiErr.Message)
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return source.KindParse, fmt.Errorf("decode %s: %w", params.Get("method"), err)
	}
	return "", nil
}

type apiError struct {
	Code    int    `json:"error"`
	Message string `json:"message"`
}

// Listings keep their elements undecoded so one bad element only costs itself.
type topArtistsResponse struct {
	TopArtists struct {
		Artists rawList `json:"artist"`
	} `json:"topartists"`
}

type topAlbumsResponse struct {
	TopAlbums struct {
		Albums rawList `json:"album"`
	} `json:"topalbums"`
}

type topArtist struct {
	Name string `json:"name"`
}

type topAlbum struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// rawList accepts an array or, for one-element listings, a bare object.
type rawList []json.RawMessage

func (l *rawList) UnmarshalJSON(data []byte) error {
	if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		*l = rawList{json.RawMessage(append([]byte(nil), data...))}
		return nil
	}
	var many []json.RawMessage
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}
