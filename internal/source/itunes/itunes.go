// Package itunes reads the iTunes Store RSS JSON feeds for the Canadian storefront.
package itunes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/canadian-music-ledger/internal/classify"
	"github.com/JakeFAU/canadian-music-ledger/internal/politeness"
	"github.com/JakeFAU/canadian-music-ledger/internal/release"
	"github.com/JakeFAU/canadian-music-ledger/internal/source"
)

// DefaultFeeds are polled in this order.
var DefaultFeeds = []string{
	"https://itunes.apple.com/ca/rss/topalbums/limit=100/json",
	"https://itunes.apple.com/ca/rss/newmusic/limit=100/json",
}

// Config tunes the adapter.
type Config struct {
	Feeds []string
}

// Adapter turns feed entries into dated album candidates.
type Adapter struct {
	cfg      Config
	fetcher  source.Fetcher
	governor *politeness.Governor
	tables   *classify.Tables
	logger   *zap.Logger
}

// New constructs the adapter.
func New(cfg Config, fetcher source.Fetcher, governor *politeness.Governor, tables *classify.Tables, logger *zap.Logger) *Adapter {
	if len(cfg.Feeds) == 0 {
		cfg.Feeds = DefaultFeeds
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{cfg: cfg, fetcher: fetcher, governor: governor, tables: tables, logger: logger.Named("itunes")}
}

// Name implements source.Adapter.
func (a *Adapter) Name() release.Platform { return release.PlatformITunes }

// Fetch implements source.Adapter. Each feed is one unit of work.
func (a *Adapter) Fetch(ctx context.Context, window release.DateRange) []source.Result {
	if a.fetcher == nil || a.governor == nil || a.tables == nil {
		return []source.Result{source.Failure(a.Name(), "setup", source.KindSetup,
			errors.New("itunes adapter is missing dependencies"), nil)}
	}
	observed := window.ToDate()
	results := make([]source.Result, 0, len(a.cfg.Feeds))
	for _, feedURL := range a.cfg.Feeds {
		results = append(results, a.fetchFeed(ctx, feedURL, observed))
	}
	return results
}

func (a *Adapter) fetchFeed(ctx context.Context, feedURL, observed string) source.Result {
	var resp source.FetchResponse
	err := a.governor.Do(ctx, string(a.Name()), func(ctx context.Context) error {
		var fetchErr error
		resp, fetchErr = a.fetcher.Fetch(ctx, source.FetchRequest{URL: feedURL})
		return fetchErr
	})
	if err != nil {
		return source.Failure(a.Name(), feedURL, source.KindTransport, err, nil)
	}

	var doc feedDocument
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return source.Failure(a.Name(), feedURL, source.KindParse, fmt.Errorf("decode feed: %w", err), nil)
	}
	a.logger.Debug("feed decoded", zap.String("feed", feedURL), zap.Int("entries", len(doc.Feed.Entries)))

	out := make([]release.Release, 0, len(doc.Feed.Entries))
	for i, raw := range doc.Feed.Entries {
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			a.logger.Warn("skipping malformed entry", zap.String("feed", feedURL), zap.Int("index", i), zap.Error(err))
			continue
		}
		title := strings.TrimSpace(e.Name.Label)
		artist := strings.TrimSpace(e.Artist.Label)
		if title == "" || artist == "" || a.tables.IsDenied(artist) {
			continue
		}
		date, _, _ := strings.Cut(strings.TrimSpace(e.ReleaseDate.Label), "T")
		out = append(out, release.Release{
			Artist:          artist,
			Country:         release.CountryCanada,
			Title:           title,
			Kind:            release.KindAlbum,
			ReleaseDate:     date,
			PrimaryGenre:    a.tables.NormalizeGenre(e.Category.Attributes.Label),
			SecondaryGenres: []release.Genre{},
			Platforms:       []release.Platform{release.PlatformITunes},
			Independent:     a.tables.IsIndependent(""),
			SourceURL:       e.Link.href(),
			ObservedAt:      observed,
		})
	}
	return source.Success(feedURL, out)
}

type feedDocument struct {
	Feed struct {
		Entries entryList `json:"entry"`
	} `json:"feed"`
}

type labelled struct {
	Label string `json:"label"`
}

type entry struct {
	Name        labelled  `json:"im:name"`
	Artist      labelled  `json:"im:artist"`
	ReleaseDate labelled  `json:"im:releaseDate"`
	Link        entryLink `json:"link"`
	Category    struct {
		Attributes struct {
			Label string `json:"label"`
		} `json:"attributes"`
	} `json:"category"`
}

type linkAttrs struct {
	Attributes struct {
		Href string `json:"href"`
	} `json:"attributes"`
}

// entryLink is a single link object or, for some entries, an array of them.
type entryLink []linkAttrs

func (l *entryLink) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var many []linkAttrs
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*l = many
		return nil
	}
	var one linkAttrs
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*l = entryLink{one}
	return nil
}

func (l entryLink) href() string {
	for _, link := range l {
		if link.Attributes.Href != "" {
			return link.Attributes.Href
		}
	}
	return ""
}

// entryList holds each entry undecoded so one bad entry cannot sink the feed.
// Feeds with a single entry encode it as an object.
type entryList []json.RawMessage

func (l *entryList) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		*l = entryList{json.RawMessage(append([]byte(nil), data...))}
		return nil
	}
	var many []json.RawMessage
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}
