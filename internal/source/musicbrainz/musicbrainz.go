// Package musicbrainz adapts the MusicBrainz release search API into ledger
// candidates.
package musicbrainz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
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
	DefaultBaseURL    = "https://musicbrainz.org/ws/2/release"
	DefaultPageSize   = 100
	DefaultMaxRecords = 500
	releaseURLPrefix  = "https://musicbrainz.org/release/"
)

// Config tunes the adapter.
type Config struct {
	BaseURL    string
	UserAgent  string
	PageSize   int
	MaxRecords int
}

// Adapter pages through releases by Canadian artists dated inside the window.
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
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxRecords <= 0 {
		cfg.MaxRecords = DefaultMaxRecords
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		cfg:      cfg,
		fetcher:  fetcher,
		governor: governor,
		tables:   tables,
		logger:   logger.Named("musicbrainz"),
	}
}

// Name implements source.Adapter.
func (a *Adapter) Name() release.Platform { return release.PlatformMusicBrainz }

// Fetch implements source.Adapter. Each page is one unit of work; a failed page
// ends pagination because the offset cursor can no longer be trusted.
func (a *Adapter) Fetch(ctx context.Context, window release.DateRange) []source.Result {
	if a.fetcher == nil || a.governor == nil || a.tables == nil {
		return []source.Result{source.Failure(a.Name(), "setup", source.KindSetup,
			errors.New("musicbrainz adapter is missing dependencies"), nil)}
	}

	query := fmt.Sprintf("artistcountry:CA AND date:[%s TO %s]", window.FromDate(), window.ToDate())
	observed := window.ToDate()

	var (
		results []source.Result
		offset  int
		total   = -1
	)
	for total < 0 || offset < total {
		unit := "offset=" + strconv.Itoa(offset)
		page, err := a.fetchPage(ctx, query, offset)
		if err != nil {
			kind := source.KindTransport
			var perr *parseError
			if errors.As(err, &perr) {
				kind = source.KindParse
			}
			results = append(results, source.Failure(a.Name(), unit, kind, err, nil))
			break
		}
		if total < 0 {
			total = min(page.Count, a.cfg.MaxRecords)
		}
		if len(page.Releases) == 0 {
			break
		}
		results = append(results, source.Success(unit, a.convertPage(page.Releases, observed)))
		offset += len(page.Releases)
	}

	a.logger.Debug("pagination finished", zap.Int("offset", offset), zap.Int("total", total))
	return results
}

type parseError struct{ err error }

func (e *parseError) Error() string { return e.err.Error() }
func (e *parseError) Unwrap() error { return e.err }

func (a *Adapter) fetchPage(ctx context.Context, query string, offset int) (searchPage, error) {
	req := source.FetchRequest{
		URL: a.cfg.BaseURL,
		Query: url.Values{
			"query":  {query},
			"limit":  {strconv.Itoa(a.cfg.PageSize)},
			"offset": {strconv.Itoa(offset)},
			"fmt":    {"json"},
		},
		Headers: http.Header{"Accept": {"application/json"}},
	}
	if a.cfg.UserAgent != "" {
		req.Headers.Set("User-Agent", a.cfg.UserAgent)
	}

	var resp source.FetchResponse
	err := a.governor.Do(ctx, string(a.Name()), func(ctx context.Context) error {
		var fetchErr error
		resp, fetchErr = a.fetcher.Fetch(ctx, req)
		return fetchErr
	})
	if err != nil {
		return searchPage{}, fmt.Errorf("fetch page: %w", err)
	}

	var page searchPage
	if err := json.Unmarshal(resp.Body, &page); err != nil {
		return searchPage{}, &parseError{err: fmt.Errorf("decode page: %w", err)}
	}
	return page, nil
}

// convertPage decodes records one by one so a malformed record only costs itself.
func (a *Adapter) convertPage(raw []json.RawMessage, observed string) []release.Release {
	out := make([]release.Release, 0, len(raw))
	for _, item := range raw {
		var rec releaseRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			a.logger.Warn("skipping malformed record", zap.Error(err))
			continue
		}
		rel, ok := a.convert(rec, observed)
		if !ok {
			continue
		}
		out = append(out, rel)
	}
	return out
}

func (a *Adapter) convert(rec releaseRecord, observed string) (release.Release, bool) {
	artist := strings.TrimSpace(rec.artistName())
	title := strings.TrimSpace(rec.Title)
	if artist == "" || title == "" {
		a.logger.Debug("skipping record without artist or title", zap.String("id", rec.ID))
		return release.Release{}, false
	}
	if a.tables.IsDenied(artist) {
		return release.Release{}, false
	}

	var label string
	if len(rec.LabelInfo) > 0 && rec.LabelInfo[0].Label != nil {
		label = strings.TrimSpace(rec.LabelInfo[0].Label.Name)
	}
	var area string
	if len(rec.ReleaseEvents) > 0 && rec.ReleaseEvents[0].Area != nil {
		area = strings.TrimSpace(rec.ReleaseEvents[0].Area.Name)
	}
	locality := area
	if strings.EqualFold(area, "Canada") {
		locality = ""
	}
	kind := release.KindUnknown
	if rec.ReleaseGroup != nil {
		kind = release.ParseKind(rec.ReleaseGroup.PrimaryType)
	}
	primary, secondary := a.tables.ClassifyTags(rec.tagNames())

	return release.Release{
		Artist:          artist,
		Country:         release.CountryCanada,
		Locality:        locality,
		Region:          a.tables.InferRegion(area),
		Title:           title,
		Kind:            kind,
		ReleaseDate:     rec.Date,
		PrimaryGenre:    primary,
		SecondaryGenres: secondary,
		Platforms:       []release.Platform{release.PlatformMusicBrainz},
		Label:           label,
		Independent:     a.tables.IsIndependent(label),
		SourceURL:       releaseURLPrefix + rec.ID,
		ObservedAt:      observed,
	}, true
}
