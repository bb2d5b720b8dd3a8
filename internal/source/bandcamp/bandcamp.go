// Package bandcamp scrapes rendered Bandcamp discover pages for recent releases
// tagged with Canadian localities and genres.
package bandcamp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/canadian-music-ledger/internal/classify"
	"github.com/JakeFAU/canadian-music-ledger/internal/politeness"
	"github.com/JakeFAU/canadian-music-ledger/internal/release"
	"github.com/JakeFAU/canadian-music-ledger/internal/source"
)

// DefaultURLTemplate is expanded with the URL-escaped tag in place of {tag}.
const DefaultURLTemplate = "https://bandcamp.com/discover/{tag}"

// DefaultSettle is the fixed wait after the body is ready.
const DefaultSettle = 4 * time.Second

// Target is one tag page. Locality is an optional hint used for region inference.
type Target struct {
	Tag      string `mapstructure:"tag"`
	Locality string `mapstructure:"locality"`
}

// Selector locates release cards and the fields inside each card.
type Selector struct {
	Card   string `mapstructure:"card"`
	Title  string `mapstructure:"title"`
	Artist string `mapstructure:"artist"`
	Link   string `mapstructure:"link"`
}

// Default selectors. The fallback targets the older tag-page grid markup.
var (
	DefaultPrimary = Selector{
		Card:   "li.results-grid-item",
		Title:  ".meta p strong",
		Artist: ".meta p span",
		Link:   "a",
	}
	DefaultFallback = Selector{
		Card:   "li.item",
		Title:  ".itemtext",
		Artist: ".itemsubtext",
		Link:   "a",
	}
)

// DefaultTargets is the built-in tag list, visited in this order.
var DefaultTargets = []Target{
	{Tag: "toronto", Locality: "Toronto"},
	{Tag: "montreal", Locality: "Montreal"},
	{Tag: "vancouver", Locality: "Vancouver"},
	{Tag: "calgary", Locality: "Calgary"},
	{Tag: "edmonton", Locality: "Edmonton"},
	{Tag: "winnipeg", Locality: "Winnipeg"},
	{Tag: "ottawa", Locality: "Ottawa"},
	{Tag: "halifax", Locality: "Halifax"},
	{Tag: "canadian-hip-hop"},
	{Tag: "canadian-indie"},
	{Tag: "canadian-folk"},
	{Tag: "canadian-electronic"},
}

// Config tunes the adapter.
type Config struct {
	URLTemplate string
	Targets     []Target
	Settle      time.Duration
	Primary     Selector
	Fallback    Selector
}

// Adapter renders each target sequentially through one browser session.
type Adapter struct {
	cfg      Config
	renderer source.Renderer
	governor *politeness.Governor
	tables   *classify.Tables
	logger   *zap.Logger
}

// New constructs the adapter.
func New(cfg Config, renderer source.Renderer, governor *politeness.Governor, tables *classify.Tables, logger *zap.Logger) *Adapter {
	if cfg.URLTemplate == "" {
		cfg.URLTemplate = DefaultURLTemplate
	}
	if len(cfg.Targets) == 0 {
		cfg.Targets = DefaultTargets
	}
	if cfg.Settle < 0 {
		cfg.Settle = 0
	}
	if cfg.Primary.Card == "" {
		cfg.Primary = DefaultPrimary
	}
	if cfg.Fallback.Card == "" {
		cfg.Fallback = DefaultFallback
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		cfg:      cfg,
		renderer: renderer,
		governor: governor,
		tables:   tables,
		logger:   logger.Named("bandcamp"),
	}
}

// Name implements source.Adapter.
func (a *Adapter) Name() release.Platform { return release.PlatformBandcamp }

// Fetch implements source.Adapter. A session that cannot be opened is reported
// as a single setup failure.
func (a *Adapter) Fetch(ctx context.Context, window release.DateRange) []source.Result {
	if a.renderer == nil || a.governor == nil || a.tables == nil {
		return []source.Result{source.Failure(a.Name(), "session", source.KindSetup,
			errors.New("bandcamp adapter is missing dependencies"), nil)}
	}
	session, err := a.renderer.Open(ctx)
	if err != nil {
		return []source.Result{source.Failure(a.Name(), "session", source.KindSetup,
			fmt.Errorf("open renderer session: %w", err), nil)}
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			a.logger.Warn("closing renderer session", zap.Error(cerr))
		}
	}()

	observed := window.ToDate()
	results := make([]source.Result, 0, len(a.cfg.Targets))
	for _, target := range a.cfg.Targets {
		if ctx.Err() != nil {
			results = append(results, source.Failure(a.Name(), target.Tag, source.KindTransport, ctx.Err(), nil))
			break
		}
		results = append(results, a.fetchTarget(ctx, session, target, observed))
	}
	return results
}

func (a *Adapter) fetchTarget(ctx context.Context, session source.Session, target Target, observed string) source.Result {
	pageURL := a.targetURL(target.Tag)
	var html string
	err := a.governor.Do(ctx, string(a.Name()), func(ctx context.Context) error {
		var renderErr error
		html, renderErr = session.Render(ctx, pageURL, a.cfg.Settle)
		return renderErr
	})
	if err != nil {
		return source.Failure(a.Name(), target.Tag, source.KindTransport, err, nil)
	}

	cards, err := a.extractCards(html, pageURL)
	if err != nil {
		return source.Failure(a.Name(), target.Tag, source.KindParse, err, nil)
	}
	if len(cards) == 0 {
		a.logger.Warn("no cards matched either selector", zap.String("tag", target.Tag))
	}

	region := a.tables.InferRegion(target.Locality)
	if region == "" {
		region = a.tables.InferRegion(tagText(target.Tag))
	}
	genre := a.tables.NormalizeGenre(genreText(target.Tag))

	out := make([]release.Release, 0, len(cards))
	for _, c := range cards {
		if a.tables.IsDenied(c.artist) {
			continue
		}
		out = append(out, release.Release{
			Artist:          c.artist,
			Country:         release.CountryCanada,
			Locality:        target.Locality,
			Region:          region,
			Title:           c.title,
			Kind:            release.KindUnknown,
			PrimaryGenre:    genre,
			SecondaryGenres: []release.Genre{},
			Platforms:       []release.Platform{release.PlatformBandcamp},
			Independent:     true,
			SourceURL:       c.link,
			ObservedAt:      observed,
		})
	}
	return source.Success(target.Tag, out)
}

func (a *Adapter) targetURL(tag string) string {
	return strings.ReplaceAll(a.cfg.URLTemplate, "{tag}", url.PathEscape(tag))
}

type card struct {
	title  string
	artist string
	link   string
}

// extractCards applies the primary selector and, when it yields nothing, the fallback.
func (a *Adapter) extractCards(html, pageURL string) ([]card, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse rendered page: %w", err)
	}
	base, _ := url.Parse(pageURL)
	cards := selectCards(doc, a.cfg.Primary, base)
	if len(cards) == 0 {
		cards = selectCards(doc, a.cfg.Fallback, base)
	}
	return cards, nil
}

func selectCards(doc *goquery.Document, sel Selector, base *url.URL) []card {
	var out []card
	doc.Find(sel.Card).Each(func(_ int, s *goquery.Selection) {
		c := card{
			title:  cleanText(s.Find(sel.Title).First().Text()),
			artist: strings.TrimPrefix(cleanText(s.Find(sel.Artist).First().Text()), "by "),
		}
		if c.title == "" || c.artist == "" {
			return
		}
		if href, ok := s.Find(sel.Link).First().Attr("href"); ok {
			c.link = resolveLink(base, href)
		}
		out = append(out, c)
	})
	return out
}

func resolveLink(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func tagText(tag string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(tag)), "-", " ")
}

// genreText turns a tag such as "canadian-hip-hop" into "hip hop".
func genreText(tag string) string {
	return strings.TrimPrefix(tagText(tag), "canadian ")
}
