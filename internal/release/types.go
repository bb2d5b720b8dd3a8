// Package release defines the record shapes shared by every stage of the ledger pipeline.
package release

import (
	"strings"
	"time"
)

// DateLayout is the calendar-date layout used for every date field in the artifacts.
const DateLayout = "2006-01-02"

// CountryCanada is the only country code the ledger emits.
const CountryCanada = "CA"

// Genre is a canonical, output-facing genre category.
type Genre string

// Canonical genres. Source tags are always mapped onto one of these.
const (
	GenreHipHop       Genre = "Hip-Hop"
	GenreElectronic   Genre = "Electronic"
	GenreRock         Genre = "Rock"
	GenreMetal        Genre = "Metal"
	GenrePunk         Genre = "Punk"
	GenrePop          Genre = "Pop"
	GenreFolk         Genre = "Folk"
	GenreCountry      Genre = "Country"
	GenreJazz         Genre = "Jazz"
	GenreBlues        Genre = "Blues"
	GenreClassical    Genre = "Classical"
	GenreExperimental Genre = "Experimental"
	GenreRnBSoul      Genre = "R&B / Soul"
	GenreReggae       Genre = "Reggae"
	GenreWorld        Genre = "World"
	GenreOther        Genre = "Other"
)

// Genres lists the canonical enumeration in display order.
var Genres = []Genre{
	GenreHipHop, GenreElectronic, GenreRock, GenreMetal, GenrePunk, GenrePop,
	GenreFolk, GenreCountry, GenreJazz, GenreBlues, GenreClassical,
	GenreExperimental, GenreRnBSoul, GenreReggae, GenreWorld, GenreOther,
}

// Valid reports whether g belongs to the canonical enumeration.
func (g Genre) Valid() bool {
	for _, c := range Genres {
		if g == c {
			return true
		}
	}
	return false
}

// Kind is the release format. Unmappable source values are carried verbatim.
type Kind string

// Known release kinds.
const (
	KindAlbum   Kind = "Album"
	KindSingle  Kind = "Single"
	KindEP      Kind = "EP"
	KindUnknown Kind = "Unknown"
)

// ParseKind maps a source-native type string onto a Kind.
func ParseKind(raw string) Kind {
	trimmed := strings.TrimSpace(raw)
	switch strings.ToLower(trimmed) {
	case "":
		return KindUnknown
	case "album":
		return KindAlbum
	case "single":
		return KindSingle
	case "ep":
		return KindEP
	default:
		return Kind(trimmed)
	}
}

// Platform identifies the source that observed a release.
type Platform string

// Source identifiers in their fixed dispatch order.
const (
	PlatformMusicBrainz Platform = "MusicBrainz"
	PlatformBandcamp    Platform = "Bandcamp"
	PlatformITunes      Platform = "iTunes"
	PlatformLastFM      Platform = "Last.fm"
)

// Release is one candidate or reconciled release record. JSON names follow the
// artifact contract read by the dashboard.
type Release struct {
	Artist          string     `json:"artist"`
	Country         string     `json:"artist_country"`
	Locality        string     `json:"artist_city"`
	Region          string     `json:"artist_province"`
	Title           string     `json:"release_title"`
	Kind            Kind       `json:"release_type"`
	ReleaseDate     string     `json:"release_date"`
	PrimaryGenre    Genre      `json:"primary_genre"`
	SecondaryGenres []Genre    `json:"subgenres"`
	Platforms       []Platform `json:"platforms"`
	Label           string     `json:"label"`
	Independent     bool       `json:"independent"`
	SourceURL       string     `json:"source_url"`
	ObservedAt      string     `json:"date_added"`
}

// Date parses ReleaseDate. ok is false for undated or unparseable values.
func (r Release) Date() (time.Time, bool) {
	return ParseDate(r.ReleaseDate)
}

// Clone returns a deep copy so merges never alias a candidate's slices.
func (r Release) Clone() Release {
	out := r
	out.SecondaryGenres = append([]Genre(nil), r.SecondaryGenres...)
	out.Platforms = append([]Platform(nil), r.Platforms...)
	return out
}

// HasPlatform reports whether p already observed the release.
func (r Release) HasPlatform(p Platform) bool {
	for _, existing := range r.Platforms {
		if existing == p {
			return true
		}
	}
	return false
}

// Tally is the summary artifact recomputed every run.
type Tally struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Last7Days   int            `json:"total_releases_last_7_days"`
	Last30Days  int            `json:"total_releases_last_30_days"`
	ByGenre     map[string]int `json:"by_genre"`
	ByProvince  map[string]int `json:"by_province"`
	Independent int            `json:"independent_count"`
	LabelBacked int            `json:"label_count"`
}

// DateRange is an inclusive calendar window handed to adapters.
type DateRange struct {
	From time.Time
	To   time.Time
}

// LookbackWindow returns the range covering the days before now, inclusive of today.
func LookbackWindow(now time.Time, days int) DateRange {
	today := Day(now)
	return DateRange{From: today.AddDate(0, 0, -days), To: today}
}

// WindowStart is the instant days before now. Dates at midnight UTC on or
// after it fall inside a window of that many days, so the boundary day only
// counts when now is itself midnight.
func WindowStart(now time.Time, days int) time.Time {
	return now.UTC().AddDate(0, 0, -days)
}

// FromDate formats the lower bound as YYYY-MM-DD.
func (d DateRange) FromDate() string { return d.From.Format(DateLayout) }

// ToDate formats the upper bound as YYYY-MM-DD.
func (d DateRange) ToDate() string { return d.To.Format(DateLayout) }

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDay renders t as YYYY-MM-DD in UTC.
func FormatDay(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate accepts full dates, RFC 3339 timestamps, and the partial
// year or year-month dates MusicBrainz returns.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{DateLayout, time.RFC3339, "2006-01", "2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return Day(t), true
		}
	}
	return time.Time{}, false
}
