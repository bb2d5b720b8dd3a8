// Package classify holds the static lookup tables used to normalize source records:
// free-text genre tags, locality names, label placeholders, and the artist denylist.
//
// A Tables value is immutable after construction and safe for concurrent reads,
// so one instance is shared by every adapter in a run.
package classify

import (
	"strings"

	"github.com/JakeFAU/canadian-music-ledger/internal/release"
)

// MaxSecondaryGenres bounds the subgenre list carried on a release.
const MaxSecondaryGenres = 3

// Tables is the read-only classification data injected into adapters.
type Tables struct {
	genres      map[string]release.Genre
	localities  []localityEntry
	localityIdx map[string]string
	regionNames map[string]string
	noLabel     map[string]struct{}
	denylist    map[string]struct{}
}

type localityEntry struct {
	name   string
	region string
}

// Default builds the tables from the built-in data.
func Default() *Tables {
	t := &Tables{
		genres:      make(map[string]release.Genre, len(genreAliases)),
		localityIdx: make(map[string]string, len(localityRegions)),
		regionNames: make(map[string]string, len(regionDisplayNames)),
		noLabel:     make(map[string]struct{}, len(noLabelPlaceholders)),
		denylist:    make(map[string]struct{}, len(defaultDenylist)),
	}
	for _, alias := range genreAliases {
		t.genres[alias.tag] = alias.genre
	}
	for _, entry := range localityRegions {
		t.localities = append(t.localities, entry)
		t.localityIdx[entry.name] = entry.region
	}
	for code, name := range regionDisplayNames {
		t.regionNames[code] = name
	}
	for _, placeholder := range noLabelPlaceholders {
		t.noLabel[placeholder] = struct{}{}
	}
	for _, name := range defaultDenylist {
		t.denylist[NormalizeName(name)] = struct{}{}
	}
	return t
}

// WithDenylist returns a copy of t whose denylist also contains names.
func (t *Tables) WithDenylist(names ...string) *Tables {
	out := *t
	out.denylist = make(map[string]struct{}, len(t.denylist)+len(names))
	for k := range t.denylist {
		out.denylist[k] = struct{}{}
	}
	for _, name := range names {
		key := NormalizeName(name)
		if key == "" {
			continue
		}
		out.denylist[key] = struct{}{}
	}
	return &out
}

// NormalizeName lowercases, trims, and collapses internal whitespace.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// IsDenied reports whether artist is on the denylist of known country-filter mismatches.
func (t *Tables) IsDenied(artist string) bool {
	_, ok := t.denylist[NormalizeName(artist)]
	return ok
}
