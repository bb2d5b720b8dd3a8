// Package reconcile deduplicates candidates observed by several sources into one
// record per release and applies the lookback admission filter.
package reconcile

import (
	"slices"
	"strings"
	"time"

	"github.com/JakeFAU/canadian-music-ledger/internal/release"
)

// Key is the identity of a release: normalized artist and title. The release
// date is not part of the key, so one release seen with and without a date
// merges, and two distinct same-titled releases by one artist collapse.
func Key(artist, title string) string {
	return normalize(artist) + "||" + normalize(title)
}

// KeyOf returns the identity key of r.
func KeyOf(r release.Release) string { return Key(r.Artist, r.Title) }

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Reconcile merges candidates sharing a key using the Policies table. The first
// candidate with a key fixes the record's position and its first-seen fields.
// The result is sorted newest first with undated records last; ties keep
// first-seen order. Candidates are not modified.
func Reconcile(candidates []release.Release) []release.Release {
	index := make(map[string]int, len(candidates))
	out := make([]release.Release, 0, len(candidates))
	for _, c := range candidates {
		key := KeyOf(c)
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			rec := c.Clone()
			if rec.PrimaryGenre == "" {
				rec.PrimaryGenre = release.GenreOther
			}
			out = append(out, rec)
			continue
		}
		for _, p := range Policies {
			p.Apply(&out[i], c)
		}
	}
	SortNewestFirst(out)
	return out
}

// SortNewestFirst orders releases by date descending. Undated and unparseable
// dates sort last; the sort is stable.
func SortNewestFirst(releases []release.Release) {
	slices.SortStableFunc(releases, func(a, b release.Release) int {
		da, okA := a.Date()
		db, okB := b.Date()
		switch {
		case okA && okB:
			return db.Compare(da)
		case okA:
			return -1
		case okB:
			return 1
		default:
			return 0
		}
	})
}

// FilterByAge keeps records dated on or after now minus days. Undated and
// unparseable dates pass. It returns the kept records and the number dropped.
func FilterByAge(releases []release.Release, now time.Time, days int) ([]release.Release, int) {
	cutoff := release.WindowStart(now, days)
	kept := make([]release.Release, 0, len(releases))
	for _, r := range releases {
		if d, ok := r.Date(); ok && d.Before(cutoff) {
			continue
		}
		kept = append(kept, r)
	}
	return kept, len(releases) - len(kept)
}
