// Package tally folds reconciled releases into the dashboard summary.
package tally

import (
	"time"

	"github.com/JakeFAU/canadian-music-ledger/internal/classify"
	"github.com/JakeFAU/canadian-music-ledger/internal/release"
)

// Window lengths in days.
const (
	ShortWindowDays = 7
	LongWindowDays  = 30
)

// UnknownRegion buckets blank or unmapped region codes.
const UnknownRegion = "Unknown"

// Compute builds the tally relative to now. A release counts toward a window
// only when it has a parseable date on or after now minus the window; undated
// releases count toward neither. Breakdowns and the independence split cover
// the 30-day subset, and genres outside the canonical set count as Other.
func Compute(releases []release.Release, now time.Time, tables *classify.Tables) release.Tally {
	shortCutoff := release.WindowStart(now, ShortWindowDays)
	longCutoff := release.WindowStart(now, LongWindowDays)

	t := release.Tally{
		GeneratedAt: now.UTC(),
		ByGenre:     make(map[string]int),
		ByProvince:  make(map[string]int),
	}
	for _, r := range releases {
		d, ok := r.Date()
		if !ok {
			continue
		}
		if !d.Before(shortCutoff) {
			t.Last7Days++
		}
		if d.Before(longCutoff) {
			continue
		}
		t.Last30Days++

		genre := r.PrimaryGenre
		if !genre.Valid() {
			genre = release.GenreOther
		}
		t.ByGenre[string(genre)]++
		t.ByProvince[regionBucket(tables, r.Region)]++
		if r.Independent {
			t.Independent++
		} else {
			t.LabelBacked++
		}
	}
	return t
}

func regionBucket(tables *classify.Tables, code string) string {
	if tables == nil {
		return UnknownRegion
	}
	if name, ok := tables.RegionName(code); ok {
		return name
	}
	return UnknownRegion
}
