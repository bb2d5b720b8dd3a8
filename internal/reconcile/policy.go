package reconcile

import (
	"slices"

	"github.com/JakeFAU/canadian-music-ledger/internal/release"
)

// Rule names the strategy a FieldPolicy applies when two records share a key.
type Rule string

// Merge rules.
const (
	RuleFirstSeen        Rule = "first-seen"
	RuleFirstNonEmpty    Rule = "first-non-empty"
	RuleUnion            Rule = "union"
	RulePreferNonDefault Rule = "prefer-non-default"
)

// FieldPolicy merges one field of an incoming candidate into an existing record.
type FieldPolicy struct {
	Field string
	Rule  Rule
	apply func(existing *release.Release, incoming release.Release)
}

// Apply merges incoming into existing for this field.
func (p FieldPolicy) Apply(existing *release.Release, incoming release.Release) {
	if p.apply != nil {
		p.apply(existing, incoming)
	}
}

// Policies is the merge table. Fields not listed keep their first-seen value.
var Policies = []FieldPolicy{
	{Field: "platforms", Rule: RuleUnion, apply: unionPlatforms},
	{Field: "artist_province", Rule: RuleFirstNonEmpty, apply: adoptRegion},
	{Field: "primary_genre", Rule: RulePreferNonDefault, apply: preferGenre},
	{Field: "release_date", Rule: RuleFirstNonEmpty, apply: firstNonEmpty(func(r *release.Release) *string { return &r.ReleaseDate })},
	{Field: "label", Rule: RuleFirstNonEmpty, apply: adoptLabel},
}

func firstNonEmpty(field func(*release.Release) *string) func(*release.Release, release.Release) {
	return func(existing *release.Release, incoming release.Release) {
		dst := field(existing)
		if *dst == "" {
			*dst = *field(&incoming)
		}
	}
}

func unionPlatforms(existing *release.Release, incoming release.Release) {
	for _, p := range incoming.Platforms {
		if !existing.HasPlatform(p) {
			existing.Platforms = append(existing.Platforms, p)
		}
	}
}

// adoptRegion moves the locality along with the region it was inferred from.
func adoptRegion(existing *release.Release, incoming release.Release) {
	if existing.Region != "" || incoming.Region == "" {
		return
	}
	existing.Region = incoming.Region
	if existing.Locality == "" {
		existing.Locality = incoming.Locality
	}
}

// preferGenre replaces Other with an incoming canonical genre and keeps the
// secondary list free of the new primary.
func preferGenre(existing *release.Release, incoming release.Release) {
	if existing.PrimaryGenre != "" && existing.PrimaryGenre != release.GenreOther {
		return
	}
	if incoming.PrimaryGenre == "" || incoming.PrimaryGenre == release.GenreOther {
		if existing.PrimaryGenre == "" {
			existing.PrimaryGenre = release.GenreOther
		}
		return
	}
	existing.PrimaryGenre = incoming.PrimaryGenre
	existing.SecondaryGenres = slices.DeleteFunc(existing.SecondaryGenres, func(g release.Genre) bool {
		return g == incoming.PrimaryGenre
	})
}

// adoptLabel keeps the independence flag consistent with whichever label wins.
func adoptLabel(existing *release.Release, incoming release.Release) {
	if existing.Label != "" || incoming.Label == "" {
		return
	}
	existing.Label = incoming.Label
	existing.Independent = incoming.Independent
}
