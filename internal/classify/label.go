package classify

import "strings"

// IsIndependent reports whether label denotes a self-released record: empty,
// or one of the known "no label" placeholders.
func (t *Tables) IsIndependent(label string) bool {
	key := strings.ToLower(strings.TrimSpace(label))
	if key == "" {
		return true
	}
	_, ok := t.noLabel[key]
	return ok
}

var noLabelPlaceholders = []string{
	"[no label]",
	"self-released",
	"self released",
	"independent",
	"none",
}

// Artists that surface under the Canadian country filter because of Canadian
// editions of foreign releases.
var defaultDenylist = []string{
	"foo fighters", "the cure", "mumford & sons", "nofx", "karnivool",
	"scott buckley", "the album leaf", "andrew bird", "denez prigent",
	"fakear", "sam sauvage", "arif murakami",
}
