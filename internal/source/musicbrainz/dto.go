package musicbrainz

import (
	"bytes"
	"encoding/json"
	"strings"
)

type searchPage struct {
	Count    int               `json:"count"`
	Offset   int               `json:"offset"`
	Releases []json.RawMessage `json:"releases"`
}

type releaseRecord struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Date          string         `json:"date"`
	ArtistCredit  []artistCredit `json:"artist-credit"`
	LabelInfo     []labelInfo    `json:"label-info"`
	Tags          []tag          `json:"tags"`
	ReleaseGroup  *releaseGroup  `json:"release-group"`
	ReleaseEvents []releaseEvent `json:"release-events"`
}

// artistCredit is either an object or, in older responses, a bare join string.
type artistCredit struct {
	Name       string `json:"name"`
	JoinPhrase string `json:"joinphrase"`
	Artist     *struct {
		Name string `json:"name"`
	} `json:"artist"`
}

func (c *artistCredit) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(`"`)) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = artistCredit{JoinPhrase: s}
		return nil
	}
	type plain artistCredit
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = artistCredit(p)
	return nil
}

type labelInfo struct {
	Label *struct {
		Name string `json:"name"`
	} `json:"label"`
}

type tag struct {
	Name string `json:"name"`
}

type releaseGroup struct {
	PrimaryType string `json:"primary-type"`
	Tags        []tag  `json:"tags"`
}

type releaseEvent struct {
	Date string `json:"date"`
	Area *struct {
		Name string `json:"name"`
	} `json:"area"`
}

func (r releaseRecord) artistName() string {
	var b strings.Builder
	for _, credit := range r.ArtistCredit {
		name := credit.Name
		if name == "" && credit.Artist != nil {
			name = credit.Artist.Name
		}
		b.WriteString(name)
		b.WriteString(credit.JoinPhrase)
	}
	return b.String()
}

// tagNames returns release tags followed by release-group tags, first-seen order.
func (r releaseRecord) tagNames() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(tags []tag) {
		for _, t := range tags {
			if t.Name == "" {
				continue
			}
			if _, ok := seen[t.Name]; ok {
				continue
			}
			seen[t.Name] = struct{}{}
			out = append(out, t.Name)
		}
	}
	add(r.Tags)
	if r.ReleaseGroup != nil {
		add(r.ReleaseGroup.Tags)
	}
	return out
}
