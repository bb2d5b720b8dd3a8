// Package sink encodes the release list and tally and hands both to a blob store
// in a single call, so a failed run never replaces one artifact without the other.
package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/canadian-music-ledger/internal/release"
	"github.com/JakeFAU/canadian-music-ledger/internal/storage"
)

const contentTypeJSON = "application/json"

// ErrNoPlatforms rejects a record that names no platform it was seen on.
var ErrNoPlatforms = errors.New("release has no platforms")

// Paths names the two artifacts inside the store.
type Paths struct {
	Releases string
	Tally    string
}

// Written describes a successful write. The encoded bytes are kept so later
// steps can reuse them without re-encoding.
type Written struct {
	ReleasesURI string
	TallyURI    string
	Releases    []byte
	Tally       []byte
}

// Sink writes ledger artifacts.
type Sink struct {
	store  storage.BlobStore
	paths  Paths
	logger *zap.Logger
}

// New creates a Sink over store.
func New(store storage.BlobStore, paths Paths, logger *zap.Logger) (*Sink, error) {
	if store == nil {
		return nil, fmt.Errorf("sink: blob store is required")
	}
	if paths.Releases == "" || paths.Tally == "" {
		return nil, fmt.Errorf("sink: releases and tally paths are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{store: store, paths: paths, logger: logger.Named("sink")}, nil
}

// Write encodes both artifacts and writes them. The release list is ordered
// first so backends that write sequentially publish the tally last.
func (s *Sink) Write(ctx context.Context, releases []release.Release, tally release.Tally) (Written, error) {
	releasesJSON, err := EncodeReleases(releases)
	if err != nil {
		return Written{}, err
	}
	tallyJSON, err := EncodeTally(tally)
	if err != nil {
		return Written{}, err
	}

	uris, err := s.store.PutObjects(ctx, []storage.Object{
		{Path: s.paths.Releases, ContentType: contentTypeJSON, Data: releasesJSON},
		{Path: s.paths.Tally, ContentType: contentTypeJSON, Data: tallyJSON},
	})
	if err != nil {
		return Written{}, fmt.Errorf("write artifacts: %w", err)
	}
	if len(uris) != 2 {
		return Written{}, fmt.Errorf("write artifacts: expected 2 uris, got %d", len(uris))
	}

	s.logger.Info("artifacts written",
		zap.String("releases_uri", uris[0]),
		zap.String("tally_uri", uris[1]),
		zap.Int("releases", len(releases)),
		zap.Int("releases_bytes", len(releasesJSON)),
		zap.Int("tally_bytes", len(tallyJSON)),
	)

	return Written{
		ReleasesURI: uris[0],
		TallyURI:    uris[1],
		Releases:    releasesJSON,
		Tally:       tallyJSON,
	}, nil
}

// EncodeReleases renders the list as an indented JSON array. A nil subgenre
// list is written as an empty array so consumers never see null. Every record
// must carry at least one platform.
func EncodeReleases(releases []release.Release) ([]byte, error) {
	out := make([]release.Release, len(releases))
	for i, r := range releases {
		if len(r.Platforms) == 0 {
			return nil, fmt.Errorf("encode releases: record %d %q by %q: %w", i, r.Title, r.Artist, ErrNoPlatforms)
		}
		if r.SecondaryGenres == nil {
			r.SecondaryGenres = []release.Genre{}
		}
		out[i] = r
	}
	data, err := encode(out)
	if err != nil {
		return nil, fmt.Errorf("encode releases: %w", err)
	}
	return data, nil
}

// EncodeTally renders the tally as an indented JSON object.
func EncodeTally(t release.Tally) ([]byte, error) {
	if t.ByGenre == nil {
		t.ByGenre = map[string]int{}
	}
	if t.ByProvince == nil {
		t.ByProvince = map[string]int{}
	}
	data, err := encode(t)
	if err != nil {
		return nil, fmt.Errorf("encode tally: %w", err)
	}
	return data, nil
}

// encode keeps "&" and friends literal; genre names such as "R&B / Soul" must
// round-trip byte for byte.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
