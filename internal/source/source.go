// Package source defines the contract every release source adapter satisfies and
// the transport ports adapters depend on.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/JakeFAU/canadian-music-ledger/internal/release"
)

// Adapter fetches candidate releases from one external source.
//
// Fetch never fails as a whole: every unit of work (page, tag target, feed,
// artist lookup) yields one Result, successful or not. An adapter that cannot
// start at all returns a single Result whose error kind is KindSetup.
type Adapter interface {
	Name() release.Platform
	Fetch(ctx context.Context, window release.DateRange) []Result
}

// Result is the outcome of one unit of work.
type Result struct {
	Unit     string
	Releases []release.Release
	Err      *FetchError
}

// OK reports whether the unit succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Success builds a successful Result.
func Success(unit string, releases []release.Release) Result {
	return Result{Unit: unit, Releases: releases}
}

// Failure builds a failed Result. Partial releases collected before the failure
// are kept.
func Failure(src release.Platform, unit string, kind ErrorKind, err error, partial []release.Release) Result {
	return Result{
		Unit:     unit,
		Releases: partial,
		Err:      &FetchError{Source: src, Unit: unit, Kind: kind, Err: err},
	}
}

// ErrorKind classifies why a unit of work was skipped.
type ErrorKind string

// Failure taxonomy.
const (
	KindTransport ErrorKind = "transport"
	KindParse     ErrorKind = "parse"
	KindSetup     ErrorKind = "setup"
)

// ErrSetup marks failures that prevented an adapter from doing any work.
var ErrSetup = errors.New("adapter setup failed")

// FetchError describes a skipped unit of work.
type FetchError struct {
	Source release.Platform
	Unit   string
	Kind   ErrorKind
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s (%s): %v", e.Source, e.Unit, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	if e.Kind == KindSetup {
		return errors.Join(ErrSetup, e.Err)
	}
	return e.Err
}

// FetchRequest describes one HTTP GET.
type FetchRequest struct {
	URL     string
	Query   url.Values
	Headers http.Header
}

// FullURL returns URL with Query appended.
func (r FetchRequest) FullURL() (string, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if len(r.Query) > 0 {
		q := u.Query()
		for k, values := range r.Query {
			for _, v := range values {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// FetchResponse is the result of a FetchRequest.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Fetcher performs plain HTTP GETs.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Renderer opens headless browser sessions.
type Renderer interface {
	Open(ctx context.Context) (Session, error)
}

// Session renders pages one at a time. Implementations are not safe for
// concurrent use.
type Session interface {
	Render(ctx context.Context, rawURL string, settle time.Duration) (string, error)
	Close() error
}
