// Package politeness paces outbound requests per source and bounds each request
// with a hard timeout.
//
// Pacing is a strict fixed interval: a limiter with a burst of one admits the
// next request no sooner than Interval after the previous one was admitted.
// Calls to the same source are serialized.
package politeness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/canadian-music-ledger/internal/metrics"
)

// ErrTimeout is returned when a paced call exceeds its hard timeout.
var ErrTimeout = errors.New("request timed out")

// Policy is the pacing contract for one source.
type Policy struct {
	// Interval is the minimum spacing between consecutive requests. Zero disables pacing.
	Interval time.Duration
	// Timeout bounds a single request. Zero falls back to DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout applies when a policy leaves Timeout unset.
const DefaultTimeout = 20 * time.Second

// Governor hands out per-source pacers.
type Governor struct {
	mu       sync.Mutex
	policies map[string]Policy
	fallback Policy
	pacers   map[string]*pacer
}

type pacer struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	policy  Policy
}

// New creates a Governor. Sources without an explicit policy use fallback.
func New(fallback Policy, policies map[string]Policy) *Governor {
	copied := make(map[string]Policy, len(policies))
	for k, v := range policies {
		copied[k] = v
	}
	return &Governor{
		policies: copied,
		fallback: fallback,
		pacers:   make(map[string]*pacer),
	}
}

// Policy returns the effective policy for source.
func (g *Governor) Policy(source string) Policy {
	p, ok := g.policies[source]
	if !ok {
		p = g.fallback
	}
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	return p
}

func (g *Governor) pacerFor(source string) *pacer {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pacers[source]
	if !ok {
		policy := g.Policy(source)
		limit := rate.Inf
		if policy.Interval > 0 {
			limit = rate.Every(policy.Interval)
		}
		p = &pacer{
			limiter: rate.NewLimiter(limit, 1),
			policy:  policy,
		}
		g.pacers[source] = p
	}
	return p
}

// Do waits for the source's pacing slot, then runs fn under the hard timeout.
// The context passed to fn is canceled when the timeout expires; a timeout is
// reported as ErrTimeout wrapped with the source name.
func (g *Governor) Do(ctx context.Context, source string, fn func(ctx context.Context) error) error {
	p := g.pacerFor(source)
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s pacing wait: %w", source, err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObservePolitenessWait(source, waited)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.policy.Timeout)
	defer cancel()

	err := fn(callCtx)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%s after %s: %w: %w", source, p.policy.Timeout, ErrTimeout, err)
	}
	return err
}
