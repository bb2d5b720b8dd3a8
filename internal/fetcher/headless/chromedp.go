// Package headless renders JavaScript-driven pages through a shared headless
// Chrome session.
package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/canadian-music-ledger/internal/source"
)

// ErrRendererDisabled is returned by Open when headless rendering is turned off.
var ErrRendererDisabled = errors.New("headless renderer disabled")

const defaultNavigationTimeout = 45 * time.Second

// Config controls the headless renderer.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
	// ExecPath overrides Chrome discovery. Empty uses chromedp's lookup.
	ExecPath string
}

// Chromedp implements source.Renderer with chromedp.
type Chromedp struct {
	cfg Config
}

// NewChromedp creates a renderer. The browser is not launched until Open.
func NewChromedp(cfg Config) *Chromedp {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	return &Chromedp{cfg: cfg}
}

// Open launches the browser and returns a session bound to ctx. Canceling ctx
// tears the browser down.
func (c *Chromedp) Open(ctx context.Context) (source.Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if c.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Running with no actions starts the browser so launch failures surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	return &Session{
		cfg:           c.cfg,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}, nil
}

// Session is one running browser. Renders are serialized.
type Session struct {
	cfg           Config
	mu            sync.Mutex
	closed        bool
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
}

// StatusError reports a document response with an error status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("render %s: status %d", e.URL, e.StatusCode)
}

// Render navigates a fresh tab to rawURL, waits for the body, sleeps for
// settle, and returns the rendered document.
func (s *Session) Render(ctx context.Context, rawURL string, settle time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", errors.New("render on closed session")
	}

	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)
	defer tabCancel()
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	tabCtx, cancel := context.WithTimeout(tabCtx, s.cfg.NavigationTimeout)
	defer cancel()

	meta := &documentMeta{}
	chromedp.ListenTarget(tabCtx, meta.captureEvent)

	var html string
	actions := []chromedp.Action{
		s.networkSetupAction(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("render %s: %w", rawURL, ctx.Err())
		}
		return "", fmt.Errorf("render %s: %w", rawURL, err)
	}
	if status := meta.status(); status >= http.StatusBadRequest {
		return "", &StatusError{URL: rawURL, StatusCode: status}
	}
	return html, nil
}

// Close shuts down the browser. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.browserCancel()
	s.allocCancel()
	return nil
}

func (s *Session) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if s.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(s.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// documentMeta records the status of the last top-level document response.
type documentMeta struct {
	mu   sync.Mutex
	code int
}

func (m *documentMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	m.mu.Lock()
	m.code = int(resp.Response.Status)
	m.mu.Unlock()
}

func (m *documentMeta) status() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.code
}

// Disabled is a renderer that never opens a session.
type Disabled struct{}

// Open always fails with ErrRendererDisabled.
func (Disabled) Open(context.Context) (source.Session, error) {
	return nil, ErrRendererDisabled
}
