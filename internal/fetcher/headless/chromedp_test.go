package headless

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
)

func TestNewChromedpNavigationTimeoutDefault(t *testing.T) {
	t.Parallel()

	r := NewChromedp(Config{})
	if r.cfg.NavigationTimeout != defaultNavigationTimeout {
		t.Fatalf("expected default nav timeout, got %v", r.cfg.NavigationTimeout)
	}
	r = NewChromedp(Config{NavigationTimeout: time.Second})
	if r.cfg.NavigationTimeout != time.Second {
		t.Fatalf("expected override to be used, got %v", r.cfg.NavigationTimeout)
	}
}

func TestDocumentMetaCapturesDocumentStatusOnly(t *testing.T) {
	t.Parallel()

	meta := &documentMeta{}
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeScript,
		Response: &network.Response{Status: 500},
	})
	if got := meta.status(); got != 0 {
		t.Fatalf("script response must be ignored, got %d", got)
	}
	meta.captureEvent(&network.EventResponseReceived{
		Type:     network.ResourceTypeDocument,
		Response: &network.Response{Status: 404},
	})
	if got := meta.status(); got != 404 {
		t.Fatalf("expected 404, got %d", got)
	}
	meta.captureEvent("unrelated event")
	if got := meta.status(); got != 404 {
		t.Fatalf("unrelated events must not reset status, got %d", got)
	}
}

func TestDisabledRenderer(t *testing.T) {
	t.Parallel()

	_, err := Disabled{}.Open(context.Background())
	if !errors.Is(err, ErrRendererDisabled) {
		t.Fatalf("expected ErrRendererDisabled, got %v", err)
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{browserCtx: ctx, browserCancel: cancel, allocCancel: func() {}}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := s.Render(context.Background(), "https://example.com", 0); err == nil {
		t.Fatal("expected error rendering on closed session")
	}
}
