package headless

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/JakeFAU/postshelf/internal/render"
)

func TestNewChromedpLimiterValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewChromedp(Config{MaxParallel: -1}, nil); err == nil {
		t.Fatal("expected error for negative max parallel")
	}
	widget, err := NewChromedp(Config{MaxParallel: 2}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer widget.Close()
	if cap(widget.limiter) != 2 {
		t.Fatalf("expected limiter capacity 2, got %d", cap(widget.limiter))
	}
	if widget.cfg.WidgetsURL != DefaultWidgetsURL {
		t.Fatalf("expected default widgets url, got %q", widget.cfg.WidgetsURL)
	}
	select {
	case <-widget.Ready():
		t.Fatal("widget must not be ready before warmup")
	default:
	}
}

func TestWidgetNavTimeoutDefault(t *testing.T) {
	t.Parallel()

	widget := &Widget{}
	if got := widget.navTimeout(); got != 25*time.Second {
		t.Fatalf("expected default nav timeout, got %v", got)
	}
	widget.cfg.NavigationTimeout = time.Second
	if got := widget.navTimeout(); got != time.Second {
		t.Fatalf("expected override to be used, got %v", got)
	}
}

func TestAcquireHonorsContext(t *testing.T) {
	t.Parallel()

	widget := &Widget{limiter: make(chan struct{}, 1)}
	if err := widget.acquire(context.Background()); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := widget.acquire(ctx); err == nil {
		t.Fatal("expected acquire to fail while the only slot is held")
	}
	widget.release()
	if err := widget.acquire(context.Background()); err != nil {
		t.Fatalf("acquire after release failed: %v", err)
	}
}

func TestCreateTweetScript(t *testing.T) {
	t.Parallel()

	script, err := createTweetScript(`12"3`, render.DefaultEmbedOptions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{
		`createTweet("12\"3"`,
		`"align":"center"`,
		`"conversation":"none"`,
		`"cards":"visible"`,
		`"theme":"light"`,
		`el ? el.outerHTML : null`,
	} {
		if !strings.Contains(script, want) {
			t.Fatalf("script %q missing %q", script, want)
		}
	}
}
