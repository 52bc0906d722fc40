// Package headless renders official post embeds by running the platform's
// widgets.js inside headless Chrome.
package headless

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/postshelf/internal/render"
)

// DefaultWidgetsURL is the script that defines twttr.widgets.
const DefaultWidgetsURL = "https://platform.twitter.com/widgets.js"

const readyExpr = `typeof window.twttr !== 'undefined' && !!window.twttr.widgets && typeof window.twttr.widgets.createTweet === 'function'`

// Config controls the headless widget.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
	WidgetsURL        string
}

// Widget implements render.WidgetLibrary with one browser tab per CreatePost.
type Widget struct {
	cfg         Config
	logger      *zap.Logger
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc

	ready     chan struct{}
	readyOnce sync.Once
}

var _ render.WidgetLibrary = (*Widget)(nil)

// NewChromedp creates a headless widget backed by chromedp. The browser is not
// launched until Warmup or CreatePost runs.
func NewChromedp(cfg Config, logger *zap.Logger) (*Widget, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 25 * time.Second
	}
	if cfg.WidgetsURL == "" {
		cfg.WidgetsURL = DefaultWidgetsURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Widget{
		cfg:         cfg,
		logger:      logger,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		ready:       make(chan struct{}),
	}, nil
}

// Close cancels the allocator context and shuts the browser down.
func (w *Widget) Close() {
	w.allocCancel()
}

// Ready implements render.WidgetLibrary. It closes after Warmup has seen the
// widget library load once.
func (w *Widget) Ready() <-chan struct{} {
	return w.ready
}

// Warmup opens a tab, loads widgets.js and marks the widget ready once
// createTweet is available.
func (w *Widget) Warmup(ctx context.Context) error {
	if err := w.acquire(ctx); err != nil {
		return err
	}
	defer w.release()

	tabCtx, tabCancel := chromedp.NewContext(w.allocator)
	defer tabCancel()
	tabCtx, cancel := context.WithTimeout(tabCtx, w.navTimeout())
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(tabCtx, w.loadLibraryActions()...); err != nil {
		return fmt.Errorf("load widget library: %w", err)
	}
	w.readyOnce.Do(func() { close(w.ready) })
	w.logger.Info("headless widget library ready")
	return nil
}

// CreatePost implements render.WidgetLibrary. A post the library refuses to
// embed yields a nil element.
func (w *Widget) CreatePost(ctx context.Context, statusID string, opts render.EmbedOptions) (*render.Element, error) {
	script, err := createTweetScript(statusID, opts)
	if err != nil {
		return nil, err
	}
	if err := w.acquire(ctx); err != nil {
		return nil, err
	}
	defer w.release()

	tabCtx, tabCancel := chromedp.NewContext(w.allocator)
	defer tabCancel()
	tabCtx, cancel := context.WithTimeout(tabCtx, w.navTimeout())
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var markup *string
	actions := append(w.loadLibraryActions(),
		chromedp.Evaluate(script, &markup, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	)
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		return nil, fmt.Errorf("chromedp run: %w", err)
	}
	if markup == nil || *markup == "" {
		return nil, nil
	}
	// #nosec G203 -- markup is produced by the platform's own widget script.
	return &render.Element{HTML: template.HTML(*markup)}, nil
}

func (w *Widget) loadLibraryActions() []chromedp.Action {
	src, _ := json.Marshal(w.cfg.WidgetsURL)
	inject := fmt.Sprintf(`(() => {
  const s = document.createElement('script');
  s.async = true;
  s.src = %s;
  document.head.appendChild(s);
  const c = document.createElement('div');
  c.id = 'postshelf-embed';
  document.body.appendChild(c);
  return true;
})()`, src)
	var injected bool
	return []chromedp.Action{
		w.networkSetupAction(),
		chromedp.Navigate("about:blank"),
		chromedp.Evaluate(inject, &injected),
		chromedp.Poll(readyExpr, nil, chromedp.WithPollingInterval(200*time.Millisecond)),
	}
}

// createTweetScript builds the promise expression resolving to the rendered
// element's outer HTML, or null when the post cannot be embedded.
func createTweetScript(statusID string, opts render.EmbedOptions) (string, error) {
	id, err := json.Marshal(statusID)
	if err != nil {
		return "", fmt.Errorf("encode status id: %w", err)
	}
	options, err := json.Marshal(map[string]string{
		"align":        opts.Align,
		"theme":        opts.Theme,
		"conversation": opts.Conversation,
		"cards":        opts.Cards,
	})
	if err != nil {
		return "", fmt.Errorf("encode embed options: %w", err)
	}
	return fmt.Sprintf(
		`window.twttr.widgets.createTweet(%s, document.getElementById('postshelf-embed'), %s).then(el => el ? el.outerHTML : null)`,
		id, options,
	), nil
}

func (w *Widget) networkSetupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if w.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(w.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (w *Widget) acquire(ctx context.Context) error {
	if w.limiter == nil {
		return nil
	}
	select {
	case w.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("headless slot wait canceled: %w", ctx.Err())
	}
}

func (w *Widget) release() {
	if w.limiter == nil {
		return
	}
	select {
	case <-w.limiter:
	default:
	}
}

func (w *Widget) navTimeout() time.Duration {
	if w.cfg.NavigationTimeout > 0 {
		return w.cfg.NavigationTimeout
	}
	return 25 * time.Second
}
