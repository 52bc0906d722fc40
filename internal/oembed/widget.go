package oembed

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/postshelf/internal/render"
)

// Widget renders official embed markup through the oEmbed provider. The
// returned blockquote hydrates into the interactive widget once the page's
// widgets.js runs.
type Widget struct {
	client *Client
	ready  chan struct{}
}

var _ render.WidgetLibrary = (*Widget)(nil)

// NewWidget wraps client as a widget library that is ready immediately.
func NewWidget(client *Client) *Widget {
	ready := make(chan struct{})
	close(ready)
	return &Widget{client: client, ready: ready}
}

// Ready implements render.WidgetLibrary.
func (w *Widget) Ready() <-chan struct{} {
	return w.ready
}

// CreatePost implements render.WidgetLibrary. Forbidden and missing posts
// yield a nil element.
func (w *Widget) CreatePost(ctx context.Context, statusID string, opts render.EmbedOptions) (*render.Element, error) {
	params := url.Values{
		"url":         {"https://twitter.com/i/status/" + statusID},
		"omit_script": {"true"},
		"dnt":         {"true"},
	}
	if opts.Align != "" {
		params.Set("align", opts.Align)
	}
	if opts.Theme != "" {
		params.Set("theme", opts.Theme)
	}
	if opts.Conversation == "none" {
		params.Set("hide_thread", "true")
	}
	if opts.Cards == "hidden" {
		params.Set("hide_media", "true")
	}

	resp, status, err := w.client.lookup(ctx, params)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusForbidden || status == http.StatusNotFound:
		w.client.logger.Debug("post not embeddable", zap.String("status_id", statusID), zap.Int("status", status))
		return nil, nil
	case status < 200 || status >= 300:
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
	}
	if strings.TrimSpace(resp.HTML) == "" {
		return nil, nil
	}
	// #nosec G203 -- markup comes from the oEmbed provider and is meant to be embedded verbatim.
	return &render.Element{HTML: template.HTML(resp.HTML)}, nil
}
