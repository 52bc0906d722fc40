// Package oembed talks to the publish.twitter.com oEmbed provider. It derives
// record titles and serves as a widget library for the render orchestrator.
package oembed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	collyfetcher "github.com/JakeFAU/postshelf/internal/fetcher/colly"
	"github.com/JakeFAU/postshelf/internal/posturl"
)

const (
	// DefaultEndpoint is the public oEmbed provider.
	DefaultEndpoint = "https://publish.twitter.com/oembed"
	// FallbackTitle is used whenever no better title can be derived.
	FallbackTitle = "X post"
	// MaxTitleRunes bounds derived titles before the ellipsis.
	MaxTitleRunes = 150

	serviceName = "oembed"
)

// ErrUnexpectedStatus is returned when the provider answers with a non-2xx
// status other than the not-embeddable ones.
var ErrUnexpectedStatus = errors.New("oembed: unexpected status")

// Fetcher performs upstream GET requests.
type Fetcher interface {
	Fetch(ctx context.Context, request collyfetcher.Request) (collyfetcher.Response, error)
}

// Config configures the provider client.
type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// Client queries the oEmbed provider.
type Client struct {
	cfg     Config
	fetcher Fetcher
	logger  *zap.Logger
}

// Response mirrors the provider payload fields postshelf reads.
type Response struct {
	URL        string `json:"url"`
	AuthorName string `json:"author_name"`
	AuthorURL  string `json:"author_url"`
	HTML       string `json:"html"`
}

// NewClient builds a Client.
func NewClient(cfg Config, fetcher Fetcher, logger *zap.Logger) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, fetcher: fetcher, logger: logger}
}

// FetchTitle derives a short title for the post at rawURL. It never fails:
// any provider or decoding problem yields FallbackTitle.
func (c *Client) FetchTitle(ctx context.Context, rawURL string) string {
	resp, status, err := c.lookup(ctx, url.Values{"url": {posturl.Canonical(rawURL)}})
	if err != nil {
		c.logger.Warn("title lookup failed", zap.String("url", rawURL), zap.Error(err))
		return FallbackTitle
	}
	if status < 200 || status >= 300 {
		c.logger.Info("title lookup rejected", zap.String("url", rawURL), zap.Int("status", status))
		return FallbackTitle
	}
	return TitleFrom(resp)
}

// TitleFrom applies the title rules to a provider response: the embed's text
// content with collapsed whitespace, then the author, then FallbackTitle.
func TitleFrom(resp Response) string {
	if text := PlainText(resp.HTML); text != "" {
		return Truncate(text, MaxTitleRunes)
	}
	if name := strings.TrimSpace(resp.AuthorName); name != "" {
		return name + "'s post"
	}
	return FallbackTitle
}

// PlainText strips markup and collapses runs of whitespace.
func PlainText(markup string) string {
	if strings.TrimSpace(markup) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// Truncate cuts s to limit runes and appends "..." when anything was removed.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func (c *Client) lookup(ctx context.Context, params url.Values) (Response, int, error) {
	endpoint, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return Response{}, 0, fmt.Errorf("parse oembed endpoint: %w", err)
	}
	query := endpoint.Query()
	for key, values := range params {
		query[key] = values
	}
	endpoint.RawQuery = query.Encode()

	raw, err := c.fetcher.Fetch(ctx, collyfetcher.Request{
		URL:     endpoint.String(),
		Service: serviceName,
		Timeout: c.cfg.Timeout,
	})
	if err != nil {
		return Response{}, 0, fmt.Errorf("fetch oembed: %w", err)
	}
	if !raw.OK() {
		return Response{}, raw.StatusCode, nil
	}
	var out Response
	if err := json.Unmarshal(raw.Body, &out); err != nil {
		return Response{}, raw.StatusCode, fmt.Errorf("decode oembed response: %w", err)
	}
	return out, raw.StatusCode, nil
}
