// Package twitterapi looks posts up through the paid twitterapi.io service and
// normalizes them into post.Post.
package twitterapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	collyfetcher "github.com/JakeFAU/postshelf/internal/fetcher/colly"
	"github.com/JakeFAU/postshelf/internal/post"
	"github.com/JakeFAU/postshelf/internal/posturl"
)

const (
	// DefaultBaseURL is the public service root.
	DefaultBaseURL = "https://api.twitterapi.io"

	serviceName     = "twitterapi"
	createdAtLayout = time.RubyDate
)

var (
	// ErrNotConfigured is returned when no API key is stored.
	ErrNotConfigured = errors.New("twitterapi: api key not configured")
	// ErrNotFound is returned when the service knows no such post.
	ErrNotFound = errors.New("twitterapi: post not found")
	// ErrInvalidURL is returned when no status id can be extracted.
	ErrInvalidURL = errors.New("twitterapi: invalid post url")
	// ErrUpstream wraps non-success replies.
	ErrUpstream = errors.New("twitterapi: upstream failure")
)

// Fetcher performs upstream GET requests.
type Fetcher interface {
	Fetch(ctx context.Context, request collyfetcher.Request) (collyfetcher.Response, error)
}

// Config configures the client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client calls the tweets endpoint.
type Client struct {
	cfg     Config
	fetcher Fetcher
	logger  *zap.Logger
}

// NewClient builds a Client.
func NewClient(cfg Config, fetcher Fetcher, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, fetcher: fetcher, logger: logger}
}

type tweetsResponse struct {
	Tweets []tweet `json:"tweets"`
	Status string  `json:"status"`
	Msg    string  `json:"msg"`
}

type tweet struct {
	ID               string `json:"id"`
	URL              string `json:"url"`
	Text             string `json:"text"`
	CreatedAt        string `json:"createdAt"`
	Author           author `json:"author"`
	ExtendedEntities struct {
		Media []media `json:"media"`
	} `json:"extendedEntities"`
}

type author struct {
	UserName       string `json:"userName"`
	Name           string `json:"name"`
	ProfilePicture string `json:"profilePicture"`
}

type media struct {
	Type          string `json:"type"`
	MediaURLHTTPS string `json:"media_url_https"`
	VideoInfo     struct {
		Variants []variant `json:"variants"`
	} `json:"video_info"`
}

type variant struct {
	Bitrate     int    `json:"bitrate"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

// Lookup fetches the post at rawURL using apiKey.
func (c *Client) Lookup(ctx context.Context, apiKey, rawURL string) (post.Post, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return post.Post{}, ErrNotConfigured
	}
	statusID, ok := posturl.StatusID(rawURL)
	if !ok {
		return post.Post{}, fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}

	resp, err := c.fetcher.Fetch(ctx, collyfetcher.Request{
		URL:     c.cfg.BaseURL + "/twitter/tweets?" + url.Values{"tweet_ids": {statusID}}.Encode(),
		Headers: http.Header{"X-API-Key": {apiKey}},
		Service: serviceName,
		Timeout: c.cfg.Timeout,
	})
	if err != nil {
		return post.Post{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	if !resp.OK() {
		c.logger.Warn("twitterapi rejected lookup",
			zap.String("status_id", statusID), zap.Int("status", resp.StatusCode))
		return post.Post{}, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var payload tweetsResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return post.Post{}, fmt.Errorf("%w: decode response: %w", ErrUpstream, err)
	}
	if payload.Status == "error" {
		return post.Post{}, fmt.Errorf("%w: %s", ErrUpstream, payload.Msg)
	}
	if len(payload.Tweets) == 0 {
		return post.Post{}, fmt.Errorf("%w: %s", ErrNotFound, statusID)
	}
	return normalize(payload.Tweets[0], rawURL), nil
}

func normalize(t tweet, rawURL string) post.Post {
	out := post.Post{
		ID:   t.ID,
		URL:  t.URL,
		Text: t.Text,
		Author: post.Author{
			Handle:    t.Author.UserName,
			Name:      t.Author.Name,
			AvatarURL: t.Author.ProfilePicture,
		},
		Media: make([]post.Media, 0, len(t.ExtendedEntities.Media)),
	}
	if out.URL == "" {
		out.URL = strings.TrimSpace(rawURL)
	}
	if ts, err := time.Parse(createdAtLayout, t.CreatedAt); err == nil {
		out.CreatedAt = ts.UTC()
	}
	for _, m := range t.ExtendedEntities.Media {
		switch m.Type {
		case "photo":
			out.Media = append(out.Media, post.Media{Type: post.MediaPhoto, URL: m.MediaURLHTTPS, PreviewURL: m.MediaURLHTTPS})
		case "video", "animated_gif":
			best, ok := bestMP4(m.VideoInfo.Variants)
			if !ok {
				continue
			}
			kind := post.MediaVideo
			if m.Type == "animated_gif" {
				kind = post.MediaGIF
			}
			out.Media = append(out.Media, post.Media{Type: kind, URL: best.URL, PreviewURL: m.MediaURLHTTPS})
		}
	}
	return out
}

// bestMP4 picks the highest bitrate mp4 variant.
func bestMP4(variants []variant) (variant, bool) {
	var (
		best  variant
		found bool
	)
	for _, v := range variants {
		if v.ContentType != "video/mp4" || v.URL == "" {
			continue
		}
		if !found || v.Bitrate > best.Bitrate {
			best = v
			found = true
		}
	}
	return best, found
}
