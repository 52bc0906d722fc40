// Package videolookup resolves direct video links for a post through an
// fxtwitter compatible status API.
package videolookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	collyfetcher "github.com/JakeFAU/postshelf/internal/fetcher/colly"
	"github.com/JakeFAU/postshelf/internal/posturl"
)

// DefaultBaseURL is the public fxtwitter API.
const DefaultBaseURL = "https://api.fxtwitter.com"

var (
	// ErrNoVideo is returned when the post carries no video.
	ErrNoVideo = errors.New("videolookup: post has no video")
	// ErrInvalidURL is returned for links without handle and status id.
	ErrInvalidURL = errors.New("videolookup: invalid post url")
	// ErrNotFound is returned when the post does not exist upstream.
	ErrNotFound = errors.New("videolookup: post not found")
	// ErrUpstream wraps failed calls.
	ErrUpstream = errors.New("videolookup: upstream failure")
)

// Video is one downloadable asset.
type Video struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	Format       string `json:"format,omitempty"`
	Type         string `json:"type"`
}

// Fetcher performs upstream GET requests.
type Fetcher interface {
	Fetch(ctx context.Context, request collyfetcher.Request) (collyfetcher.Response, error)
}

// Config configures the client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client looks videos up.
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

type statusResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Tweet   *struct {
		Media struct {
			Videos []struct {
				URL          string `json:"url"`
				ThumbnailURL string `json:"thumbnail_url"`
				Width        int    `json:"width"`
				Height       int    `json:"height"`
				Format       string `json:"format"`
				Type         string `json:"type"`
			} `json:"videos"`
		} `json:"media"`
	} `json:"tweet"`
}

// Lookup returns the videos attached to the post at rawURL.
func (c *Client) Lookup(ctx context.Context, rawURL string) ([]Video, error) {
	handle, okHandle := posturl.Handle(rawURL)
	statusID, okID := posturl.StatusID(rawURL)
	if !okHandle || !okID {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}

	resp, err := c.fetcher.Fetch(ctx, collyfetcher.Request{
		URL:     fmt.Sprintf("%s/%s/status/%s", c.cfg.BaseURL, handle, statusID),
		Service: "videolookup",
		Timeout: c.cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, statusID)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var payload statusResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrUpstream, err)
	}
	if payload.Tweet == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, statusID)
	}

	videos := make([]Video, 0, len(payload.Tweet.Media.Videos))
	for _, v := range payload.Tweet.Media.Videos {
		if v.URL == "" {
			continue
		}
		kind := v.Type
		if kind == "" {
			kind = "video"
		}
		videos = append(videos, Video{
			URL:          v.URL,
			ThumbnailURL: v.ThumbnailURL,
			Width:        v.Width,
			Height:       v.Height,
			Format:       v.Format,
			Type:         kind,
		})
	}
	if len(videos) == 0 {
		return nil, ErrNoVideo
	}
	c.logger.Debug("resolved videos", zap.String("status_id", statusID), zap.Int("count", len(videos)))
	return videos, nil
}
