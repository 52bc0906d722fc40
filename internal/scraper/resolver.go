package scraper

import (
	"context"
	"fmt"

	"github.com/JakeFAU/postshelf/internal/post"
	"github.com/JakeFAU/postshelf/internal/posturl"
)

// Resolver adapts Client to the render orchestrator.
type Resolver struct {
	client *Client
}

// NewResolver builds a Resolver.
func NewResolver(client *Client) *Resolver {
	return &Resolver{client: client}
}

// ResolvePost extracts the status id from rawURL and fetches the post.
func (r *Resolver) ResolvePost(ctx context.Context, rawURL string) (post.Post, error) {
	statusID, ok := posturl.StatusID(rawURL)
	if !ok {
		return post.Post{}, fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}
	p, err := r.client.TweetDetails(ctx, statusID)
	if err != nil {
		return post.Post{}, err
	}
	if p.URL == "" {
		p.URL = rawURL
	}
	return p, nil
}
