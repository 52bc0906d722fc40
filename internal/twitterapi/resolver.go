package twitterapi

import (
	"context"

	"github.com/JakeFAU/postshelf/internal/post"
)

// KeySource supplies the current API key.
type KeySource interface {
	TwitterAPIKey(ctx context.Context) string
}

// Resolver adapts Client to the render orchestrator, reading the key on every
// call so key changes apply without a restart.
type Resolver struct {
	client *Client
	keys   KeySource
}

// NewResolver builds a Resolver.
func NewResolver(client *Client, keys KeySource) *Resolver {
	return &Resolver{client: client, keys: keys}
}

// ResolvePost looks rawURL up with the stored key.
func (r *Resolver) ResolvePost(ctx context.Context, rawURL string) (post.Post, error) {
	return r.client.Lookup(ctx, r.keys.TwitterAPIKey(ctx), rawURL)
}
