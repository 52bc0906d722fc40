package render

import (
	"context"
	"html/template"
)

// EmbedOptions are the presentation options handed to the widget library.
type EmbedOptions struct {
	Align        string
	Theme        string
	Conversation string
	Cards        string
}

// DefaultEmbedOptions centers a light themed post without its thread and with
// link cards shown.
var DefaultEmbedOptions = EmbedOptions{
	Align:        "center",
	Theme:        "light",
	Conversation: "none",
	Cards:        "visible",
}

// Element is markup produced by a widget library for one post.
type Element struct {
	HTML template.HTML
}

// WidgetLibrary renders official embeds.
//
// Ready is closed once the library can accept CreatePost calls. CreatePost
// returns a nil element without error when the post exists but cannot be
// embedded (deleted, protected, age restricted).
type WidgetLibrary interface {
	Ready() <-chan struct{}
	CreatePost(ctx context.Context, statusID string, opts EmbedOptions) (*Element, error)
}
