package render

import (
	"context"
	"html/template"
	"time"

	"github.com/JakeFAU/postshelf/internal/post"
	"github.com/JakeFAU/postshelf/internal/posturl"
	"github.com/JakeFAU/postshelf/internal/record"
)

// Strategy names.
const (
	StrategyEmbed      = "embed"
	StrategyScrape     = "twscrape"
	StrategyTwitterAPI = "twitterapi"
)

// DefaultReadyTimeout bounds how long an embed waits for the widget library.
const DefaultReadyTimeout = 10 * time.Second

// Outcome is what a single strategy produced. Failed outcomes carry the
// placeholder text; the orchestrator turns them into markup.
type Outcome struct {
	State   State
	HTML    template.HTML
	Message string
	Detail  string
	Err     error
}

// Strategy is one way of producing a record's markup.
type Strategy interface {
	Name() string
	// Soft reports whether a failure hands the record over to the next
	// strategy instead of ending the attempt.
	Soft() bool
	Attempt(ctx context.Context, target Target) Outcome
}

// PostResolver fetches a post's content from a non-embed source.
type PostResolver interface {
	ResolvePost(ctx context.Context, postURL string) (post.Post, error)
}

// EmbedStrategy renders posts through the official widget library.
type EmbedStrategy struct {
	widget       WidgetLibrary
	readyTimeout time.Duration
	options      EmbedOptions
	soft         bool
}

// NewEmbedStrategy builds an embed strategy. A soft strategy lets a fallback
// run when the embed fails.
func NewEmbedStrategy(widget WidgetLibrary, readyTimeout time.Duration, opts EmbedOptions, soft bool) *EmbedStrategy {
	if readyTimeout <= 0 {
		readyTimeout = DefaultReadyTimeout
	}
	return &EmbedStrategy{widget: widget, readyTimeout: readyTimeout, options: opts, soft: soft}
}

// Name implements Strategy.
func (s *EmbedStrategy) Name() string { return StrategyEmbed }

// Soft implements Strategy.
func (s *EmbedStrategy) Soft() bool { return s.soft }

// Attempt implements Strategy. The URL is validated before the widget
// library is consulted, so an invalid URL never waits on readiness.
func (s *EmbedStrategy) Attempt(ctx context.Context, target Target) Outcome {
	statusID, ok := posturl.StatusID(target.URL)
	if !ok {
		return Outcome{State: StateInvalidURL, Message: MessageInvalidURL}
	}

	timer := time.NewTimer(s.readyTimeout)
	defer timer.Stop()
	select {
	case <-s.widget.Ready():
	case <-timer.C:
		return Outcome{State: StateTimedOut, Message: MessageTimedOut, Detail: "The embed library did not load."}
	case <-ctx.Done():
		return Outcome{State: StateCanceled, Err: ctx.Err()}
	}

	el, err := s.widget.CreatePost(ctx, statusID, s.options)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Outcome{State: StateCanceled, Err: ctxErr}
	}
	if err != nil {
		return Outcome{State: StateFailedNetwork, Message: MessageLoadFailed, Detail: err.Error(), Err: err}
	}
	if el == nil || el.HTML == "" {
		return Outcome{State: StateFailedEmbeddable, Message: MessageNotEmbeddable}
	}
	return Outcome{State: StateSucceeded, HTML: el.HTML}
}

// FallbackStrategy renders a post card from a PostResolver. It makes exactly
// one resolver call per attempt.
type FallbackStrategy struct {
	name     string
	label    string
	resolver PostResolver
}

// NewFallbackStrategy builds a fallback strategy. label names the source in
// failure placeholders.
func NewFallbackStrategy(name, label string, resolver PostResolver) *FallbackStrategy {
	return &FallbackStrategy{name: name, label: label, resolver: resolver}
}

// Name implements Strategy.
func (s *FallbackStrategy) Name() string { return s.name }

// Soft implements Strategy.
func (s *FallbackStrategy) Soft() bool { return false }

// Attempt implements Strategy.
func (s *FallbackStrategy) Attempt(ctx context.Context, target Target) Outcome {
	if !posturl.IsValid(target.URL) {
		return Outcome{State: StateInvalidURL, Message: MessageInvalidURL}
	}
	p, err := s.resolver.ResolvePost(ctx, target.URL)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Outcome{State: StateCanceled, Err: ctxErr}
	}
	if err != nil {
		return Outcome{
			State:   StateFailedNetwork,
			Message: FallbackFailedMessage(s.label),
			Detail:  err.Error(),
			Err:     err,
		}
	}
	html, err := Card(p, target.URL)
	if err != nil {
		return Outcome{State: StateFailedNetwork, Message: FallbackFailedMessage(s.label), Detail: err.Error(), Err: err}
	}
	return Outcome{State: StateSucceeded, HTML: html}
}

// Table maps a rendering preference to its ordered strategies.
type Table map[record.APIType][]Strategy

// For returns the strategies for mode, falling back to the default mode.
func (t Table) For(mode record.APIType) []Strategy {
	if strategies, ok := t[mode]; ok {
		return strategies
	}
	return t[record.DefaultAPIType]
}

// Sources are the collaborators the default table is built from.
type Sources struct {
	Widget       WidgetLibrary
	ReadyTimeout time.Duration
	Options      EmbedOptions
	Scraper      PostResolver
	TwitterAPI   PostResolver
}

// DefaultTable wires the standard strategy order:
//
//	embed      official embed only
//	auto       official embed, then the scraper once
//	twitterapi the TwitterAPI.io client only
//	twscrape   the scraper only
func DefaultTable(src Sources) Table {
	scrape := NewFallbackStrategy(StrategyScrape, "twscrape", src.Scraper)
	return Table{
		record.APITypeEmbed: {NewEmbedStrategy(src.Widget, src.ReadyTimeout, src.Options, false)},
		record.APITypeAuto: {
			NewEmbedStrategy(src.Widget, src.ReadyTimeout, src.Options, true),
			scrape,
		},
		record.APITypeTwitterAPI: {NewFallbackStrategy(StrategyTwitterAPI, "TwitterAPI.io", src.TwitterAPI)},
		record.APITypeTwscrape:   {scrape},
	}
}
