package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/postshelf/internal/metrics"
	"github.com/JakeFAU/postshelf/internal/post"
	"github.com/JakeFAU/postshelf/internal/progress/sinks"
	"github.com/JakeFAU/postshelf/internal/record"
	"github.com/JakeFAU/postshelf/internal/render"
	"github.com/JakeFAU/postshelf/internal/scraper"
	"github.com/JakeFAU/postshelf/internal/videolookup"
)

// DefaultRequestTimeout stays above the scraper's login ceiling.
const DefaultRequestTimeout = 200 * time.Second

// TitleFetcher derives a record title from its post URL.
type TitleFetcher interface {
	FetchTitle(ctx context.Context, rawURL string) string
}

// VideoFinder looks up downloadable videos of a post.
type VideoFinder interface {
	Lookup(ctx context.Context, rawURL string) ([]videolookup.Video, error)
}

// PostLookup resolves a post through the paid API.
type PostLookup interface {
	Lookup(ctx context.Context, apiKey, rawURL string) (post.Post, error)
}

// SettingsStore persists the API key.
type SettingsStore interface {
	TwitterAPIKey(ctx context.Context) string
	SetTwitterAPIKey(ctx context.Context, key string) error
}

// AccountPool manages the scraper's accounts.
type AccountPool interface {
	Installed(ctx context.Context) bool
	ListAccounts(ctx context.Context) ([]scraper.Account, error)
	AddAccount(ctx context.Context, creds scraper.Credentials) error
	DeleteAccount(ctx context.Context, username string) error
	LoginAccounts(ctx context.Context) (scraper.LoginResult, error)
}

// Renderer runs render attempts.
type Renderer interface {
	Render(ctx context.Context, containers render.ContainerResolver, target render.Target) render.Result
	RenderAll(ctx context.Context, targets []render.Target) (*render.Board, []render.Result, error)
	Forget(recordID string)
}

// StatusReader exposes the latest render outcome per record.
type StatusReader interface {
	Get(recordID string) (sinks.RenderStatus, bool)
	List(state string, limit, offset int) []sinks.RenderStatus
	Forget(recordID string)
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Records  record.Store
	IDs      record.IDGenerator
	Clock    record.Clock
	Titles   TitleFetcher
	Videos   VideoFinder
	Posts    PostLookup
	Settings SettingsStore
	Accounts AccountPool
	Renderer Renderer
	Statuses StatusReader
	// Ready reports whether the server can serve traffic; nil means always.
	Ready  func(ctx context.Context) error
	Logger *zap.Logger
}

// Options tunes the server.
type Options struct {
	RequestTimeout time.Duration
	// WidgetsURL is the embed library the index page loads.
	WidgetsURL string
}

// Server wires HTTP handlers to the record store, the renderer and the
// upstream integrations.
type Server struct {
	router chi.Router
	deps   Deps
	opts   Options
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(deps Deps, opts Options) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.WidgetsURL == "" {
		opts.WidgetsURL = defaultWidgetsURL
	}
	s := &Server{deps: deps, opts: opts, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(opts.RequestTimeout))

	r.Get("/", s.index)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/records", func(r chi.Router) {
			r.Get("/", s.listRecords)
			r.Post("/", s.createRecord)
			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", s.updateRecord)
				r.Delete("/", s.deleteRecord)
				r.Get("/render", s.renderRecord)
			})
		})
		r.Route("/render", func(r chi.Router) {
			r.Post("/", s.renderAll)
			r.Get("/status", s.listRenderStatus)
		})
		r.Post("/download/video", s.downloadVideo)
		r.Post("/twitterapi/tweet", s.lookupTweet)
		r.Route("/config", func(r chi.Router) {
			r.Get("/", s.getConfig)
			r.Post("/", s.setConfig)
			r.Post("/twitterapi", s.setTwitterAPIKey)
		})
		r.Route("/twscrape", func(r chi.Router) {
			r.Get("/accounts", s.listAccounts)
			r.Post("/accounts", s.addAccount)
			r.Delete("/accounts", s.deleteAccount)
			r.Post("/login", s.loginAccounts)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		if err := s.deps.Ready(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
