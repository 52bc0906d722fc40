// Package server builds the postshelf application graph and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/postshelf/internal/api"
	"github.com/JakeFAU/postshelf/internal/clock/system"
	"github.com/JakeFAU/postshelf/internal/config"
	collyfetcher "github.com/JakeFAU/postshelf/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/postshelf/internal/fetcher/headless"
	"github.com/JakeFAU/postshelf/internal/id/uuid"
	"github.com/JakeFAU/postshelf/internal/logging"
	"github.com/JakeFAU/postshelf/internal/metrics"
	"github.com/JakeFAU/postshelf/internal/oembed"
	"github.com/JakeFAU/postshelf/internal/progress"
	progresssinks "github.com/JakeFAU/postshelf/internal/progress/sinks"
	"github.com/JakeFAU/postshelf/internal/record"
	"github.com/JakeFAU/postshelf/internal/render"
	"github.com/JakeFAU/postshelf/internal/scraper"
	"github.com/JakeFAU/postshelf/internal/storage/jsonfile"
	"github.com/JakeFAU/postshelf/internal/telemetry"
	"github.com/JakeFAU/postshelf/internal/twitterapi"
	"github.com/JakeFAU/postshelf/internal/videolookup"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// App contains the application's dependencies.
type App struct {
	cfg          config.Config
	logger       *zap.Logger
	apiServer    *api.Server
	records      *jsonfile.RecordStore
	orchestrator *render.Orchestrator
	progressHub  *progress.Hub
	statuses     *progresssinks.StatusSink
	headless     *headlessfetcher.Widget
	tracer       *sdktrace.TracerProvider

	closeOnce sync.Once
}

// Options adjusts Build for embedding and tests.
type Options struct {
	// Logger replaces the configured zap logger.
	Logger *zap.Logger
	// Registerer receives the progress collectors. Nil uses the default
	// Prometheus registerer.
	Registerer prometheus.Registerer
}

// Build creates the application's dependencies. The records file is created
// when missing; failing to do so is fatal.
func Build(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = logging.New(cfg.Logging.Development, cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("logger init failed: %w", err)
		}
		zap.ReplaceGlobals(logger)
	}
	metrics.Init()

	app := &App{cfg: cfg, logger: logger}
	app.logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.String("records_path", cfg.Storage.RecordsPath),
		zap.Bool("headless", cfg.Headless.Enabled),
	)

	if err := app.setupStorage(ctx); err != nil {
		return nil, err
	}
	settings, err := jsonfile.NewSettingsStore(cfg.Storage.SettingsPath, logger.Named("settings"))
	if err != nil {
		return nil, fmt.Errorf("settings store init failed: %w", err)
	}

	if cfg.Tracing.Enabled {
		app.tracer, err = telemetry.InitTracerProvider(ctx, telemetry.Config{
			ServiceName: cfg.Tracing.ServiceName,
			SampleRatio: cfg.Tracing.SampleRatio,
			Exporter:    telemetry.NewLogExporter(logger.Named("trace")),
		})
		if err != nil {
			return nil, fmt.Errorf("tracer init failed: %w", err)
		}
	}

	fetcher := collyfetcher.New(collyfetcher.Config{UserAgent: cfg.HTTP.UserAgent})
	oembedClient := oembed.NewClient(oembed.Config{
		Endpoint: cfg.OEmbed.URL(),
		Timeout:  cfg.OEmbed.Timeout,
	}, fetcher, logger.Named("oembed"))
	apiClient := twitterapi.NewClient(twitterapi.Config{
		BaseURL: cfg.TwitterAPI.URL(),
		Timeout: cfg.TwitterAPI.Timeout,
	}, fetcher, logger.Named("twitterapi"))
	videos := videolookup.NewClient(videolookup.Config{
		BaseURL: cfg.Video.URL(),
		Timeout: cfg.Video.Timeout,
	}, fetcher, logger.Named("videolookup"))

	runner, err := scraper.NewExecRunner(cfg.Scraper.Command)
	if err != nil {
		return nil, fmt.Errorf("scraper init failed: %w", err)
	}
	scraperClient := scraper.NewClient(runner, scraper.Timeouts{
		Health:  cfg.Scraper.HealthTimeout,
		Fetch:   cfg.Scraper.FetchTimeout,
		Account: cfg.Scraper.AccountTimeout,
		Login:   cfg.Scraper.LoginTimeout,
	}, logger.Named("scraper"))

	widget, err := app.setupWidget(oembedClient)
	if err != nil {
		return nil, err
	}

	emitter, err := app.setupProgress(opts.Registerer)
	if err != nil {
		return nil, err
	}

	table := render.DefaultTable(render.Sources{
		Widget:       widget,
		ReadyTimeout: cfg.Render.ReadyTimeout,
		Options:      render.DefaultEmbedOptions,
		Scraper:      scraper.NewResolver(scraperClient),
		TwitterAPI:   twitterapi.NewResolver(apiClient, settings),
	})
	renderCfg := render.Config{
		SettleDelay:    cfg.Render.SettleDelay,
		AttemptTimeout: cfg.Render.AttemptTimeout,
	}
	if app.tracer != nil {
		renderCfg.TracerProvider = app.tracer
	}
	app.orchestrator = render.NewOrchestrator(table, emitter, renderCfg, logger.Named("render"))

	app.apiServer = api.NewServer(api.Deps{
		Records:  app.records,
		IDs:      uuid.New(),
		Clock:    system.New(),
		Titles:   oembedClient,
		Videos:   videos,
		Posts:    apiClient,
		Settings: settings,
		Accounts: scraperClient,
		Renderer: app.orchestrator,
		Statuses: app.statuses,
		Ready:    app.ready,
		Logger:   logger.Named("api"),
	}, api.Options{
		RequestTimeout: cfg.Server.RequestTimeout,
		WidgetsURL:     cfg.Headless.WidgetsURL,
	})

	return app, nil
}

func (a *App) setupStorage(ctx context.Context) error {
	var err error
	a.records, err = jsonfile.NewRecordStore(a.cfg.Storage.RecordsPath, a.logger.Named("records"))
	if err != nil {
		return fmt.Errorf("record store init failed: %w", err)
	}
	if err := a.records.Init(ctx); err != nil {
		return fmt.Errorf("record store init failed: %w", err)
	}
	a.logger.Info("record store ready", zap.String("path", a.records.Path()))
	return nil
}

func (a *App) setupWidget(client *oembed.Client) (render.WidgetLibrary, error) {
	if !a.cfg.Headless.Enabled {
		a.logger.Info("using oEmbed widget")
		return oembed.NewWidget(client), nil
	}
	var err error
	a.headless, err = headlessfetcher.NewChromedp(headlessfetcher.Config{
		MaxParallel:       a.cfg.Headless.MaxParallel,
		UserAgent:         a.cfg.HTTP.UserAgent,
		NavigationTimeout: a.cfg.Headless.NavTimeout,
		WidgetsURL:        a.cfg.Headless.WidgetsURL,
	}, a.logger.Named("headless"))
	if err != nil {
		return nil, fmt.Errorf("headless widget init failed: %w", err)
	}
	a.logger.Info("using headless widget", zap.Int("max_parallel", a.cfg.Headless.MaxParallel))
	return a.headless, nil
}

func (a *App) setupProgress(reg prometheus.Registerer) (progress.Emitter, error) {
	promSink, err := progresssinks.NewPrometheusSink(reg)
	if err != nil {
		return nil, fmt.Errorf("progress metrics init failed: %w", err)
	}
	a.statuses = progresssinks.NewStatusSink()
	hubCfg := progress.Config{
		BufferSize:     a.cfg.Progress.BufferSize,
		MaxBatchEvents: a.cfg.Progress.MaxBatch,
		MaxBatchWait:   a.cfg.Progress.MaxBatchWait,
		Logger:         a.logger.Named("progress_hub"),
	}
	a.progressHub = progress.NewHub(hubCfg,
		progresssinks.NewLogSink(a.logger.Named("progress_log")),
		promSink,
		a.statuses,
	)
	a.logger.Info("progress hub initialized",
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
	)
	return a.progressHub, nil
}

// ready fails while the records file cannot be read.
func (a *App) ready(ctx context.Context) error {
	if _, err := a.records.List(ctx); err != nil {
		return fmt.Errorf("records unavailable: %w", err)
	}
	return nil
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Records returns the record store.
func (a *App) Records() *jsonfile.RecordStore {
	return a.records
}

// Orchestrator returns the render orchestrator.
func (a *App) Orchestrator() *render.Orchestrator {
	return a.orchestrator
}

// Logger returns the application logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Warmup loads the headless widget library when headless rendering is on.
func (a *App) Warmup(ctx context.Context) error {
	if a.headless == nil {
		return nil
	}
	return a.headless.Warmup(ctx)
}

// Run starts the application and blocks until the context is canceled or
// SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.headless != nil {
		go func() {
			if err := a.Warmup(ctx); err != nil && ctx.Err() == nil {
				a.logger.Warn("headless warmup failed", zap.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           a.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	closeErr := a.Close(shutdownCtx)
	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return closeErr
	}
}

// RenderRecords renders the records with the given ids, or every record when
// ids is empty, on a fresh board. Results follow store order.
func (a *App) RenderRecords(ctx context.Context, ids []string) ([]render.Result, error) {
	records, err := a.records.List(ctx)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	found := make(map[string]bool, len(ids))
	targets := make([]render.Target, 0, len(records))
	for _, rec := range records {
		if len(ids) > 0 && !wanted[rec.ID] {
			continue
		}
		found[rec.ID] = true
		targets = append(targets, render.TargetFor(rec))
	}
	for _, id := range ids {
		if !found[id] {
			return nil, fmt.Errorf("%w: %s", record.ErrNotFound, id)
		}
	}
	_, results, err := a.orchestrator.RenderAll(ctx, targets)
	return results, err
}

// Close tears down the render board and flushes observability. Only the first
// call has an effect.
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() { a.close(ctx) })
	return nil
}

func (a *App) close(ctx context.Context) {
	if a.orchestrator != nil {
		a.orchestrator.Close()
	}
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.headless != nil {
		a.headless.Close()
	}
	a.logger.Info("shutdown complete")
	a.closeObservability(ctx)
}

func (a *App) closeObservability(ctx context.Context) {
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	// Sync fails on terminals; the error carries no signal.
	_ = a.logger.Sync()
}
