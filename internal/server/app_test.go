package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/postshelf/internal/config"
	"github.com/JakeFAU/postshelf/internal/record"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	dir := t.TempDir()
	cfg.Storage.RecordsPath = filepath.Join(dir, "data", "records.json")
	cfg.Storage.SettingsPath = filepath.Join(dir, "config.json")
	return cfg
}

func buildApp(t *testing.T, cfg config.Config) (*App, error) {
	t.Helper()
	return Build(context.Background(), cfg, Options{
		Logger:     zap.NewNop(),
		Registerer: prometheus.NewRegistry(),
	})
}

func TestBuildServesHealthEndpoints(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	app, err := buildApp(t, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, app.Close(context.Background())) })

	data, err := os.ReadFile(cfg.Storage.RecordsPath)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	for _, path := range []string{"/healthz", "/readyz", "/api/records"} {
		rec := httptest.NewRecorder()
		app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
	assert.NotNil(t, app.Orchestrator())
	assert.Equal(t, cfg.Storage.RecordsPath, app.Records().Path())
	assert.NoError(t, app.Warmup(context.Background()), "warmup is a no-op without headless")
}

func TestBuildNotReadyWhenRecordsVanish(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	app, err := buildApp(t, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, app.Close(context.Background())) })

	require.NoError(t, os.Remove(cfg.Storage.RecordsPath))
	require.NoError(t, os.Mkdir(cfg.Storage.RecordsPath, 0o750))

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestBuildFailsWhenRecordsCannotBeCreated(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	cfg.Storage.RecordsPath = filepath.Join(blocker, "records.json")

	_, err := buildApp(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record store init failed")
}

func TestBuildRejectsBadScraperCommand(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Scraper.Command = `twscrape --db "unterminated`

	_, err := buildApp(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scraper init failed")
}

func TestBuildWithTracing(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Tracing.Enabled = true
	app, err := buildApp(t, cfg)
	require.NoError(t, err)
	require.NotNil(t, app.tracer)
	require.NoError(t, app.Close(context.Background()))
}

func TestRenderRecordsUnknownID(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Render.SettleDelay = 0
	app, err := buildApp(t, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, app.Close(context.Background())) })

	results, err := app.RenderRecords(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = app.RenderRecords(context.Background(), []string{"missing"})
	require.ErrorIs(t, err, record.ErrNotFound)
}
