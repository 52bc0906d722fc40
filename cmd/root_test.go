package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/postshelf/internal/config"
	"github.com/JakeFAU/postshelf/internal/record"
	"github.com/JakeFAU/postshelf/internal/render"
)

type fakeApp struct {
	ran      bool
	closed   bool
	warmed   bool
	ids      []string
	results  []render.Result
	renderEr error
	runErr   error
}

func (f *fakeApp) Run(context.Context) error {
	f.ran = true
	return f.runErr
}

func (f *fakeApp) Close(context.Context) error {
	f.closed = true
	return nil
}

func (f *fakeApp) Logger() *zap.Logger { return zap.NewNop() }

func (f *fakeApp) Warmup(context.Context) error {
	f.warmed = true
	return errors.New("no browser")
}

func (f *fakeApp) RenderRecords(_ context.Context, ids []string) ([]render.Result, error) {
	f.ids = ids
	return f.results, f.renderEr
}

func withFakeApp(t *testing.T, app *fakeApp) *config.Config {
	t.Helper()
	var seen config.Config
	prev := newApp
	newApp = func(_ context.Context, cfg config.Config) (App, error) {
		seen = cfg
		return app, nil
	}
	t.Cleanup(func() {
		newApp = prev
		cfgFile = ""
	})
	return &seen
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRenderCommandTable(t *testing.T) {
	app := &fakeApp{results: []render.Result{
		{RecordID: "r1", Mode: record.APITypeEmbed, State: render.StateSucceeded, Strategy: render.StrategyEmbed},
		{RecordID: "r2", Mode: record.APITypeAuto, State: render.StateFailedNetwork, Strategy: render.StrategyScrape, Note: "boom"},
	}}
	withFakeApp(t, app)

	out, err := execute(t, "render", "r1", "r2")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, app.ids)
	assert.True(t, app.warmed)
	assert.True(t, app.closed)
	assert.Contains(t, out, "RECORD")
	assert.Contains(t, out, "succeeded")
	assert.Contains(t, out, "boom")
}

func TestRenderCommandJSONDropsHTML(t *testing.T) {
	app := &fakeApp{results: []render.Result{
		{RecordID: "r1", Mode: record.APITypeEmbed, State: render.StateSucceeded, HTML: "<blockquote></blockquote>"},
	}}
	withFakeApp(t, app)

	out, err := execute(t, "render", "--json")
	require.NoError(t, err)
	assert.Empty(t, app.ids)
	assert.Contains(t, out, `"recordId": "r1"`)
	assert.NotContains(t, out, "blockquote")
}

func TestRenderCommandError(t *testing.T) {
	app := &fakeApp{renderEr: record.ErrNotFound}
	withFakeApp(t, app)

	_, err := execute(t, "render", "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, record.ErrNotFound)
}

func TestServeCommandUsesConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "postshelf.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 4111\n"), 0o600))
	app := &fakeApp{}
	seen := withFakeApp(t, app)

	_, err := execute(t, "serve", "--config", path)
	require.NoError(t, err)
	assert.True(t, app.ran)
	assert.Equal(t, 4111, seen.Server.Port)
}

func TestServeCommandMissingConfig(t *testing.T) {
	app := &fakeApp{}
	withFakeApp(t, app)

	_, err := execute(t, "serve", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.False(t, app.ran)
}
