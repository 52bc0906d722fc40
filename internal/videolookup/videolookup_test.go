package videolookup_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	collyfetcher "github.com/JakeFAU/postshelf/internal/fetcher/colly"
	"github.com/JakeFAU/postshelf/internal/videolookup"
)

func newClient(t *testing.T, handler http.HandlerFunc) *videolookup.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	fetcher := collyfetcher.New(collyfetcher.Config{Timeout: 2 * time.Second})
	return videolookup.NewClient(videolookup.Config{BaseURL: srv.URL}, fetcher, nil)
}

func TestLookup(t *testing.T) {
	t.Parallel()

	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jane/status/99", r.URL.Path)
		_, _ = w.Write([]byte(`{"code":200,"message":"OK","tweet":{"media":{"videos":[
			{"url":"https://video.example/a.mp4","thumbnail_url":"https://pbs.example/a.jpg","width":1280,"height":720,"format":"video/mp4","type":"video"},
			{"url":"https://video.example/b.mp4","type":"gif"}
		]}}}`))
	})

	got, err := client.Lookup(context.Background(), "https://twitter.com/jane/status/99?s=1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, videolookup.Video{
		URL:          "https://video.example/a.mp4",
		ThumbnailURL: "https://pbs.example/a.jpg",
		Width:        1280,
		Height:       720,
		Format:       "video/mp4",
		Type:         "video",
	}, got[0])
	assert.Equal(t, "gif", got[1].Type)
}

func TestLookupErrors(t *testing.T) {
	t.Parallel()

	t.Run("NoVideo", func(t *testing.T) {
		t.Parallel()
		client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"code":200,"tweet":{"media":{}}}`))
		})
		_, err := client.Lookup(context.Background(), "https://x.com/jane/status/1")
		require.ErrorIs(t, err, videolookup.ErrNoVideo)
	})

	t.Run("NotFound", func(t *testing.T) {
		t.Parallel()
		client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"code":404}`, http.StatusNotFound)
		})
		_, err := client.Lookup(context.Background(), "https://x.com/jane/status/1")
		require.ErrorIs(t, err, videolookup.ErrNotFound)
	})

	t.Run("ServerError", func(t *testing.T) {
		t.Parallel()
		client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := client.Lookup(context.Background(), "https://x.com/jane/status/1")
		require.ErrorIs(t, err, videolookup.ErrUpstream)
	})

	t.Run("InvalidURL", func(t *testing.T) {
		t.Parallel()
		client := newClient(t, func(http.ResponseWriter, *http.Request) {})
		_, err := client.Lookup(context.Background(), "https://example.com/nope")
		require.ErrorIs(t, err, videolookup.ErrInvalidURL)
	})
}
