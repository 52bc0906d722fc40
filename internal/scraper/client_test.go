package scraper_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/postshelf/internal/post"
	"github.com/JakeFAU/postshelf/internal/scraper"
)

type call struct {
	cmd     scraper.Command
	timeout time.Duration
}

type fakeRunner struct {
	mu     sync.Mutex
	calls  []call
	result scraper.Result
	err    error
}

func (f *fakeRunner) Run(_ context.Context, cmd scraper.Command, timeout time.Duration) (scraper.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{cmd: cmd, timeout: timeout})
	return f.result, f.err
}

func (f *fakeRunner) last(t *testing.T) call {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

const detailsJSON = `{
  "id": 1700000000000000001,
  "id_str": "1700000000000000001",
  "url": "https://x.com/jane/status/1700000000000000001",
  "date": "2023-09-08T12:00:00+00:00",
  "rawContent": "scraped text",
  "user": {"username": "jane", "displayname": "Jane", "profileImageUrl": "https://pbs.example/a.jpg"},
  "media": {
    "photos": [{"url": "https://pbs.example/p.jpg"}],
    "videos": [{"thumbnailUrl": "https://pbs.example/t.jpg", "variants": [
      {"contentType": "video/mp4", "bitrate": 100, "url": "https://video.example/low.mp4"},
      {"contentType": "video/mp4", "bitrate": 900, "url": "https://video.example/high.mp4"}
    ]}],
    "animated": []
  }
}`

func TestTweetDetails(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: scraper.Result{Stdout: "\n" + detailsJSON + "\n", Stderr: "WARNING: slow"}}
	client := scraper.NewClient(runner, scraper.Timeouts{}, nil)

	got, err := client.TweetDetails(context.Background(), "1700000000000000001")
	require.NoError(t, err)

	c := runner.last(t)
	assert.Equal(t, []string{"tweet_details", "1700000000000000001"}, c.cmd.Args)
	assert.Equal(t, 30*time.Second, c.timeout)

	assert.Equal(t, "1700000000000000001", got.ID)
	assert.Equal(t, "scraped text", got.Text)
	assert.Equal(t, "jane", got.Author.Handle)
	assert.Equal(t, time.Date(2023, 9, 8, 12, 0, 0, 0, time.UTC), got.CreatedAt)
	lead, ok := got.Lead()
	require.True(t, ok)
	assert.Equal(t, post.Media{Type: post.MediaVideo, URL: "https://video.example/high.mp4", PreviewURL: "https://pbs.example/t.jpg"}, lead)
}

func TestTweetDetailsFailures(t *testing.T) {
	t.Parallel()

	t.Run("Empty", func(t *testing.T) {
		t.Parallel()
		client := scraper.NewClient(&fakeRunner{result: scraper.Result{Stdout: "  \n"}}, scraper.Timeouts{}, nil)
		_, err := client.TweetDetails(context.Background(), "1")
		require.ErrorIs(t, err, scraper.ErrEmptyOutput)
	})

	t.Run("NotJSON", func(t *testing.T) {
		t.Parallel()
		client := scraper.NewClient(&fakeRunner{result: scraper.Result{Stdout: "oops"}}, scraper.Timeouts{}, nil)
		_, err := client.TweetDetails(context.Background(), "1")
		require.Error(t, err)
	})

	t.Run("NotInstalled", func(t *testing.T) {
		t.Parallel()
		client := scraper.NewClient(&fakeRunner{err: scraper.ErrNotInstalled}, scraper.Timeouts{}, nil)
		_, err := client.TweetDetails(context.Background(), "1")
		require.ErrorIs(t, err, scraper.ErrNotInstalled)
	})

	t.Run("NonNumericID", func(t *testing.T) {
		t.Parallel()
		runner := &fakeRunner{}
		client := scraper.NewClient(runner, scraper.Timeouts{}, nil)
		_, err := client.TweetDetails(context.Background(), "1; rm -rf /")
		require.ErrorIs(t, err, scraper.ErrInvalidURL)
		assert.Empty(t, runner.calls)
	})
}

func TestInstalled(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		runner *fakeRunner
		want   bool
	}{
		{"ok", &fakeRunner{}, true},
		{"no accounts still installed", &fakeRunner{err: errors.New("exit status 1")}, true},
		{"missing binary", &fakeRunner{err: scraper.ErrNotInstalled}, false},
		{"shell not found", &fakeRunner{result: scraper.Result{Stderr: "sh: twscrape: not found"}, err: errors.New("exit status 127")}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			client := scraper.NewClient(tc.runner, scraper.Timeouts{}, nil)
			assert.Equal(t, tc.want, client.Installed(context.Background()))
			assert.Equal(t, 5*time.Second, tc.runner.last(t).timeout)
		})
	}
}

func TestParseAccounts(t *testing.T) {
	t.Parallel()

	out := `username  logged_in  active  last_used            total_req  error_msg
alice     True       True    2024-05-01 10:00:00  12         None
bob       False      False   None                 0          None
broken
`
	got := scraper.ParseAccounts(out)
	require.Len(t, got, 2)

	require.NotNil(t, got[0].LastUsed)
	assert.Equal(t, "2024-05-01 10:00:00", *got[0].LastUsed)
	assert.Equal(t, scraper.Account{Username: "alice", LoggedIn: true, Active: true, LastUsed: got[0].LastUsed, TotalReq: 12}, got[0])
	assert.Equal(t, scraper.Account{Username: "bob"}, got[1])

	assert.Empty(t, scraper.ParseAccounts("username logged_in active\n"))
	assert.NotNil(t, scraper.ParseAccounts(""))
}

func TestAddAccount(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: scraper.Result{Stderr: "WARNING: something"}}
	client := scraper.NewClient(runner, scraper.Timeouts{Account: time.Second}, nil)

	err := client.AddAccount(context.Background(), scraper.Credentials{
		Username: "alice", Password: "pw", Email: "a@example.com",
	})
	require.NoError(t, err)

	c := runner.last(t)
	assert.Equal(t, []string{"add_accounts", "/dev/stdin", "username:password:email:email_password"}, c.cmd.Args)
	assert.Equal(t, "alice:pw:a@example.com:\n", c.cmd.Stdin)
	assert.Equal(t, time.Second, c.timeout)
}

func TestAddAccountRejects(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	client := scraper.NewClient(runner, scraper.Timeouts{}, nil)

	err := client.AddAccount(context.Background(), scraper.Credentials{Username: "alice", Email: "a@example.com"})
	require.ErrorIs(t, err, scraper.ErrInvalidAccount)

	err = client.AddAccount(context.Background(), scraper.Credentials{Username: "alice", Password: "p:w", Email: "a@example.com"})
	require.ErrorIs(t, err, scraper.ErrInvalidAccount)
	assert.Empty(t, runner.calls)

	failing := scraper.NewClient(&fakeRunner{result: scraper.Result{Stderr: "Error: duplicate account"}}, scraper.Timeouts{}, nil)
	err = failing.AddAccount(context.Background(), scraper.Credentials{Username: "alice", Password: "pw", Email: "a@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestDeleteAndLogin(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	runner := &fakeRunner{result: scraper.Result{Stdout: "done", Stderr: "WARNING: ignore me\nreal problem"}}
	client := scraper.NewClient(runner, scraper.Timeouts{}, zap.New(core))

	require.NoError(t, client.DeleteAccount(context.Background(), "alice"))
	assert.Equal(t, []string{"del_accounts", "alice"}, runner.last(t).cmd.Args)
	require.ErrorIs(t, client.DeleteAccount(context.Background(), "a b"), scraper.ErrInvalidAccount)

	res, err := client.LoginAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", res.Output)
	assert.Equal(t, 180*time.Second, runner.last(t).timeout)

	entries := logs.FilterMessage("scraper stderr").All()
	require.NotEmpty(t, entries)
	assert.Equal(t, "real problem", entries[0].ContextMap()["stderr"])
}

func TestResolver(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: scraper.Result{Stdout: detailsJSON}}
	resolver := scraper.NewResolver(scraper.NewClient(runner, scraper.Timeouts{}, nil))

	got, err := resolver.ResolvePost(context.Background(), "https://x.com/jane/status/1700000000000000001")
	require.NoError(t, err)
	assert.Equal(t, "jane", got.Author.Handle)

	_, err = resolver.ResolvePost(context.Background(), "https://x.com/jane")
	require.ErrorIs(t, err, scraper.ErrInvalidURL)
}
