package scraper

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExecRunner(t *testing.T) {
	t.Parallel()

	r, err := NewExecRunner(`uv run "twscrape cli" --db accounts.db`)
	require.NoError(t, err)
	assert.Equal(t, "uv", r.binary)
	assert.Equal(t, []string{"run", "twscrape cli", "--db", "accounts.db"}, r.baseArgs)

	_, err = NewExecRunner("   ")
	require.Error(t, err)
	_, err = NewExecRunner(`twscrape "unterminated`)
	require.Error(t, err)
}

func TestExecRunnerRun(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	r, err := NewExecRunner(`sh -c 'cat; echo "$0" >&2'`)
	require.NoError(t, err)

	res, err := r.Run(context.Background(), Command{Args: []string{"arg0"}, Stdin: "from stdin"}, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "from stdin", res.Stdout)
	assert.Equal(t, "arg0\n", res.Stderr)
}

func TestExecRunnerTimeout(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	r, err := NewExecRunner("sleep")
	require.NoError(t, err)

	_, err = r.Run(context.Background(), Command{Args: []string{"5"}}, 50*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecRunnerMissingBinary(t *testing.T) {
	t.Parallel()

	r, err := NewExecRunner("postshelf-no-such-binary-4242")
	require.NoError(t, err)

	_, err = r.Run(context.Background(), Command{Args: []string{"accounts"}}, time.Second)
	require.ErrorIs(t, err, ErrNotInstalled)
	assert.False(t, NewClient(r, Timeouts{}, nil).Installed(context.Background()))
}
