package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"

	shellwords "github.com/junegunn/go-shellwords"
)

var commandContext = exec.CommandContext

// Command is one CLI invocation. Args follow the configured binary; Stdin,
// when set, is written to the process input.
type Command struct {
	Args  []string
	Stdin string
}

// Result carries the captured process output.
type Result struct {
	Stdout string
	Stderr string
}

// Runner executes scraper CLI commands.
type Runner interface {
	Run(ctx context.Context, cmd Command, timeout time.Duration) (Result, error)
}

// ExecRunner runs the CLI as a child process. Arguments are passed as an argv
// vector and never through a shell.
type ExecRunner struct {
	binary   string
	baseArgs []string
}

var _ Runner = (*ExecRunner)(nil)

// NewExecRunner splits command (for example "twscrape" or
// "uv run twscrape --db accounts.db") into binary and leading arguments.
func NewExecRunner(command string) (*ExecRunner, error) {
	words, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse scraper command: %w", err)
	}
	if len(words) == 0 {
		return nil, errors.New("scraper command is empty")
	}
	return &ExecRunner{binary: words[0], baseArgs: words[1:]}, nil
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, command Command, timeout time.Duration) (Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	args := append(append([]string(nil), r.baseArgs...), command.Args...)
	cmd := commandContext(ctx, r.binary, args...) //nolint:gosec
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if command.Stdin != "" {
		cmd.Stdin = strings.NewReader(command.Stdin)
	}

	err := cmd.Run()
	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return result, nil
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return result, fmt.Errorf("%w: %w", ErrNotInstalled, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, fmt.Errorf("%s %s: %w", r.binary, firstArg(command.Args), ctxErr)
	}
	return result, fmt.Errorf("%s %s: %w", r.binary, firstArg(command.Args), err)
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
