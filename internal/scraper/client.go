// Package scraper drives the twscrape CLI: installation checks, post lookups
// and account management.
package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/postshelf/internal/post"
)

var (
	// ErrNotInstalled is returned when the CLI binary cannot be found.
	ErrNotInstalled = errors.New("scraper: cli not installed")
	// ErrEmptyOutput is returned when a lookup printed nothing.
	ErrEmptyOutput = errors.New("scraper: no data returned")
	// ErrInvalidAccount is returned for incomplete or malformed credentials.
	ErrInvalidAccount = errors.New("scraper: invalid account")
	// ErrInvalidURL is returned when no status id can be extracted.
	ErrInvalidURL = errors.New("scraper: invalid post url")
)

// accountFormat is the field layout handed to add_accounts.
const accountFormat = "username:password:email:email_password"

// Timeouts bounds each kind of CLI call.
type Timeouts struct {
	Health  time.Duration
	Fetch   time.Duration
	Account time.Duration
	Login   time.Duration
}

// DefaultTimeouts returns the stock per-call ceilings.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Health:  5 * time.Second,
		Fetch:   30 * time.Second,
		Account: 10 * time.Second,
		Login:   180 * time.Second,
	}
}

// Account is one row of the accounts table.
type Account struct {
	Username string  `json:"username"`
	LoggedIn bool    `json:"logged_in"`
	Active   bool    `json:"active"`
	LastUsed *string `json:"last_used"`
	TotalReq int     `json:"total_req"`
}

// Credentials are the fields add_accounts needs.
type Credentials struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	Email         string `json:"email"`
	EmailPassword string `json:"emailPassword"`
}

// LoginResult is the outcome of login_accounts.
type LoginResult struct {
	Output  string `json:"output"`
	Message string `json:"message"`
}

// Client wraps a Runner with the scraper's commands.
type Client struct {
	runner   Runner
	timeouts Timeouts
	logger   *zap.Logger
}

// NewClient builds a Client. Zero timeouts fall back to DefaultTimeouts.
func NewClient(runner Runner, timeouts Timeouts, logger *zap.Logger) *Client {
	def := DefaultTimeouts()
	if timeouts.Health <= 0 {
		timeouts.Health = def.Health
	}
	if timeouts.Fetch <= 0 {
		timeouts.Fetch = def.Fetch
	}
	if timeouts.Account <= 0 {
		timeouts.Account = def.Account
	}
	if timeouts.Login <= 0 {
		timeouts.Login = def.Login
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{runner: runner, timeouts: timeouts, logger: logger}
}

// Installed reports whether the CLI can be executed. Any failure other than a
// missing binary (no accounts, bad database) still counts as installed.
func (c *Client) Installed(ctx context.Context) bool {
	res, err := c.runner.Run(ctx, Command{Args: []string{"accounts"}}, c.timeouts.Health)
	if errors.Is(err, ErrNotInstalled) {
		return false
	}
	if strings.Contains(res.Stderr, "not found") {
		return false
	}
	if err != nil && strings.Contains(err.Error(), "not found") {
		return false
	}
	return true
}

// TweetDetails fetches one post by status id.
func (c *Client) TweetDetails(ctx context.Context, statusID string) (post.Post, error) {
	if _, err := strconv.ParseUint(statusID, 10, 64); err != nil {
		return post.Post{}, fmt.Errorf("%w: status id %q", ErrInvalidURL, statusID)
	}
	res, err := c.runner.Run(ctx, Command{Args: []string{"tweet_details", statusID}}, c.timeouts.Fetch)
	c.logStderr("tweet_details", res.Stderr)
	if err != nil {
		return post.Post{}, fmt.Errorf("tweet_details: %w", err)
	}
	out := strings.TrimSpace(res.Stdout)
	if out == "" {
		return post.Post{}, ErrEmptyOutput
	}
	var raw scrapedTweet
	if err := json.NewDecoder(strings.NewReader(out)).Decode(&raw); err != nil {
		return post.Post{}, fmt.Errorf("decode tweet_details output: %w", err)
	}
	return raw.normalize(), nil
}

// ListAccounts parses the accounts table.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	res, err := c.runner.Run(ctx, Command{Args: []string{"accounts"}}, c.timeouts.Account)
	if err != nil {
		return nil, fmt.Errorf("accounts: %w", err)
	}
	return ParseAccounts(res.Stdout), nil
}

// ParseAccounts reads the whitespace separated table printed by the accounts
// command. The first line is a header.
func ParseAccounts(out string) []Account {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	accounts := []Account{}
	if len(lines) <= 1 {
		return accounts
	}
	for _, line := range lines[1:] {
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		acc := Account{
			Username: parts[0],
			LoggedIn: parts[1] == "True",
		}
		if len(parts) > 2 {
			acc.Active = parts[2] == "True"
		}
		rest := parts[min(3, len(parts)):]
		if len(rest) > 0 && rest[0] != "None" {
			last := rest[0]
			// last_used may be printed as "YYYY-MM-DD HH:MM:SS".
			if len(rest) > 1 && strings.Contains(rest[1], ":") {
				last += " " + rest[1]
				rest = rest[1:]
			}
			acc.LastUsed = &last
		}
		if len(rest) > 1 {
			acc.TotalReq, _ = strconv.Atoi(rest[1])
		}
		accounts = append(accounts, acc)
	}
	return accounts
}

// AddAccount registers credentials. The account line travels on stdin.
func (c *Client) AddAccount(ctx context.Context, creds Credentials) error {
	if err := creds.validate(); err != nil {
		return err
	}
	line := strings.Join([]string{creds.Username, creds.Password, creds.Email, creds.EmailPassword}, ":") + "\n"
	res, err := c.runner.Run(ctx, Command{
		Args:  []string{"add_accounts", "/dev/stdin", accountFormat},
		Stdin: line,
	}, c.timeouts.Account)
	c.logger.Info("add_accounts finished", zap.String("username", creds.Username), zap.Error(err))
	if err != nil {
		return fmt.Errorf("add_accounts: %w", err)
	}
	if msg := significantStderr(res.Stderr); strings.Contains(strings.ToLower(msg), "error") {
		return fmt.Errorf("add_accounts: %s", msg)
	}
	return nil
}

// DeleteAccount removes an account by username.
func (c *Client) DeleteAccount(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" || strings.ContainsAny(username, " \t\n:") {
		return fmt.Errorf("%w: username", ErrInvalidAccount)
	}
	res, err := c.runner.Run(ctx, Command{Args: []string{"del_accounts", username}}, c.timeouts.Account)
	c.logStderr("del_accounts", res.Stderr)
	if err != nil {
		return fmt.Errorf("del_accounts: %w", err)
	}
	return nil
}

// LoginAccounts runs the login flow for every stored account.
func (c *Client) LoginAccounts(ctx context.Context) (LoginResult, error) {
	res, err := c.runner.Run(ctx, Command{Args: []string{"login_accounts"}}, c.timeouts.Login)
	c.logStderr("login_accounts", res.Stderr)
	if err != nil {
		return LoginResult{}, fmt.Errorf("login_accounts: %w", err)
	}
	return LoginResult{Output: res.Stdout, Message: "login flow finished"}, nil
}

func (c Credentials) validate() error {
	fields := map[string]string{
		"username": c.Username,
		"password": c.Password,
		"email":    c.Email,
	}
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidAccount, name)
		}
	}
	for _, value := range []string{c.Username, c.Password, c.Email, c.EmailPassword} {
		if strings.ContainsAny(value, ":\n\r") {
			return fmt.Errorf("%w: fields must not contain ':' or line breaks", ErrInvalidAccount)
		}
	}
	return nil
}

func (c *Client) logStderr(op, stderr string) {
	if msg := significantStderr(stderr); msg != "" {
		c.logger.Warn("scraper stderr", zap.String("op", op), zap.String("stderr", msg))
	}
}

// significantStderr drops lines that only carry warnings.
func significantStderr(stderr string) string {
	var kept []string
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, "WARNING") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
