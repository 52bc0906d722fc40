package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Settings is the persisted configuration object.
type Settings struct {
	TwitterAPIKey string `json:"twitterApiKey"`
}

// SettingsStore keeps Settings in a JSON object file.
type SettingsStore struct {
	path   string
	logger *zap.Logger
}

// NewSettingsStore validates path and prepares its directory.
func NewSettingsStore(path string, logger *zap.Logger) (*SettingsStore, error) {
	if err := ensureParentDir(path); err != nil {
		return nil, fmt.Errorf("settings file: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsStore{path: path, logger: logger}, nil
}

// Load returns the stored settings. A missing, empty or unreadable file
// yields zero Settings; read problems are logged, not returned.
func (s *SettingsStore) Load(_ context.Context) Settings {
	data, err := readOptional(s.path)
	if err != nil {
		s.logger.Warn("failed to read settings file", zap.String("path", s.path), zap.Error(err))
		return Settings{}
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Settings{}
	}
	var out Settings
	if err := json.Unmarshal(data, &out); err != nil {
		s.logger.Warn("failed to decode settings file", zap.String("path", s.path), zap.Error(err))
		return Settings{}
	}
	return out
}

// TwitterAPIKey returns the stored third-party API key, possibly empty.
func (s *SettingsStore) TwitterAPIKey(ctx context.Context) string {
	return s.Load(ctx).TwitterAPIKey
}

// SetTwitterAPIKey stores key; an empty key clears it.
func (s *SettingsStore) SetTwitterAPIKey(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	current := s.Load(ctx)
	current.TwitterAPIKey = strings.TrimSpace(key)
	data, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	return nil
}
