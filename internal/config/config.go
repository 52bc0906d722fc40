// Package config loads and validates postshelf configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. POSTSHELF_SERVER_PORT.
const EnvPrefix = "POSTSHELF"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig   `mapstructure:"server"`
	Storage    StorageConfig  `mapstructure:"storage"`
	OEmbed     UpstreamConfig `mapstructure:"oembed"`
	TwitterAPI UpstreamConfig `mapstructure:"twitterapi"`
	Video      UpstreamConfig `mapstructure:"video"`
	Scraper    ScraperConfig  `mapstructure:"scraper"`
	Render     RenderConfig   `mapstructure:"render"`
	Headless   HeadlessConfig `mapstructure:"headless"`
	HTTP       HTTPConfig     `mapstructure:"http"`
	Logging    LoggingConfig  `mapstructure:"logging"`
	Progress   ProgressConfig `mapstructure:"progress"`
	Tracing    TracingConfig  `mapstructure:"tracing"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// StorageConfig locates the JSON files.
type StorageConfig struct {
	RecordsPath  string `mapstructure:"records_path"`
	SettingsPath string `mapstructure:"settings_path"`
}

// UpstreamConfig describes one HTTP upstream. Endpoint and BaseURL are
// aliases; oEmbed uses endpoint, the others base_url.
type UpstreamConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// URL returns whichever of Endpoint and BaseURL is set.
func (u UpstreamConfig) URL() string {
	if u.Endpoint != "" {
		return u.Endpoint
	}
	return u.BaseURL
}

// ScraperConfig configures the external scraper tool.
type ScraperConfig struct {
	Command        string        `mapstructure:"command"`
	HealthTimeout  time.Duration `mapstructure:"health_timeout"`
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
	AccountTimeout time.Duration `mapstructure:"account_timeout"`
	LoginTimeout   time.Duration `mapstructure:"login_timeout"`
}

// RenderConfig tunes the render orchestrator.
type RenderConfig struct {
	ReadyTimeout   time.Duration `mapstructure:"ready_timeout"`
	SettleDelay    time.Duration `mapstructure:"settle_delay"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

// HeadlessConfig configures the optional headless widget.
type HeadlessConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxParallel int           `mapstructure:"max_parallel"`
	NavTimeout  time.Duration `mapstructure:"nav_timeout"`
	WidgetsURL  string        `mapstructure:"widgets_url"`
}

// HTTPConfig configures outbound HTTP.
type HTTPConfig struct {
	UserAgent string `mapstructure:"user_agent"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// ProgressConfig sizes the render progress hub.
type ProgressConfig struct {
	BufferSize   int           `mapstructure:"buffer_size"`
	MaxBatch     int           `mapstructure:"max_batch"`
	MaxBatchWait time.Duration `mapstructure:"max_batch_wait"`
}

// TracingConfig toggles OpenTelemetry spans around render attempts.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Load builds a Config from defaults, an optional YAML file and the
// environment, in increasing order of precedence.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("postshelf")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.postshelf")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.request_timeout", "200s")
	v.SetDefault("storage.records_path", "records.json")
	v.SetDefault("storage.settings_path", "config.json")
	v.SetDefault("oembed.endpoint", "https://publish.twitter.com/oembed")
	v.SetDefault("oembed.timeout", "10s")
	v.SetDefault("twitterapi.base_url", "https://api.twitterapi.io")
	v.SetDefault("twitterapi.timeout", "15s")
	v.SetDefault("video.base_url", "https://api.fxtwitter.com")
	v.SetDefault("video.timeout", "15s")
	v.SetDefault("scraper.command", "twscrape")
	v.SetDefault("scraper.health_timeout", "5s")
	v.SetDefault("scraper.fetch_timeout", "30s")
	v.SetDefault("scraper.account_timeout", "10s")
	v.SetDefault("scraper.login_timeout", "180s")
	v.SetDefault("render.ready_timeout", "10s")
	v.SetDefault("render.settle_delay", "300ms")
	v.SetDefault("render.attempt_timeout", "45s")
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout", "25s")
	v.SetDefault("headless.widgets_url", "https://platform.twitter.com/widgets.js")
	v.SetDefault("http.user_agent", "postshelf/1.0")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch", 256)
	v.SetDefault("progress.max_batch_wait", "250ms")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "postshelf")
	v.SetDefault("tracing.sample_ratio", 1.0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be > 0")
	}
	if strings.TrimSpace(c.Storage.RecordsPath) == "" {
		return fmt.Errorf("storage.records_path is required")
	}
	if strings.TrimSpace(c.Storage.SettingsPath) == "" {
		return fmt.Errorf("storage.settings_path is required")
	}
	if c.OEmbed.URL() == "" || c.TwitterAPI.URL() == "" || c.Video.URL() == "" {
		return fmt.Errorf("oembed.endpoint, twitterapi.base_url and video.base_url are required")
	}
	if strings.TrimSpace(c.Scraper.Command) == "" {
		return fmt.Errorf("scraper.command is required")
	}
	if c.Render.ReadyTimeout <= 0 {
		return fmt.Errorf("render.ready_timeout must be > 0")
	}
	if c.Render.SettleDelay < 0 || c.Render.AttemptTimeout < 0 {
		return fmt.Errorf("render delays must be >= 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Progress.BufferSize <= 0 {
		return fmt.Errorf("progress.buffer_size must be > 0")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1")
	}
	return nil
}
