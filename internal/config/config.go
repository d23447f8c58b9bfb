// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable override (e.g. SHOPFLOW_TARGET_BASE_URL).
const EnvPrefix = "SHOPFLOW"

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Target   TargetConfig   `mapstructure:"target" yaml:"target"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Timeouts TimeoutConfig  `mapstructure:"timeouts" yaml:"timeouts"`
	Retry    RetryConfig    `mapstructure:"retry" yaml:"retry"`
	Capture  CaptureConfig  `mapstructure:"capture" yaml:"capture"`
	Fixtures FixturesConfig `mapstructure:"fixtures" yaml:"fixtures"`
	Results  ResultsConfig  `mapstructure:"results" yaml:"results"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// TargetConfig points the run at the application under test.
type TargetConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// CatalogFragment identifies the product listing request (matched with strings.Contains).
	CatalogFragment string `mapstructure:"catalog_fragment" yaml:"catalog_fragment"`
	CatalogStatus   int    `mapstructure:"catalog_status" yaml:"catalog_status"`
}

// BrowserConfig holds settings for the automated browser.
type BrowserConfig struct {
	// Channel is one of chromium, firefox, webkit, chrome, msedge. Anything else falls back to chromium.
	Channel         string         `mapstructure:"channel" yaml:"channel"`
	Headless        bool           `mapstructure:"headless" yaml:"headless"`
	SlowMo          time.Duration  `mapstructure:"slow_mo" yaml:"slow_mo"`
	IgnoreTLSErrors bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Args            []string       `mapstructure:"args" yaml:"args"`
	Viewport        map[string]int `mapstructure:"viewport" yaml:"viewport"`
}

// TimeoutConfig holds the four wait tiers used by every bounded wait.
type TimeoutConfig struct {
	Short     time.Duration `mapstructure:"short" yaml:"short"`
	Medium    time.Duration `mapstructure:"medium" yaml:"medium"`
	Long      time.Duration `mapstructure:"long" yaml:"long"`
	ExtraLong time.Duration `mapstructure:"extra_long" yaml:"extra_long"`
}

// RetryConfig bounds the retries applied to page navigation. Steps themselves are never retried.
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`
	Delay      time.Duration `mapstructure:"delay" yaml:"delay"`
}

// CaptureConfig toggles failure screenshots and session video.
type CaptureConfig struct {
	Screenshots   bool   `mapstructure:"screenshots" yaml:"screenshots"`
	ScreenshotDir string `mapstructure:"screenshot_dir" yaml:"screenshot_dir"`
	Video         bool   `mapstructure:"video" yaml:"video"`
	VideoDir      string `mapstructure:"video_dir" yaml:"video_dir"`
}

// FixturesConfig carries the fixed journey inputs and expectations.
type FixturesConfig struct {
	Username          string         `mapstructure:"username" yaml:"username"`
	Password          string         `mapstructure:"password" yaml:"-"`
	Product           string         `mapstructure:"product" yaml:"product"`
	MinProducts       int            `mapstructure:"min_products" yaml:"min_products"`
	AddedMessage      string         `mapstructure:"added_message" yaml:"added_message"`
	ConfirmationTitle string         `mapstructure:"confirmation_title" yaml:"confirmation_title"`
	Checkout          CheckoutConfig `mapstructure:"checkout" yaml:"checkout"`
}

// CheckoutConfig is the order form payload. It is passed through unvalidated.
type CheckoutConfig struct {
	Name    string `mapstructure:"name" yaml:"name"`
	Country string `mapstructure:"country" yaml:"country"`
	City    string `mapstructure:"city" yaml:"city"`
	Card    string `mapstructure:"card" yaml:"card"`
	Month   string `mapstructure:"month" yaml:"month"`
	Year    string `mapstructure:"year" yaml:"year"`
}

// ResultsConfig configures where step results go.
type ResultsConfig struct {
	Output      string `mapstructure:"output" yaml:"output"`
	Format      string `mapstructure:"format" yaml:"format"`
	DatabaseURL string `mapstructure:"database_url" yaml:"database_url"`
	BufferSize  int    `mapstructure:"buffer_size" yaml:"buffer_size"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "shopflow")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Target --
	v.SetDefault("target.base_url", "https://www.demoblaze.com/")
	v.SetDefault("target.catalog_fragment", "/entries")
	v.SetDefault("target.catalog_status", 200)

	// -- Browser --
	v.SetDefault("browser.channel", "chromium")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.slow_mo", "0s")
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.viewport", map[string]int{"width": 1280, "height": 720})

	// -- Timeouts --
	v.SetDefault("timeouts.short", "5s")
	v.SetDefault("timeouts.medium", "10s")
	v.SetDefault("timeouts.long", "30s")
	v.SetDefault("timeouts.extra_long", "60s")

	// -- Retry --
	v.SetDefault("retry.max_retries", 2)
	v.SetDefault("retry.delay", "1s")

	// -- Capture --
	v.SetDefault("capture.screenshots", true)
	v.SetDefault("capture.screenshot_dir", "artifacts/screenshots")
	v.SetDefault("capture.video", false)
	v.SetDefault("capture.video_dir", "artifacts/videos")

	// -- Fixtures --
	v.SetDefault("fixtures.username", "test")
	v.SetDefault("fixtures.password", "test")
	v.SetDefault("fixtures.product", "Samsung galaxy s6")
	v.SetDefault("fixtures.min_products", 5)
	v.SetDefault("fixtures.added_message", "added")
	v.SetDefault("fixtures.confirmation_title", "Thank you for your purchase!")
	v.SetDefault("fixtures.checkout.name", "John Doe")
	v.SetDefault("fixtures.checkout.country", "United States")
	v.SetDefault("fixtures.checkout.city", "New York")
	v.SetDefault("fixtures.checkout.card", "1234567890123456")
	v.SetDefault("fixtures.checkout.month", "12")
	v.SetDefault("fixtures.checkout.year", "2025")

	// -- Results --
	v.SetDefault("results.output", "")
	v.SetDefault("results.format", "json")
	v.SetDefault("results.buffer_size", 32)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Secrets are only ever read from the environment.
	_ = v.BindEnv("fixtures.password", EnvPrefix+"_PASSWORD")
	_ = v.BindEnv("results.database_url", EnvPrefix+"_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Target.Validate(); err != nil {
		return fmt.Errorf("target configuration invalid: %w", err)
	}
	if err := c.Timeouts.Validate(); err != nil {
		return fmt.Errorf("timeouts configuration invalid: %w", err)
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("retry configuration invalid: %w", err)
	}
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture configuration invalid: %w", err)
	}
	if c.Fixtures.MinProducts < 0 {
		return fmt.Errorf("fixtures.min_products must not be negative")
	}
	switch strings.ToLower(c.Results.Format) {
	case "json", "":
	default:
		return fmt.Errorf("unsupported results.format: %s", c.Results.Format)
	}
	return nil
}

// Validate checks the target section.
func (t *TargetConfig) Validate() error {
	if t.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	u, err := url.Parse(t.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url must be an absolute URL, got %q", t.BaseURL)
	}
	if t.CatalogStatus < 100 || t.CatalogStatus > 599 {
		return fmt.Errorf("catalog_status must be a valid HTTP status, got %d", t.CatalogStatus)
	}
	return nil
}

// Validate ensures the tiers are positive and ordered short <= medium <= long <= extra_long.
func (t *TimeoutConfig) Validate() error {
	tiers := []struct {
		name string
		d    time.Duration
	}{
		{"short", t.Short}, {"medium", t.Medium}, {"long", t.Long}, {"extra_long", t.ExtraLong},
	}
	for i, tier := range tiers {
		if tier.d <= 0 {
			return fmt.Errorf("%s must be a positive duration", tier.name)
		}
		if i > 0 && tier.d < tiers[i-1].d {
			return fmt.Errorf("%s (%s) must not be shorter than %s (%s)", tier.name, tier.d, tiers[i-1].name, tiers[i-1].d)
		}
	}
	return nil
}

// Validate checks the retry section.
func (r *RetryConfig) Validate() error {
	if r.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if r.Delay < 0 {
		return fmt.Errorf("delay must not be negative")
	}
	return nil
}

// Validate checks the capture section.
func (c *CaptureConfig) Validate() error {
	if c.Screenshots && c.ScreenshotDir == "" {
		return fmt.Errorf("screenshot_dir is required when screenshots are enabled")
	}
	if c.Video && c.VideoDir == "" {
		return fmt.Errorf("video_dir is required when video is enabled")
	}
	return nil
}
