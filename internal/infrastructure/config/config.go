package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Endpoint     EndpointConfig     `yaml:"endpoint"`
	App          AppConfig          `yaml:"app"`
	Timing       TimingConfig       `yaml:"timing"`
	Browsing     BrowsingConfig     `yaml:"browsing"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
	Store        StoreConfig        `yaml:"store"`
	Logging      LogConfig          `yaml:"logging"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
}

// ServerConfig holds control API server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000" yaml:"port"`
	Host string `envconfig:"HOST" default:"127.0.0.1" yaml:"host"`
}

// EndpointConfig holds the remote endpoints the resolver talks to.
type EndpointConfig struct {
	ConfigURL      string        `envconfig:"CONFIG_URL" default:"https://config.example.com" yaml:"config_url"`
	AttributionURL string        `envconfig:"ATTRIBUTION_URL" default:"https://gcdsdk.appsflyer.com" yaml:"attribution_url"`
	AppID          string        `envconfig:"APP_ID" default:"0000000000" yaml:"app_id"`
	DevKey         string        `envconfig:"DEV_KEY" default:"" yaml:"dev_key"`
	FetchTimeout   time.Duration `envconfig:"FETCH_TIMEOUT" default:"10s" yaml:"fetch_timeout"`
}

// AppConfig holds the device/app identity attached to config requests.
type AppConfig struct {
	BundleID          string `envconfig:"BUNDLE_ID" default:"com.example.passwordsbubble" yaml:"bundle_id"`
	OS                string `envconfig:"OS_NAME" default:"iOS" yaml:"os"`
	Locale            string `envconfig:"LOCALE" default:"en" yaml:"locale"`
	FirebaseProjectID string `envconfig:"FIREBASE_PROJECT_ID" default:"" yaml:"firebase_project_id"`
}

// TimingConfig holds the fixed delays of phase resolution.
type TimingConfig struct {
	OrganicCheckDelay time.Duration `envconfig:"ORGANIC_CHECK_DELAY" default:"5s" yaml:"organic_check_delay"`
	PromptInterval    time.Duration `envconfig:"PERMISSION_PROMPT_INTERVAL" default:"72h" yaml:"prompt_interval"`
	DeepLinkDelay     time.Duration `envconfig:"DEEP_LINK_DELAY" default:"2s" yaml:"deep_link_delay"`
}

// BrowsingConfig holds browsing context policy.
type BrowsingConfig struct {
	RedirectLimit       int    `envconfig:"REDIRECT_LIMIT" default:"70" yaml:"redirect_limit"`
	SurfaceMaxRedirects int    `envconfig:"SURFACE_MAX_REDIRECTS" default:"100" yaml:"surface_max_redirects"`
	UserAgent           string `envconfig:"USER_AGENT" default:"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148" yaml:"user_agent"`
	ViewportWidth       int    `envconfig:"VIEWPORT_WIDTH" default:"390" yaml:"viewport_width"`
	ViewportHeight      int    `envconfig:"VIEWPORT_HEIGHT" default:"844" yaml:"viewport_height"`
}

// ConnectivityConfig holds reachability probing configuration.
type ConnectivityConfig struct {
	ProbeAddress string        `envconfig:"CONNECTIVITY_PROBE_ADDR" default:"1.1.1.1:443" yaml:"probe_address"`
	Interval     time.Duration `envconfig:"CONNECTIVITY_INTERVAL" default:"5s" yaml:"interval"`
	ProbeTimeout time.Duration `envconfig:"CONNECTIVITY_TIMEOUT" default:"3s" yaml:"probe_timeout"`
}

// StoreConfig holds persistent key-value store configuration.
// An empty path selects the in-memory store.
type StoreConfig struct {
	Path string `envconfig:"STORE_PATH" default:"bubblegate.db" yaml:"path"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development"`
}

// RateLimitConfig holds control API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile loads configuration from environment variables and overlays the
// YAML file at path. Keys present in the file win over the environment.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate rejects values that would make resolution misbehave.
func (c *Config) Validate() error {
	if c.Endpoint.FetchTimeout <= 0 {
		return fmt.Errorf("invalid config: FETCH_TIMEOUT must be positive")
	}
	if c.Browsing.RedirectLimit <= 0 {
		return fmt.Errorf("invalid config: REDIRECT_LIMIT must be positive")
	}
	if c.Connectivity.Interval <= 0 {
		return fmt.Errorf("invalid config: CONNECTIVITY_INTERVAL must be positive")
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "127.0.0.1",
		},
		Endpoint: EndpointConfig{
			ConfigURL:      "https://config.example.com",
			AttributionURL: "https://gcdsdk.appsflyer.com",
			AppID:          "0000000000",
			FetchTimeout:   10 * time.Second,
		},
		App: AppConfig{
			BundleID: "com.example.passwordsbubble",
			OS:       "iOS",
			Locale:   "en",
		},
		Timing: TimingConfig{
			OrganicCheckDelay: 5 * time.Second,
			PromptInterval:    72 * time.Hour,
			DeepLinkDelay:     2 * time.Second,
		},
		Browsing: BrowsingConfig{
			RedirectLimit:       70,
			SurfaceMaxRedirects: 100,
			UserAgent:           "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E148",
			ViewportWidth:       390,
			ViewportHeight:      844,
		},
		Connectivity: ConnectivityConfig{
			ProbeAddress: "1.1.1.1:443",
			Interval:     5 * time.Second,
			ProbeTimeout: 3 * time.Second,
		},
		Store: StoreConfig{
			Path: "bubblegate.db",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}
