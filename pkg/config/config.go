package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type Config struct {
	App       AppConfig       `json:"app"`
	Browser   BrowserConfig   `json:"browser"`
	Tours     ToursConfig     `json:"tours"`
	Timing    TimingConfig    `json:"timing"`
	Progress  ProgressConfig  `json:"progress"`
	Analytics AnalyticsConfig `json:"analytics"`
}

type AppConfig struct {
	Name string `json:"name"`
	// URL is the page tours run against unless overridden on the command
	// line.
	URL string `json:"url"`
}

type BrowserConfig struct {
	Headless bool   `json:"headless"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	ExecPath string `json:"exec_path,omitempty"`
}

type ToursConfig struct {
	// Source is "dir" or "remote".
	Source          string   `json:"source"`
	Dir             string   `json:"dir"`
	Endpoint        string   `json:"endpoint,omitempty"`
	QueryPath       string   `json:"query_path,omitempty"`
	MinSteps        int      `json:"min_steps"`
	DeniedSelectors []string `json:"denied_selectors,omitempty"`
}

type TimingConfig struct {
	WaitTimeoutMS  int `json:"wait_timeout_ms"`
	ScrollSettleMS int `json:"scroll_settle_ms"`
	ResetSettleMS  int `json:"reset_settle_ms"`
}

type ProgressConfig struct {
	// Type is "local" (the page's localStorage), "sqlite", "redis" or
	// "memory".
	Type      string `json:"type"`
	Path      string `json:"path"`
	RedisAddr string `json:"redis_addr,omitempty"`
	RedisKey  string `json:"redis_prefix,omitempty"`
}

type AnalyticsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
	LogPath  string `json:"log_path"`
	Echo     bool   `json:"echo"`
}

// Defaults returns the configuration used for every field a file leaves
// out.
func Defaults() *Config {
	return &Config{
		App:     AppConfig{Name: "onboardly"},
		Browser: BrowserConfig{Width: 1280, Height: 800},
		Tours: ToursConfig{
			Source:    "dir",
			Dir:       "tours",
			QueryPath: "public:getTourByScriptId",
			MinSteps:  1,
		},
		Timing: TimingConfig{
			WaitTimeoutMS:  5000,
			ScrollSettleMS: 300,
			ResetSettleMS:  1000,
		},
		Progress:  ProgressConfig{Type: "local", Path: "onboardly.db"},
		Analytics: AnalyticsConfig{LogPath: "logs/events.jsonl"},
	}
}

// LoadConfig reads a JSON config file over Defaults. A missing file is not
// an error.
func LoadConfig(path string) (*Config, error) {
	cfg := Defaults()
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the fields that select an implementation.
func (c *Config) Validate() error {
	switch c.Tours.Source {
	case "dir", "remote":
	default:
		return fmt.Errorf("tours.source: unknown source %q", c.Tours.Source)
	}
	if c.Tours.Source == "remote" && c.Tours.Endpoint == "" {
		return fmt.Errorf("tours.endpoint is required for the remote source")
	}
	switch c.Progress.Type {
	case "local", "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("progress.type: unknown store %q", c.Progress.Type)
	}
	if c.Progress.Type == "redis" && c.Progress.RedisAddr == "" {
		return fmt.Errorf("progress.redis_addr is required for the redis store")
	}
	if c.Analytics.Enabled && c.Analytics.Endpoint == "" {
		return fmt.Errorf("analytics.endpoint is required when analytics is enabled")
	}
	return nil
}

func (t TimingConfig) WaitTimeout() time.Duration {
	return time.Duration(t.WaitTimeoutMS) * time.Millisecond
}

func (t TimingConfig) ScrollSettle() time.Duration {
	return time.Duration(t.ScrollSettleMS) * time.Millisecond
}

func (t TimingConfig) ResetSettle() time.Duration {
	return time.Duration(t.ResetSettleMS) * time.Millisecond
}
