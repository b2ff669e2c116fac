package config

import (
	"fmt"
	"os"
	"time"

	"hotel-plan-finder/internal/extractor"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Environment string           `yaml:"environment"`
	HotelsPath  string           `yaml:"hotels_path"`
	Database    DatabaseConfig   `yaml:"database"`
	Sites       []extractor.Site `yaml:"sites"`
	Scraper     ScraperConfig    `yaml:"scraper"`
	RateLimit   RateLimitConfig  `yaml:"rate_limit"`
	Store       StoreConfig      `yaml:"store"`
	Notifier    NotifierConfig   `yaml:"notifier"`
	Search      SearchConfig     `yaml:"search"`
	Scheduler   SchedulerConfig  `yaml:"scheduler"`
	Cleanup     CleanupConfig    `yaml:"cleanup"`
	Server      ServerConfig     `yaml:"server"`
	Logging     LoggingConfig    `yaml:"logging"`
}

// DatabaseConfig contains database settings. DSN, when set, wins over the
// per-driver sections.
type DatabaseConfig struct {
	Type     string         `yaml:"type"`
	DSN      string         `yaml:"dsn"`
	LogLevel string         `yaml:"log_level"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

// MySQLConfig contains MySQL connection settings
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// PostgresConfig contains PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// SQLiteConfig contains the SQLite file location
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// ScraperConfig contains search client and pacing settings
type ScraperConfig struct {
	TimeoutSeconds       int                  `yaml:"timeout_seconds"`
	RequestDelayMillis   int                  `yaml:"request_delay_millis"`
	JitterMillis         int                  `yaml:"jitter_millis"`
	MaxInFlight          int                  `yaml:"max_in_flight"`
	PropertyDelaySeconds int                  `yaml:"property_delay_seconds"`
	UserAgent            string               `yaml:"user_agent"`
	CircuitBreaker       CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig contains per-site breaker thresholds
type CircuitBreakerConfig struct {
	ConsecutiveFailures int     `yaml:"consecutive_failures"`
	MinRequests         int     `yaml:"min_requests"`
	FailureRate         float64 `yaml:"failure_rate"`
	ResetMinutes        int     `yaml:"reset_minutes"`
}

// RateLimitConfig contains per-site request ceilings
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	RequestsPerHour   int  `yaml:"requests_per_hour"`
	RequestsPerDay    int  `yaml:"requests_per_day"`
}

// StoreConfig lists the plan fields whose change triggers an update
type StoreConfig struct {
	WatchFields []string `yaml:"watch_fields"`
}

// NotifierConfig contains notification transport and dispatch settings
type NotifierConfig struct {
	Type                string `yaml:"type"` // slack, line or log
	SlackWebhook        string `yaml:"slack_webhook"`
	LineToken           string `yaml:"line_token"`
	LineEndpoint        string `yaml:"line_endpoint"`
	TimeoutSeconds      int    `yaml:"timeout_seconds"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
	BatchSize           int    `yaml:"batch_size"`
	MaxAttempts         int    `yaml:"max_attempts"`
}

// SearchConfig contains search engine settings
type SearchConfig struct {
	Meilisearch MeilisearchConfig `yaml:"meilisearch"`
}

// MeilisearchConfig contains Meilisearch connection settings
type MeilisearchConfig struct {
	Host   string `yaml:"host"`
	APIKey string `yaml:"api_key"`
	Index  string `yaml:"index"`
}

// SchedulerConfig contains cron settings
type SchedulerConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Spec        string `yaml:"spec"`
	CleanupSpec string `yaml:"cleanup_spec"`
	RunOnStart  bool   `yaml:"run_on_start"`
}

// CleanupConfig contains outbox retention settings
type CleanupConfig struct {
	Enabled          bool `yaml:"enabled"`
	RetentionDays    int  `yaml:"retention_days"`
	MaxDeletionCount int  `yaml:"max_deletion_count"`
	DryRun           bool `yaml:"dry_run"`
}

// ServerConfig contains HTTP API settings
type ServerConfig struct {
	Addr         string   `yaml:"addr"`
	AllowOrigins []string `yaml:"allow_origins"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level     string `yaml:"level"`
	SeqURL    string `yaml:"seq_url"`
	SeqAPIKey string `yaml:"seq_api_key"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		HotelsPath:  "config/hotels.yaml",
		Database: DatabaseConfig{
			Type:     "sqlite",
			LogLevel: "warn",
			SQLite:   SQLiteConfig{Path: "hotel-plan-finder.db"},
		},
		Scraper: ScraperConfig{
			TimeoutSeconds:       30,
			RequestDelayMillis:   2000,
			JitterMillis:         1000,
			MaxInFlight:          1,
			PropertyDelaySeconds: 5,
			UserAgent:            "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
			CircuitBreaker: CircuitBreakerConfig{
				ConsecutiveFailures: 2,
				MinRequests:         20,
				FailureRate:         0.40,
				ResetMinutes:        30,
			},
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 10,
			RequestsPerHour:   200,
			RequestsPerDay:    2000,
		},
		Store: StoreConfig{
			WatchFields: []string{"cheapest_price", "point_rate", "stay_time", "credit"},
		},
		Notifier: NotifierConfig{
			Type:                "log",
			LineEndpoint:        "https://notify-api.line.me/api/notify",
			TimeoutSeconds:      10,
			PollIntervalSeconds: 10,
			BatchSize:           50,
			MaxAttempts:         5,
		},
		Search: SearchConfig{
			Meilisearch: MeilisearchConfig{Index: "plans"},
		},
		Scheduler: SchedulerConfig{
			Enabled:     true,
			Spec:        "*/30 * * * *",
			CleanupSpec: "0 4 * * *",
		},
		Cleanup: CleanupConfig{
			Enabled:          true,
			RetentionDays:    30,
			MaxDeletionCount: 1000,
		},
		Server: ServerConfig{
			Addr:         ":8084",
			AllowOrigins: []string{"http://localhost:5176"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filepath string) (*Config, error) {
	// Start with default config
	config := DefaultConfig()

	// If file doesn't exist, return default config
	if _, err := os.Stat(filepath); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Validate checks the settings the service cannot start without
func (c *Config) Validate() error {
	if len(c.Sites) == 0 {
		return fmt.Errorf("no sites configured")
	}
	seen := make(map[string]bool, len(c.Sites))
	for i, s := range c.Sites {
		if s.Name == "" || s.Endpoint == "" || s.BaseURL == "" {
			return fmt.Errorf("site %d: name, endpoint and base_url are required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("site %s: defined twice", s.Name)
		}
		seen[s.Name] = true
	}
	switch c.Notifier.Type {
	case "slack":
		if c.Notifier.SlackWebhook == "" {
			return fmt.Errorf("notifier slack: slack_webhook is required")
		}
	case "line":
		if c.Notifier.LineToken == "" {
			return fmt.Errorf("notifier line: line_token is required")
		}
	case "log":
	default:
		return fmt.Errorf("unknown notifier type: %q", c.Notifier.Type)
	}
	return nil
}

// Site returns the configured site with the given name
func (c *Config) Site(name string) (extractor.Site, bool) {
	for _, s := range c.Sites {
		if s.Name == name {
			return s, true
		}
	}
	return extractor.Site{}, false
}

// GetTimeout returns the search request timeout
func (c *ScraperConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GetRequestDelay returns the base delay between requests to one site
func (c *ScraperConfig) GetRequestDelay() time.Duration {
	return time.Duration(c.RequestDelayMillis) * time.Millisecond
}

// GetJitter returns the random extra delay between requests
func (c *ScraperConfig) GetJitter() time.Duration {
	return time.Duration(c.JitterMillis) * time.Millisecond
}

// GetPropertyDelay returns the pause between successive property scans
func (c *ScraperConfig) GetPropertyDelay() time.Duration {
	return time.Duration(c.PropertyDelaySeconds) * time.Second
}

// GetResetTimeout returns how long an open breaker waits
func (c *CircuitBreakerConfig) GetResetTimeout() time.Duration {
	return time.Duration(c.ResetMinutes) * time.Minute
}

// GetTimeout returns the transport request timeout
func (c *NotifierConfig) GetTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GetPollInterval returns the outbox polling interval
func (c *NotifierConfig) GetPollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}
