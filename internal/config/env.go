package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnvFile reads KEY=VALUE pairs from the given .env files (".env" when
// none are given) into the process environment. Existing variables are kept
// and missing files are ignored.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// GetEnv returns the environment variable or fallback when unset
func GetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ApplyEnv overrides secrets and connection settings from the environment
func (c *Config) ApplyEnv() {
	c.Environment = GetEnv("ENVIRONMENT", c.Environment)
	c.HotelsPath = GetEnv("HOTELS_PATH", c.HotelsPath)

	c.Database.Type = GetEnv("DB_TYPE", c.Database.Type)
	c.Database.DSN = GetEnv("DB_DSN", c.Database.DSN)

	if v := os.Getenv("NOTIFIER"); v != "" {
		c.Notifier.Type = strings.ToLower(v)
	}
	c.Notifier.SlackWebhook = GetEnv("SLACK_WEBHOOK", c.Notifier.SlackWebhook)
	c.Notifier.LineToken = GetEnv("LINE_TOKEN", c.Notifier.LineToken)

	c.Search.Meilisearch.Host = GetEnv("MEILISEARCH_HOST", c.Search.Meilisearch.Host)
	c.Search.Meilisearch.APIKey = GetEnv("MEILISEARCH_KEY", c.Search.Meilisearch.APIKey)

	c.Logging.Level = GetEnv("LOG_LEVEL", c.Logging.Level)
	c.Server.Addr = GetEnv("LISTEN_ADDR", c.Server.Addr)
}
