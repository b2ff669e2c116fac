// Package logging configures the process-wide logrus logger.
package logging

import (
	"os"
	"strings"

	"hotel-plan-finder/internal/config"

	"github.com/google/uuid"
	"github.com/nullseed/logruseq"
	log "github.com/sirupsen/logrus"
)

// Init sets level and formatter on the standard logger and attaches a Seq
// hook when an endpoint is configured.
func Init(cfg config.LoggingConfig, environment string) {
	Configure(log.StandardLogger(), cfg, environment)
}

// Configure applies cfg to logger.
func Configure(logger *log.Logger, cfg config.LoggingConfig, environment string) {
	logger.SetOutput(os.Stdout)

	level, err := log.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)

	if environment == "production" {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{
			FullTimestamp:    true,
			QuoteEmptyFields: true,
		})
	}

	if cfg.SeqURL != "" {
		logger.AddHook(logruseq.NewSeqHook(cfg.SeqURL, logruseq.OptionAPIKey(cfg.SeqAPIKey)))
	} else if environment == "production" {
		logger.Warn("logger running without seq hook")
	}
}

// NewRunID returns an identifier attached to every log line of one scan pass.
func NewRunID() string {
	return uuid.New().String()
}

// ForRun returns an entry tagged with run_id.
func ForRun(runID string) *log.Entry {
	return log.WithField("run_id", runID)
}
