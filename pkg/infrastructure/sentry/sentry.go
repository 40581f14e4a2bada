// Package sentry wires optional error reporting for the loader. With no DSN
// configured every helper is a no-op, so local runs need no setup.
package sentry

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
)

// Config carries the reporting options, normally filled from the
// environment via FromEnv.
type Config struct {
	DSN         string
	Environment string
	Release     string
	ServerName  string
}

// FromEnv reads the standard SENTRY_* variables.
func FromEnv() Config {
	return Config{
		DSN:         os.Getenv("SENTRY_DSN"),
		Environment: os.Getenv("SENTRY_ENVIRONMENT"),
		Release:     os.Getenv("SENTRY_RELEASE"),
	}
}

// Init initializes Sentry. Safe to call with an empty DSN: reporting is
// simply disabled.
func Init(cfg Config, logger *slog.Logger) error {
	if cfg.DSN == "" {
		if logger != nil {
			logger.Debug("Sentry DSN not configured - error tracking disabled")
		}
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		ServerName:  cfg.ServerName,
	})
	if err != nil {
		return fmt.Errorf("sentry init: %w", err)
	}

	if logger != nil {
		logger.Info("Sentry initialized", "environment", cfg.Environment)
	}
	return nil
}

// CaptureException reports err with optional context values.
func CaptureException(err error, context map[string]interface{}, logger *slog.Logger) {
	if err == nil {
		return
	}

	if context != nil {
		sentry.ConfigureScope(func(scope *sentry.Scope) {
			for key, value := range context {
				scope.SetContext(key, sentry.Context(map[string]interface{}{
					"value": value,
				}))
			}
		})
	}

	sentry.CaptureException(err)

	if logger != nil {
		logger.Debug("Exception captured in Sentry", "error", err.Error())
	}
}

// Flush waits for pending events; call before process exit.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}
