package logger

import (
	"log/slog"
	"os"
)

const serviceName = "hyperswitch-gateway"

var defaultLogger *slog.Logger

// Init configures the process-wide logger. Production and staging emit
// JSON for log aggregation; anything else gets human-readable text at
// debug level.
func Init(env string) {
	var handler slog.Handler

	switch env {
	case "production", "staging":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}

	defaultLogger = slog.New(handler).With("service", serviceName)
	slog.SetDefault(defaultLogger)
}

func LoggerWrapper() *slog.Logger {
	if defaultLogger == nil {
		// lazy initialize a development logger to avoid nil pointer panics
		Init("development")
	}
	return defaultLogger
}
