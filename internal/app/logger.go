package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger. JSON output is used when configured
// or in production so log lines are ingestible; the text handler is for
// local development. Every line carries the service name for aggregation.
func NewLogger(cfg *Config) *slog.Logger {
	var handler slog.Handler
	if cfg != nil && (cfg.LogFormat == "json" || cfg.IsProduction()) {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true})
	} else {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	return slog.New(handler).With(slog.String("service", "material-management-api"))
}
