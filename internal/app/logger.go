package app

import (
	"log/slog"
	"os"
)

// NewLogger returns the service logger. Production always emits JSON for log
// shippers; elsewhere LOG_FORMAT picks the handler and "pretty" text is the
// default. Source locations are attached outside production only.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: !cfg.IsProduction()}
	if cfg.IsProduction() || (cfg != nil && cfg.LogFormat == "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
