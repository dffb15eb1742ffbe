package app

import (
	"log/slog"
	"os"
)

// NewLogger returns the configured slog.Logger. Every line carries the
// service name so gateway output is separable from the backend's in
// aggregated logs.
func NewLogger(cfg *Config) *slog.Logger {
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{AddSource: true})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{AddSource: true})
	}
	return slog.New(handler).With(slog.String("service", "demandflow"))
}
