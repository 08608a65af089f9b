package material

import (
	"log/slog"

	"github.com/gogpu/material/internal/logging"
)

// SetLogger configures the logger for material and all its sub-packages.
// By default, material produces no log output. Call SetLogger to enable logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by material:
//   - [slog.LevelDebug]: cache misses, compiled modules, created pipelines
//   - [slog.LevelInfo]: fragment library loaded
//   - [slog.LevelWarn]: variables skipped because the program does not bind them
//
// Example:
//
//	// Enable debug-level logging for full diagnostics:
//	material.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logging.Set(l)
}

// Logger returns the current logger used by material.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return logging.Logger()
}
