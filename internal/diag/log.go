// Package diag is a thin logrus wrapper shared by the CLI and by the
// one documented error-swallowing path in internal/bio (eviction-time
// writeback failure): logrus carries structured fields
// (device, offset, reason) rather than building an ad hoc string.
package diag

import "github.com/sirupsen/logrus"

// Logger is the interface the core packages depend on, so a caller can
// substitute any logrus-compatible entry (including a no-op one in
// tests) without internal/bio importing logrus directly everywhere.
type Logger interface {
	WithFields(fields logrus.Fields) *logrus.Entry
}

// std is the process-wide default, used by bio.Default() and the CLI
// unless overridden.
var std = logrus.StandardLogger()

// Default returns the shared logrus logger.
func Default() *logrus.Logger {
	return std
}

// SetLevel parses level (e.g. "debug", "info", "warn") and applies it
// to the default logger; an empty or invalid level is a no-op error
// the caller decides whether to surface.
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}

	std.SetLevel(lvl)
	return nil
}

// SetJSON switches the default logger's formatter between JSON and the
// human-readable text formatter, matching the CLI's --log-format flag.
func SetJSON(json bool) {
	if json {
		std.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	std.SetFormatter(&logrus.TextFormatter{})
}
