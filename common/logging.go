package common

import (
	"io"
	"log/slog"
	"os"
)

// LoggingOpts configures the logger returned by SetupLogger.
type LoggingOpts struct {
	// Debug lowers the level to slog.LevelDebug.
	Debug bool

	// JSON switches from the text handler to the JSON handler.
	JSON bool

	// Service, when set, is attached to every record as "service".
	Service string

	// Version, when set, is attached to every record as "version".
	Version string

	// Output defaults to os.Stdout.
	Output io.Writer
}

// SetupLogger builds a slog.Logger from opts.
func SetupLogger(opts *LoggingOpts) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	logger := slog.New(handler)
	if opts.Service != "" {
		logger = logger.With("service", opts.Service)
	}
	if opts.Version != "" {
		logger = logger.With("version", opts.Version)
	}
	return logger
}

// OrDefault returns log, or slog.Default() when log is nil.
func OrDefault(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}
