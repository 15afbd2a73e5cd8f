package common

import (
	"log/slog"
	"os"
)

// LoggingOpts configures the process-wide structured logger.
type LoggingOpts struct {
	// Debug enables debug-level log messages.
	Debug bool

	// JSON selects the JSON handler instead of the text handler.
	JSON bool

	// Service is added as a "service" attribute to all log messages.
	Service string

	// Version is added as a "version" attribute to all log messages, if set.
	Version string
}

// SetupLogger builds the process logger from the given options. All
// components receive the returned *slog.Logger explicitly; nothing in this
// repository logs through the default logger.
func SetupLogger(opts *LoggingOpts) (log *slog.Logger) {
	logLevel := slog.LevelInfo
	if opts.Debug {
		logLevel = slog.LevelDebug
	}

	if opts.JSON {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	} else {
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	}

	log = log.With("service", opts.Service)
	if opts.Version != "" {
		log = log.With("version", opts.Version)
	}

	return log
}
