package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger builds the process logger: JSON to stdout, or colored text to
// stderr when LogFormat is "text", plus a JSON copy in LogFile when set.
// The returned cleanup closes the log file.
func SetupLogger(cfg *Config) (*slog.Logger, func() error) {
	console := consoleHandler(cfg, os.Stdout, os.Stderr)
	noop := func() error { return nil }

	if cfg.LogFile == "" {
		return slog.New(console), noop
	}

	file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger := slog.New(console)
		logger.Error("failed to open log file, using console only", "error", err, "file", cfg.LogFile)
		return logger, noop
	}

	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: cfg.Level()})
	return slog.New(slogmulti.Fanout(console, fileHandler)), file.Close
}

// SetupLoggerWithWriters is SetupLogger with explicit writers, for tests.
func SetupLoggerWithWriters(cfg *Config, console, file io.Writer) *slog.Logger {
	handler := consoleHandler(cfg, console, console)
	if file == nil {
		return slog.New(handler)
	}
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: cfg.Level()})
	return slog.New(slogmulti.Fanout(handler, fileHandler))
}

func consoleHandler(cfg *Config, jsonOut, textOut io.Writer) slog.Handler {
	if strings.EqualFold(cfg.LogFormat, "text") {
		return tint.NewHandler(textOut, &tint.Options{
			Level:      cfg.Level(),
			TimeFormat: time.Kitchen,
			NoColor:    textOut != os.Stderr,
		})
	}
	return slog.NewJSONHandler(jsonOut, &slog.HandlerOptions{Level: cfg.Level()})
}
