package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger aliases zerolog.Logger so packages can accept a logger without
// importing the third-party module directly.
type Logger = zerolog.Logger

// NewLogger writes JSON to stdout, or colored console lines in development.
// LOG_LEVEL overrides the level; otherwise development logs at debug and
// every other environment at info.
func NewLogger(cfg *Config) zerolog.Logger {
	return newLogger(os.Stdout, cfg.AppEnv, cfg.LogLevel)
}

func newLogger(w io.Writer, appEnv, level string) zerolog.Logger {
	lvl := zerolog.InfoLevel
	if appEnv == "development" {
		lvl = zerolog.DebugLevel
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	if parsed, err := zerolog.ParseLevel(level); err == nil && level != "" {
		lvl = parsed
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("env", appEnv).Logger()
}

// Component returns a child logger tagged with the component name.
func Component(logger Logger, name string) Logger {
	return logger.With().Str("component", name).Logger()
}
