package logx

import (
	"io"
	"os"
	"strings"
	"time"

	"catalog-pricing/internal/config"
	"github.com/rs/zerolog"
)

// New builds the process logger. Production logs JSON at the configured
// level; other environments log to a console writer with caller info.
func New(env config.Environment, level string) zerolog.Logger {
	return newWithWriter(os.Stdout, env, level)
}

func newWithWriter(w io.Writer, env config.Environment, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	if env.IsProduction() {
		return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	}
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return zerolog.New(console).Level(lvl).With().Timestamp().Caller().Logger()
}

// Component returns a child logger tagged with the given component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
