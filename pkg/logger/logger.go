// Package logger builds the engine's zerolog root logger. Every component
// derives its own sub-logger from the one returned here, tagged with a
// component, repo, service, or handler field.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration.
type Config struct {
	Level  string // debug, info, warn, error; anything else falls back to info
	Pretty bool   // human-readable console output, for dev mode
}

// New creates the root logger and sets the global level.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}

	return zerolog.New(out).With().Timestamp().Logger()
}

// SetGlobalLogger points zerolog's package-level logger at l, so stray
// log.Info() calls land in the same stream as everything else.
func SetGlobalLogger(l zerolog.Logger) {
	log.Logger = l
}
