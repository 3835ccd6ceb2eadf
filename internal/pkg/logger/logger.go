package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"wazeapp/internal/platform/config"
)

// Init configures the global logger for one WazeApp process. service is attached to every entry.
func Init(cfg config.LoggingConfig, service string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = New(cfg).With().Str("service", service).Logger()
}

// New builds a logger writing where cfg says. File output falls back to stdout when the file
// cannot be opened.
func New(cfg config.LoggingConfig) zerolog.Logger {
	var out io.Writer = os.Stdout

	if cfg.Output == "file" && cfg.FilePath != "" {
		if f, err := openLogFile(cfg.FilePath); err != nil {
			log.Error().Err(err).Str("path", cfg.FilePath).Msg("failed to open log file, logging to stdout")
		} else {
			out = f
		}
	} else if cfg.Format == "text" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).With().Timestamp().Logger()
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0664)
}
