package logger

import (
	"os"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// New builds the root logger. The level is read straight from the
// environment because config loading itself wants a logger.
func New() zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Caller().
		Logger()

	level, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	return logger.Level(level)
}

var Module = fx.Provide(New)
