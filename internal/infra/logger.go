package infra

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger aliases zerolog.Logger so the rest of the service can take a logger
// without importing the third-party module directly.
type Logger = zerolog.Logger

// NewLogger builds the process logger. Development gets a human-readable
// console writer at debug level; everything else emits JSON at info level.
// Batch pipeline code attaches batch_id, chunk and item_id fields per event
// rather than per logger, so the base logger stays field-free beyond the
// service name.
func NewLogger(appEnv string) Logger {
	var out = zerolog.New(os.Stdout)
	level := zerolog.InfoLevel

	if appEnv == "development" {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
		level = zerolog.DebugLevel
	}

	return out.Level(level).
		With().
		Timestamp().
		Str("service", "batchgen").
		Logger()
}
