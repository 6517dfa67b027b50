// Package logging constructs the process-wide structured logger.
package logging

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// New builds a zerolog logger writing JSON lines to w at the given level.
// Unknown level strings fall back to info.
func New(w io.Writer, level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(parsed).With().Timestamp().Logger()
}
