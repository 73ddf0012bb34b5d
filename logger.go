package delayq

import (
	"os"

	"github.com/rs/zerolog"
)

// TaggedLogger is the optional structured-logger collaborator a Store or
// Runner can be given. Tagged scopes nested log calls under a tag (such as
// a job id) so every line logged during that job's execution can be
// correlated; Runner uses it to bracket a job's execution with "Entering
// job" / "Exiting job" when present.
type TaggedLogger interface {
	Tagged(tag string) TaggedLogger
	Info(msg string)
	Error(msg string, err error)
}

// zlogLogger is the default TaggedLogger, backed by rs/zerolog.
type zlogLogger struct {
	l zerolog.Logger
}

// NewLogger returns the default TaggedLogger, writing structured JSON to
// w (or os.Stderr if nil).
func NewLogger(w *os.File) TaggedLogger {
	if w == nil {
		w = os.Stderr
	}
	return zlogLogger{l: zerolog.New(w).With().Timestamp().Logger()}
}

func (z zlogLogger) Tagged(tag string) TaggedLogger {
	return zlogLogger{l: z.l.With().Str("tag", tag).Logger()}
}

func (z zlogLogger) Info(msg string) {
	z.l.Info().Msg(msg)
}

func (z zlogLogger) Error(msg string, err error) {
	z.l.Error().Err(err).Msg(msg)
}
