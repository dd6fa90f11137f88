package logger

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger implements Logger using rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLoggerWithWriter creates a ZerologLogger writing to w and
// discarding events below level. All logs include the component field.
func NewZerologLoggerWithWriter(component string, w io.Writer, level zerolog.Level) *ZerologLogger {
	z := zerolog.New(w).Level(level).With().Timestamp().Str("component", component).Logger()
	return &ZerologLogger{log: z}
}

func consoleWriter(w io.Writer, noColor bool) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: noColor}
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	l.log.Debug().Fields(fields).Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Infow(msg string, fields map[string]any) {
	l.log.Info().Fields(fields).Msg(msg)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}
