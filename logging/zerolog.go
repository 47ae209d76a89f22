package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// ZerologAdapter wraps zerolog.Logger to implement the Logger interface.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter creates a Logger from an existing zerolog.Logger.
func NewZerologAdapter(logger zerolog.Logger) Logger {
	return &ZerologAdapter{logger: logger}
}

// NewZerologLogger builds a zerolog backed Logger. Format "json" writes raw
// JSON lines; anything else uses the console writer.
func NewZerologLogger(level LogLevel, format string, w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}

	if format != "json" {
		w = zerolog.ConsoleWriter{Out: w, NoColor: true}
	}

	logger := zerolog.New(w).Level(zerologLevel(level)).With().Timestamp().Logger()

	return NewZerologAdapter(logger)
}

func zerologLevel(l LogLevel) zerolog.Level {
	switch l {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug logs a debug message.
func (z *ZerologAdapter) Debug(msg string, args ...any) { z.log(z.logger.Debug(), msg, args) }

// Info logs an informational message.
func (z *ZerologAdapter) Info(msg string, args ...any) { z.log(z.logger.Info(), msg, args) }

// Warn logs a warning message.
func (z *ZerologAdapter) Warn(msg string, args ...any) { z.log(z.logger.Warn(), msg, args) }

// Error logs an error message.
func (z *ZerologAdapter) Error(msg string, args ...any) { z.log(z.logger.Error(), msg, args) }

func (z *ZerologAdapter) log(ev *zerolog.Event, msg string, args []any) {
	if ev == nil {
		return
	}

	// A trailing key without value is kept under "!BADKEY" like slog does.
	if len(args)%2 == 1 {
		args = append(args[:len(args)-1:len(args)-1], "!BADKEY", args[len(args)-1])
	}

	ev.Fields(args).Msg(msg)
}
