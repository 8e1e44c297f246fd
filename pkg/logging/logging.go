// pkg/logging/logging.go
package logging

import (
	"fmt"
	"io"
	stdLog "log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// logWriter is the destination used by ConfigureGlobalLogging.
	logWriter io.Writer
)

// stdLogWriter forwards output of the standard library logger to zerolog at
// debug level, so libraries that use "log" do not bypass the configured sink.
type stdLogWriter struct {
	logger zerolog.Logger
}

func (w *stdLogWriter) Write(p []byte) (n int, err error) {
	w.logger.Debug().Str("source", "stdlog").Msg(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

// init keeps the CLI quiet until logging is configured.
func init() {
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	logWriter = consoleWriter(os.Stderr)
}

func consoleWriter(out io.Writer) io.Writer {
	return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
}

// ConfigureGlobalLogging sets the global level and replaces log.Logger.
// format "json" writes raw JSON lines; anything else uses the console writer.
func ConfigureGlobalLogging(levelStr, format string) error {
	level, err := ParseLevel(levelStr)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)

	w := logWriter
	if format == "json" {
		if cw, ok := w.(zerolog.ConsoleWriter); ok {
			w = cw.Out
		}
	}

	logContext := zerolog.New(w).With().Timestamp()
	if level <= zerolog.DebugLevel {
		logContext = logContext.Caller()
	}

	log.Logger = logContext.Logger().Level(level)
	zerolog.DefaultContextLogger = &log.Logger

	stdLog.SetFlags(0)
	stdLog.SetOutput(&stdLogWriter{logger: log.Logger})
	return nil
}

// ConfigureGlobal sets the global level and a JSON logger on stderr.
func ConfigureGlobal(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)
}

// NewLogger returns a JSON logger on stderr tagged with component.
func NewLogger(component string, level zerolog.Level) zerolog.Logger {
	return NewLoggerWithWriter(component, level, os.Stderr)
}

// NewLoggerWithWriter returns a JSON logger on w tagged with component.
func NewLoggerWithWriter(component string, level zerolog.Level, w io.Writer) zerolog.Logger {
	return zerolog.New(w).Level(level).With().
		Timestamp().
		Str("component", component).
		Logger()
}

// OpenLogFile opens path for appending and makes it the destination for
// ConfigureGlobalLogging. The caller closes the returned file.
func OpenLogFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	SetLogWriter(f)
	return f, nil
}

// ParseLevel converts a level name to zerolog.Level. An empty name is the
// error level.
func ParseLevel(levelString string) (zerolog.Level, error) {
	if levelString == "" {
		return zerolog.ErrorLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(levelString))
	if err != nil {
		return zerolog.ErrorLevel, fmt.Errorf("invalid log level %q: %w", levelString, err)
	}
	return level, nil
}

// SetLogWriter sets the global log writer.
func SetLogWriter(w io.Writer) {
	logWriter = w
}
