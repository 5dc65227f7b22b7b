package logger

import (
	"io"
	"os"
	"syscall"
	"time"

	"codeberg.org/mutker/plugmon/internal/errors"
	"github.com/rs/zerolog"
)

var (
	log                  = zerolog.New(os.Stdout).With().Timestamp().Logger()
	consoleOut io.Writer = os.Stdout
)

type LogLevel string

const (
	DebugLevel   LogLevel = "debug"
	InfoLevel    LogLevel = "info"
	WarningLevel LogLevel = "warning"
	ErrorLevel   LogLevel = "error"
)

// IsValid returns whether the log level is known
func (l LogLevel) IsValid() bool {
	switch l {
	case DebugLevel, InfoLevel, WarningLevel, ErrorLevel:
		return true
	default:
		return false
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarningLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type LogEvent struct {
	*zerolog.Event
}

func (e *LogEvent) Msg(msg string) {
	e.Event.Msg(msg)
}

func (e *LogEvent) Send() {
	e.Event.Send()
}

// Init initializes the logger with a console writer at the given level
func Init(level LogLevel, isService bool) error {
	if !level.IsValid() {
		return errors.New().WithData(errors.ErrInvalidLogLevel, level)
	}

	output := zerolog.ConsoleWriter{
		Out:        consoleOut,
		TimeFormat: time.RFC3339,
	}

	// journald adds its own timestamps
	if isService {
		output.TimeFormat = ""
		output.FormatTimestamp = func(_ interface{}) string {
			return ""
		}
	}

	log = zerolog.New(output).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(level.zerolog())

	return nil
}

// SetConsoleOutput sets where Init sends console output. It must be called
// before Init.
func SetConsoleOutput(w io.Writer) {
	consoleOut = w
}

// SetOutput replaces the log destination, keeping JSON encoding.
func SetOutput(w io.Writer) {
	log = zerolog.New(w).With().Timestamp().Logger()
}

// IsService checks if the application is running as a service
func IsService() bool {
	if _, err := os.Stdin.Stat(); err != nil {
		return true
	}
	if os.Getenv("SERVICE_NAME") != "" || os.Getenv("INVOCATION_ID") != "" {
		return true
	}
	if os.Getppid() == 1 {
		return true
	}

	return syscall.Getpgrp() == syscall.Getpid()
}

// Debug logs a debug message
func Debug() *LogEvent {
	return &LogEvent{log.Debug()}
}

// Info logs an info message
func Info() *LogEvent {
	return &LogEvent{log.Info()}
}

// Warn logs a warning message
func Warn() *LogEvent {
	return &LogEvent{log.Warn()}
}

// Error logs an error message
func Error() *LogEvent {
	return &LogEvent{log.Error()}
}

// ErrorWithCode logs an error message with its error code
func ErrorWithCode(err error) *LogEvent {
	return &LogEvent{log.Error().
		Str("error_code", string(errors.CodeOf(err))).
		Err(err)}
}

// Fatal logs a fatal message and exits the program
func Fatal() *LogEvent {
	return &LogEvent{log.Fatal()}
}

// With returns a Logger that tags every event with the component name.
func With(component string) Logger {
	return &componentLogger{component: component}
}

// componentLogger resolves the package logger on every call so that Init
// and SetOutput apply to loggers created before them.
type componentLogger struct {
	component string
}

func (c *componentLogger) sub() zerolog.Logger {
	return log.With().Str("component", c.component).Logger()
}

func (c *componentLogger) Debug() *LogEvent {
	l := c.sub()
	return &LogEvent{l.Debug()}
}

func (c *componentLogger) Info() *LogEvent {
	l := c.sub()
	return &LogEvent{l.Info()}
}

func (c *componentLogger) Warn() *LogEvent {
	l := c.sub()
	return &LogEvent{l.Warn()}
}

func (c *componentLogger) Error() *LogEvent {
	l := c.sub()
	return &LogEvent{l.Error()}
}

func (c *componentLogger) ErrorWithCode(err error) *LogEvent {
	l := c.sub()
	return &LogEvent{l.Error().
		Str("error_code", string(errors.CodeOf(err))).
		Err(err)}
}
