// Package log provides structured logging for Replicante Core using
// zerolog, following the same global-logger-plus-context-loggers shape
// the teacher repo's pkg/log uses, with helpers scoped to this domain's
// identifiers (namespace, cluster, action) instead of node/service ids.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Level represents a configured log level.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

func init() {
	// Safe default so packages can log before Init is called (e.g. in tests).
	Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// Init initializes the global logger.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent creates a child logger tagged with the owning component.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithNamespace creates a child logger tagged with a namespace id.
func WithNamespace(nsID string) zerolog.Logger {
	return Logger.With().Str("ns_id", nsID).Logger()
}

// WithCluster creates a child logger tagged with namespace and cluster ids.
func WithCluster(nsID, clusterID string) zerolog.Logger {
	return Logger.With().Str("ns_id", nsID).Str("cluster_id", clusterID).Logger()
}

// WithAction creates a child logger tagged with an action id.
func WithAction(actionID string) zerolog.Logger {
	return Logger.With().Str("action_id", actionID).Logger()
}

// Info logs a message at info level using the global logger.
func Info(msg string) { Logger.Info().Msg(msg) }

// Debug logs a message at debug level using the global logger.
func Debug(msg string) { Logger.Debug().Msg(msg) }

// Warn logs a message at warn level using the global logger.
func Warn(msg string) { Logger.Warn().Msg(msg) }

// Error logs a message at error level using the global logger.
func Error(msg string) { Logger.Error().Msg(msg) }

// Errorf logs a message with an attached error using the global logger.
func Errorf(format string, err error) { Logger.Error().Err(err).Msg(format) }

// Fatal logs a message at fatal level and exits the process.
func Fatal(msg string) { Logger.Fatal().Msg(msg) }
