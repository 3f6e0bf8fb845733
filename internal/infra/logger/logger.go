// internal/infra/logger/logger.go
package logger

import (
	"io"
	"os"
	"strings"

	"question_rotation_bot/internal/infra/config"

	"github.com/sirupsen/logrus"
)

// Log is the global logger instance
var Log = logrus.New()

// Init configures the global logger: level from LOG_LEVEL, format from ENVIRONMENT.
func Init(cfg *config.AppConfig) {
	Log.SetOutput(os.Stdout)
	Log.SetLevel(levelFor(cfg.LogLevel))
	Log.SetFormatter(formatterFor(cfg.Environment))

	if !strings.EqualFold(Log.GetLevel().String(), cfg.LogLevel) {
		Log.Warnf("Invalid log level '%s', defaulting to 'info'.", cfg.LogLevel)
	}
	Log.WithFields(logrus.Fields{
		"level":       Log.GetLevel().String(),
		"environment": cfg.Environment,
	}).Info("Logger initialized successfully.")
}

func levelFor(raw string) logrus.Level {
	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// formatterFor emits JSON where logs are shipped (production, staging) and text elsewhere.
func formatterFor(environment string) logrus.Formatter {
	switch strings.ToLower(environment) {
	case "production", "staging":
		return &logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00", // ISO8601
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyMsg: "message",
			},
		}
	default:
		return &logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		}
	}
}

// Component returns an entry tagged with the component name, the base for per-service loggers.
func Component(name string) *logrus.Entry {
	return Log.WithField("component", name)
}

// Discard returns an entry that drops everything, for tests.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
