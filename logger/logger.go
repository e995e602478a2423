// Package logger builds the process logger.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// New returns a logger at level. Production and staging log JSON; anything
// else gets the human-readable text format. An unknown level falls back to
// info with a warning.
func New(level, environment string) *logrus.Logger {
	return NewWithOutput(os.Stdout, level, environment)
}

func NewWithOutput(out io.Writer, level, environment string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	switch strings.ToLower(environment) {
	case "production", "staging":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	default:
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	parsed, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		log.SetLevel(logrus.InfoLevel)
		log.Warnf("Invalid log level '%s', defaulting to 'info'", level)
	} else {
		log.SetLevel(parsed)
	}

	log.Debugf("Logger initialized for environment %s", environment)
	return log
}
