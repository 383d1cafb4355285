// Package logging configures the global logrus logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Setup points the global logger at stdout with the given level. Debug mode
// uses the human-readable text formatter, otherwise entries are JSON.
func Setup(level string, debug bool) error {
	return configure(logrus.StandardLogger(), os.Stdout, level, debug)
}

func configure(logger *logrus.Logger, out io.Writer, level string, debug bool) error {
	if debug {
		level = "debug"
	}
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return err
	}

	logger.SetOutput(out)
	logger.SetLevel(lvl)
	if debug {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	logger.Debug("Logger initialized")
	return nil
}
