package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/go-errors/errors"
	"github.com/sirupsen/logrus"

	"pathview-server/internal/config"
	"pathview-server/internal/version"
)

// NewLogger returns the process logger. LOG_LEVEL in the environment wins over
// the configured level.
func NewLogger(cfg config.Config) (*logrus.Entry, error) {
	log := logrus.New()
	log.SetLevel(getLogLevel(cfg.LogLevel))

	if cfg.LogFormat == "json" {
		log.Formatter = &logrus.JSONFormatter{}
	} else {
		log.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	}

	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, errors.Wrap(err, 0)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, errors.Wrap(err, 0)
		}
		// Log to file and stdout.
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	} else {
		log.SetOutput(os.Stdout)
	}

	info := version.Get()
	return log.WithFields(logrus.Fields{
		"version": info.Version,
		"commit":  info.Commit,
	}), nil
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *logrus.Entry {
	log := logrus.New()
	log.Out = io.Discard
	return logrus.NewEntry(log)
}

func getLogLevel(configured string) logrus.Level {
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		if level, err := logrus.ParseLevel(env); err == nil {
			return level
		}
	}
	level, err := logrus.ParseLevel(configured)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
