// Package logger configures the process-wide logrus logger.
//
// Console output is always on; a rotating file (lumberjack) is added
// when a path is configured. Components receive *logrus.Entry values
// scoped with a "component" field instead of reaching for a global.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls log level and optional file output.
type Config struct {
	Level      string `json:"level" yaml:"level"`             // debug|info|warn|error
	OutputFile string `json:"output_file" yaml:"output_file"` // empty = console only
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `json:"compress" yaml:"compress"`
}

// New builds a configured logrus logger.
func New(cfg Config) (*logrus.Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(defaultString(cfg.Level, "info"))
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	if cfg.OutputFile == "" {
		log.SetOutput(os.Stderr)
		return log, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.OutputFile), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.OutputFile,
		MaxSize:    defaultInt(cfg.MaxSizeMB, 50),
		MaxBackups: defaultInt(cfg.MaxBackups, 5),
		MaxAge:     defaultInt(cfg.MaxAgeDays, 14),
		Compress:   cfg.Compress,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	return log, nil
}

// Component returns an entry tagged for one subsystem.
func Component(log *logrus.Logger, name string) *logrus.Entry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return log.WithField("component", name)
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
