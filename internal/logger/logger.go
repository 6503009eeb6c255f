package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSizeMB  = 100
	defaultMaxAgeDays = 14
	defaultMaxBackups = 5
)

// Config selects the level and an optional rotated log file.
type Config struct {
	Level string
	File  string
}

// New builds a JSON logrus logger writing to stdout, and to a rotated file when File is set.
func New(cfg Config) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	level := strings.TrimSpace(cfg.Level)
	if level == "" {
		level = "info"
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	log.SetLevel(parsed)

	if cfg.File == "" {
		log.SetOutput(os.Stdout)
		return log, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	log.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    defaultMaxSizeMB,
		MaxAge:     defaultMaxAgeDays,
		MaxBackups: defaultMaxBackups,
		Compress:   true,
	}))
	return log, nil
}
