package logging

import (
	"github.com/pkg/errors"
)

// Config selects the level and optional rotated file output of the process logger.
type Config struct {
	Level      string `json:"level,omitempty"`
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg Config) Validate(path string) error {
	if _, err := LevelFromString(cfg.Level); err != nil {
		return errors.Wrapf(err, "%s.level", path)
	}
	if cfg.MaxSizeMB < 0 {
		return errors.Errorf("%s.max_size_mb must not be negative", path)
	}
	if cfg.MaxBackups < 0 {
		return errors.Errorf("%s.max_backups must not be negative", path)
	}
	return nil
}

// NewLoggerFromConfig returns a logger that writes to stdout and, if cfg.File is set, to a rotated
// file. The returned closer releases the file and is never nil.
func NewLoggerFromConfig(name string, cfg Config) (Logger, func() error, error) {
	level, err := LevelFromString(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	logger := NewLogger(name)
	logger.SetLevel(level)
	if cfg.File == "" {
		return logger, func() error { return nil }, nil
	}

	fileAppender := NewFileAppender(cfg.File, cfg.MaxSizeMB, cfg.MaxBackups)
	logger.AddAppender(fileAppender)
	return logger, fileAppender.Close, nil
}
