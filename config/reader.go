package config

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"

	"go.viam.com/rtdebridge/logging"
)

// Read reads a config from the given file. `${VAR}` references are expanded from the environment
// before parsing. Files ending in .toml are parsed as TOML, anything else as JSON.
func Read(ctx context.Context, filePath string, logger logging.Logger) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	return FromReader(ctx, filePath, bytes.NewReader(buf), logger)
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
func FromReader(ctx context.Context, originalPath string, r io.Reader, logger logging.Logger) (*Config, error) {
	attrs := map[string]interface{}{}
	if strings.EqualFold(filepath.Ext(originalPath), ".toml") {
		if _, err := toml.NewDecoder(r).Decode(&attrs); err != nil {
			return nil, errors.Wrap(err, "failed to decode Config from toml")
		}
	} else {
		if err := json.NewDecoder(r).Decode(&attrs); err != nil {
			return nil, errors.Wrap(err, "failed to decode Config from json")
		}
	}

	cfg, err := FromAttributes(attrs)
	if err != nil {
		return nil, err
	}
	cfg.ConfigFilePath = originalPath
	logger.CDebugw(ctx, "read config", "path", originalPath, "host", cfg.Host, "frequency_hz", cfg.Frequency)
	return cfg, nil
}

// FromAttributes decodes an attribute map into a Config, applies defaults and validates it.
// Unknown keys are rejected.
func FromAttributes(attrs map[string]interface{}) (*Config, error) {
	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      &cfg,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attrs); err != nil {
		return nil, errors.Wrap(err, "failed to process Config")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate("config"); err != nil {
		return nil, err
	}
	return &cfg, nil
}
