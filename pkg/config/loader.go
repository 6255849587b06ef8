package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for config files that are neither YAML nor TOML.
var ErrUnsupportedFormat = errors.New("config file must be .toml, .yaml, or .yml")

// Load reads configuration from path and the environment.
// Priority: ENV > file > defaults (via env-default tags).
// An empty path loads from ENV + defaults only; a path that does not
// exist is an error.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if err := readFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	// Fills zero fields from env-default and applies env overrides.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}

func readFile(path string, cfg *Config) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(content, cfg); err != nil {
			return fmt.Errorf("parse toml: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return fmt.Errorf("parse yaml: %w", err)
		}
	default:
		return ErrUnsupportedFormat
	}
	return nil
}
