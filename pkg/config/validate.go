package config

import (
	"fmt"
	"strings"

	"github.com/japaniel/kotoba/pkg/cache"
)

// Validate performs business-rule validation on the loaded configuration.
// Load calls it automatically.
func (c *Config) Validate() error {
	if err := c.Server.validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Dictionary.validate(); err != nil {
		return fmt.Errorf("dictionary: %w", err)
	}
	if err := c.Cache.validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.Log.validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics: path must start with / (got %q)", c.Metrics.Path)
	}
	return nil
}

func (s *ServerConfig) validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("port must be in 1..65535 (got %d)", s.Port)
	}
	if s.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout must be >= 0 (got %v)", s.ShutdownTimeout)
	}
	return nil
}

func (d *DictionaryConfig) validate() error {
	if d.Workers <= 0 {
		return fmt.Errorf("workers must be > 0 (got %d)", d.Workers)
	}
	if d.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", d.BatchSize)
	}
	if d.AutoDownload && d.JMdictPath == "" {
		return fmt.Errorf("auto_download requires jmdict_path")
	}
	return nil
}

func (c *CacheConfig) validate() error {
	switch cache.Policy(strings.ToLower(c.Policy)) {
	case cache.PolicyClear, cache.PolicyLRU, cache.PolicyNone:
	default:
		return fmt.Errorf("unknown policy %q", c.Policy)
	}
	if c.MaxEntries < 0 {
		return fmt.Errorf("max_entries must be >= 0 (got %d)", c.MaxEntries)
	}
	return nil
}

func (l *LogConfig) validate() error {
	switch strings.ToLower(l.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("format must be json or text (got %q)", l.Format)
	}
	return nil
}

// Origins splits AllowedOrigins into trimmed, non-empty values.
func (c CORSConfig) Origins() []string {
	return splitList(c.AllowedOrigins)
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
