// Package config loads service settings from an optional YAML or TOML file
// overlaid with environment variables.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"     toml:"server"`
	Dictionary DictionaryConfig `yaml:"dictionary" toml:"dictionary"`
	Cache      CacheConfig      `yaml:"cache"      toml:"cache"`
	Log        LogConfig        `yaml:"log"        toml:"log"`
	Metrics    MetricsConfig    `yaml:"metrics"    toml:"metrics"`
	CORS       CORSConfig       `yaml:"cors"       toml:"cors"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `yaml:"host"             toml:"host"             env:"SERVER_HOST"             env-default:"0.0.0.0"`
	Port            int           `yaml:"port"             toml:"port"             env:"SERVER_PORT"             env-default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     toml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    toml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     toml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// DictionaryConfig says where dictionary data comes from.
//
// When DBPath is set and the database holds entries, the service loads from
// SQLite. Otherwise it reads the source files directly.
type DictionaryConfig struct {
	Dir              string `yaml:"dir"               toml:"dir"               env:"DICT_DIR"               env-default:"data"`
	JMdictPath       string `yaml:"jmdict_path"       toml:"jmdict_path"       env:"DICT_JMDICT_PATH"`
	FuriganaPath     string `yaml:"furigana_path"     toml:"furigana_path"     env:"DICT_FURIGANA_PATH"`
	DBPath           string `yaml:"db_path"           toml:"db_path"           env:"DICT_DB_PATH"`
	Workers          int    `yaml:"workers"           toml:"workers"           env:"DICT_WORKERS"           env-default:"4"`
	BatchSize        int    `yaml:"batch_size"        toml:"batch_size"        env:"DICT_BATCH_SIZE"        env-default:"500"`
	AutoDownload     bool   `yaml:"auto_download"     toml:"auto_download"     env:"DICT_AUTO_DOWNLOAD"`
	GenerateFurigana bool   `yaml:"generate_furigana" toml:"generate_furigana" env:"DICT_GENERATE_FURIGANA"`
}

// CacheConfig selects the search result cache policy.
type CacheConfig struct {
	Policy     string `yaml:"policy"      toml:"policy"      env:"CACHE_POLICY"      env-default:"clear"`
	MaxEntries int    `yaml:"max_entries" toml:"max_entries" env:"CACHE_MAX_ENTRIES" env-default:"1000"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  toml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" toml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled" env:"METRICS_ENABLED"`
	Path    string `yaml:"path"    toml:"path"    env:"METRICS_PATH"    env-default:"/metrics"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins string `yaml:"allowed_origins" toml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"*"`
	AllowedMethods string `yaml:"allowed_methods" toml:"allowed_methods" env:"CORS_ALLOWED_METHODS" env-default:"GET,OPTIONS"`
	AllowedHeaders string `yaml:"allowed_headers" toml:"allowed_headers" env:"CORS_ALLOWED_HEADERS" env-default:"Content-Type"`
	MaxAge         int    `yaml:"max_age"         toml:"max_age"         env:"CORS_MAX_AGE"         env-default:"86400"`
}
