// Package config loads runtime settings from defaults, an optional YAML file
// and LIBRARY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"cybooks/catalog"
	"cybooks/internal/logger"
)

// EnvPrefix prefixes every environment override, e.g. LIBRARY_DATABASE_PATH.
const EnvPrefix = "LIBRARY"

type Config struct {
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Catalog  CatalogConfig  `mapstructure:"catalog" yaml:"catalog"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// CatalogConfig tunes the remote SRU client.
type CatalogConfig struct {
	BaseURL           string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Burst             int           `mapstructure:"burst" yaml:"burst"`
	PageSize          int           `mapstructure:"page_size" yaml:"page_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "cybooks", "config.yml")
}

// Load reads the config. path wins over LIBRARY_CONFIG, which wins over
// DefaultPath. A missing default file is not an error; a missing file that
// was asked for explicitly is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := true
	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path == "" {
		path = DefaultPath()
		explicit = false
	}
	v.SetConfigFile(ExpandHome(path))
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.Is(err, os.ErrNotExist) || errors.As(err, &notFound)
		if !missing || explicit {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Database.Path = ExpandHome(cfg.Database.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "library.db")
	v.SetDefault("catalog.base_url", catalog.DefaultBaseURL)
	v.SetDefault("catalog.timeout", 10*time.Second)
	v.SetDefault("catalog.max_body_bytes", catalog.DefaultMaxBodySize)
	v.SetDefault("catalog.requests_per_second", 2.0)
	v.SetDefault("catalog.burst", 2)
	v.SetDefault("catalog.page_size", catalog.DefaultPageSize)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("metrics.addr", "")
}

// Validate rejects settings the rest of the program cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("config: database.path is empty")
	}
	if u, err := url.Parse(c.Catalog.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: catalog.base_url %q is not an absolute URL", c.Catalog.BaseURL)
	}
	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("config: catalog.timeout must be positive, got %s", c.Catalog.Timeout)
	}
	if c.Catalog.MaxBodyBytes <= 0 {
		return fmt.Errorf("config: catalog.max_body_bytes must be positive, got %d", c.Catalog.MaxBodyBytes)
	}
	if c.Catalog.RequestsPerSecond <= 0 {
		return fmt.Errorf("config: catalog.requests_per_second must be positive, got %v", c.Catalog.RequestsPerSecond)
	}
	if c.Catalog.Burst <= 0 {
		return fmt.Errorf("config: catalog.burst must be positive, got %d", c.Catalog.Burst)
	}
	if c.Catalog.PageSize <= 0 {
		return fmt.Errorf("config: catalog.page_size must be positive, got %d", c.Catalog.PageSize)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("config: log.format must be json or text, got %q", c.Log.Format)
	}
	return nil
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(cfg *Config, path string) error {
	path = ExpandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

// ExpandHome expands a leading ~/ in a path.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
