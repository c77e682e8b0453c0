package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "docdecor.yml"

// EnvPrefix prefixes environment overrides: DOCDECOR_SITE_DIR -> site_dir.
const EnvPrefix = "DOCDECOR_"

type Config struct {
	// Site layout
	SiteDir string   `koanf:"site_dir"`
	OutDir  string   `koanf:"out_dir"` // empty rewrites SiteDir in place
	Include []string `koanf:"include"`
	Exclude []string `koanf:"exclude"`

	// Worker pool
	Workers int `koanf:"workers"`

	// HTTP server
	Port         string `koanf:"port"`
	APIKey       string `koanf:"api_key"` // empty disables auth on /_api
	MaxBodyBytes int64  `koanf:"max_body_bytes"`

	// Rebuild jobs
	QueueSize int           `koanf:"queue_size"`
	JobTTL    time.Duration `koanf:"job_ttl"`

	// Stats and watch
	StatsWindow   time.Duration `koanf:"stats_window"`
	WatchDebounce time.Duration `koanf:"watch_debounce"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		SiteDir:       "site",
		Include:       []string{"**/*.html"},
		Workers:       4,
		Port:          "8000",
		MaxBodyBytes:  10 << 20, // 10MB
		QueueSize:     4,
		JobTTL:        1 * time.Hour,
		StatsWindow:   1 * time.Hour,
		WatchDebounce: 300 * time.Millisecond,
	}
}

// Load reads the YAML file at path if it exists, then overlays DOCDECOR_*
// environment variables.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return cfg, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return cfg, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshalling config: %w", err)
	}

	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 4
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.StatsWindow <= 0 {
		cfg.StatsWindow = 1 * time.Hour
	}
	if cfg.WatchDebounce <= 0 {
		cfg.WatchDebounce = 300 * time.Millisecond
	}
	if len(cfg.Include) == 0 {
		cfg.Include = []string{"**/*.html"}
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.SiteDir == "" {
		return fmt.Errorf("site_dir is required")
	}
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.OutDir != "" && c.OutDir == c.SiteDir {
		return fmt.Errorf("out_dir must differ from site_dir (leave it empty to rewrite in place)")
	}
	return nil
}

// fileConfig is the on-disk shape; durations are written as "1h0m0s".
type fileConfig struct {
	SiteDir       string   `yaml:"site_dir"`
	OutDir        string   `yaml:"out_dir,omitempty"`
	Include       []string `yaml:"include"`
	Exclude       []string `yaml:"exclude,omitempty"`
	Workers       int      `yaml:"workers"`
	Port          string   `yaml:"port"`
	APIKey        string   `yaml:"api_key,omitempty"`
	MaxBodyBytes  int64    `yaml:"max_body_bytes"`
	QueueSize     int      `yaml:"queue_size"`
	JobTTL        string   `yaml:"job_ttl"`
	StatsWindow   string   `yaml:"stats_window"`
	WatchDebounce string   `yaml:"watch_debounce"`
}

// Save writes the configuration to the given YAML file path.
func (c Config) Save(path string) error {
	data, err := yamlv3.Marshal(fileConfig{
		SiteDir:       c.SiteDir,
		OutDir:        c.OutDir,
		Include:       c.Include,
		Exclude:       c.Exclude,
		Workers:       c.Workers,
		Port:          c.Port,
		APIKey:        c.APIKey,
		MaxBodyBytes:  c.MaxBodyBytes,
		QueueSize:     c.QueueSize,
		JobTTL:        c.JobTTL.String(),
		StatsWindow:   c.StatsWindow.String(),
		WatchDebounce: c.WatchDebounce.String(),
	})
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}
