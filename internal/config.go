package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	BackendGoGit = "gogit"
	BackendCLI   = "cli"

	CacheMemory   = "memory"
	CacheSQLite   = "sqlite"
	CacheBadger   = "badger"
	CachePostgres = "postgres"
)

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type CacheConfig struct {
	Backend string `yaml:"backend"`
	DSN     string `yaml:"dsn,omitempty"`
	Path    string `yaml:"path,omitempty"`
	LRUSize int    `yaml:"lru_size"`
}

type Config struct {
	MirrorsDir       string        `yaml:"mirrors_dir"`
	RemoteBaseURL    string        `yaml:"remote_base_url"`
	GitHubToken      string        `yaml:"github_token,omitempty"`
	GitBinary        string        `yaml:"git_binary"`
	VCSBackend       string        `yaml:"vcs_backend"`
	Listen           string        `yaml:"listen"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	DiskWarnPercent  float64       `yaml:"disk_warn_percent"`
	ExcludePaths     []string      `yaml:"exclude_paths,omitempty"`
	ExcludeFile      string        `yaml:"exclude_file,omitempty"`
	KnownCommitsSize int           `yaml:"known_commits_size"`
	Log              LogConfig     `yaml:"log"`
	Cache            CacheConfig   `yaml:"cache"`
}

func DefaultConfig() *Config {
	return &Config{
		MirrorsDir:       DefaultMirrorsDir(),
		RemoteBaseURL:    DefaultRemoteBaseURL,
		GitBinary:        "git",
		VCSBackend:       BackendGoGit,
		Listen:           "127.0.0.1:3000",
		RequestTimeout:   5 * time.Minute,
		DiskWarnPercent:  50,
		KnownCommitsSize: 4096,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Cache: CacheConfig{
			Backend: CacheMemory,
			LRUSize: 1024,
		},
	}
}

func DefaultMirrorsDir() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(cacheDir, "blamed", "mirrors")
}

// LoadConfig reads path on top of the defaults and applies environment
// overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv(os.LookupEnv)
	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	// MIRRORS_DIR is what older deployments set.
	if v, ok := lookup("MIRRORS_DIR"); ok && v != "" {
		c.MirrorsDir = v
	}
	if v, ok := lookup("BLAMED_MIRRORS_DIR"); ok && v != "" {
		c.MirrorsDir = v
	}
	if v, ok := lookup("BLAMED_CACHE_DSN"); ok && v != "" {
		c.Cache.DSN = v
	}
	if v, ok := lookup("BLAMED_GITHUB_TOKEN"); ok && v != "" {
		c.GitHubToken = v
	}
	if v, ok := lookup("BLAMED_LISTEN"); ok && v != "" {
		c.Listen = v
	}
}

// Validate reports every missing or inconsistent value at once so a
// misconfigured process fails before serving anything.
func (c *Config) Validate() error {
	var errs []error

	if c.MirrorsDir == "" {
		errs = append(errs, errors.New("mirrors_dir is required (or set BLAMED_MIRRORS_DIR)"))
	}
	switch c.VCSBackend {
	case BackendGoGit, BackendCLI:
	default:
		errs = append(errs, fmt.Errorf("vcs_backend %q: want %q or %q", c.VCSBackend, BackendGoGit, BackendCLI))
	}
	if c.GitBinary == "" {
		errs = append(errs, errors.New("git_binary is required"))
	}
	if c.DiskWarnPercent < 0 || c.DiskWarnPercent > 100 {
		errs = append(errs, fmt.Errorf("disk_warn_percent %v out of range [0,100]", c.DiskWarnPercent))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("request_timeout %v is negative", c.RequestTimeout))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want text or json", c.Log.Format))
	}
	if c.Cache.LRUSize < 0 {
		errs = append(errs, fmt.Errorf("cache.lru_size %d is negative", c.Cache.LRUSize))
	}

	switch c.Cache.Backend {
	case CacheMemory:
		if c.Cache.LRUSize == 0 {
			errs = append(errs, errors.New("cache.lru_size must be positive for the memory backend"))
		}
	case CacheSQLite, CacheBadger:
		if c.Cache.Path == "" {
			errs = append(errs, fmt.Errorf("cache.path is required for the %s backend", c.Cache.Backend))
		}
	case CachePostgres:
		if c.Cache.DSN == "" {
			errs = append(errs, errors.New("cache.dsn is required for the postgres backend (or set BLAMED_CACHE_DSN)"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is unknown", c.Cache.Backend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// NewLogger builds the process logger described by c.Log.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	log.SetLevel(level)

	if c.Log.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	return log, nil
}
