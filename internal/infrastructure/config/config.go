// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigDir is the directory name for review configuration.
	DefaultConfigDir = ".review"
	// DefaultConfigFile is the default config file name.
	DefaultConfigFile = "config.yaml"
	// DefaultProjectsFile is the default projects file name.
	DefaultProjectsFile = "projects.yaml"
)

// Config holds static infrastructure configuration (read-only after init).
type Config struct {
	Database DatabaseConfig `yaml:"database,omitempty"`
	Git      GitConfig      `yaml:"git,omitempty"`
	Redis    RedisConfig    `yaml:"redis,omitempty"`
	Log      LogConfig      `yaml:"log,omitempty"`
	Submit   SubmitConfig   `yaml:"submit,omitempty"`
}

// DatabaseConfig holds configuration for the SQLite change database.
type DatabaseConfig struct {
	// Path is the database file. Relative paths are resolved against the
	// config directory; ":memory:" is passed through.
	Path string `yaml:"path,omitempty"`
}

// GitConfig holds configuration for the project repositories.
type GitConfig struct {
	// BasePath holds one bare repository per project, <project>.git.
	// Relative paths are resolved against the working directory.
	BasePath string `yaml:"base_path,omitempty"`
}

// RedisConfig holds configuration for the Redis branch locks.
// An empty Addr selects in-process locks.
type RedisConfig struct {
	Addr      string        `yaml:"addr,omitempty"`
	Password  string        `yaml:"password,omitempty"`
	DB        int           `yaml:"db,omitempty"`
	KeyPrefix string        `yaml:"key_prefix,omitempty"`
	LockTTL   time.Duration `yaml:"lock_ttl,omitempty"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// SubmitConfig holds submit pipeline configuration.
type SubmitConfig struct {
	// Category is the action category whose vote requests a submit.
	Category string `yaml:"category,omitempty"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "review.db",
		},
		Git: GitConfig{
			BasePath: "git",
		},
		Redis: RedisConfig{
			KeyPrefix: "review:lock:",
			LockTTL:   30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		Submit: SubmitConfig{
			Category: "SUBM",
		},
	}
}

// Load loads configuration from the .review directory in the given path.
func Load(basePath string) (*Config, error) {
	configFile := ConfigFilePath(basePath)

	data, err := os.ReadFile(configFile)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s (run 'review init' first)", configFile)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Start with defaults
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	return cfg, nil
}

// applyEnvOverrides fills fields the file left empty from the environment.
func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("REVIEW_REDIS_ADDR"); addr != "" && c.Redis.Addr == "" {
		c.Redis.Addr = addr
	}
	if pw := os.Getenv("REVIEW_REDIS_PASSWORD"); pw != "" && c.Redis.Password == "" {
		c.Redis.Password = pw
	}
	if level := os.Getenv("REVIEW_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// Validate checks values that have no usable zero value.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.Submit.Category == "" {
		return errors.New("submit.category is required")
	}
	if c.Redis.Addr != "" && c.Redis.LockTTL <= 0 {
		return fmt.Errorf("redis.lock_ttl must be positive, got %s", c.Redis.LockTTL)
	}
	return nil
}

// ConfigDir returns the path to the .review config directory.
func ConfigDir(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir)
}

// ConfigFilePath returns the path to the config file.
func ConfigFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)
}

// ProjectsFilePath returns the path to the projects file.
func ProjectsFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultProjectsFile)
}

// DatabasePath resolves the configured database path.
func (c *Config) DatabasePath(basePath string) string {
	p := c.Database.Path
	if p == ":memory:" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(ConfigDir(basePath), p)
}

// RepoPath returns the bare repository directory of a project.
func (c *Config) RepoPath(basePath, project string) string {
	root := c.Git.BasePath
	if !filepath.IsAbs(root) {
		root = filepath.Join(basePath, root)
	}
	return filepath.Join(root, filepath.FromSlash(strings.Trim(project, "/"))+".git")
}
