// ABOUTME: Configuration loading and parsing for composer-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete composer-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Worker   WorkerConfig   `yaml:"worker"`
	Models   ModelsConfig   `yaml:"models"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// WorkerConfig holds generation worker process configuration
type WorkerConfig struct {
	// Bin is the worker executable invoked once per generation request.
	Bin string `yaml:"bin"`
	// ExtraArgs are appended to every worker invocation.
	ExtraArgs []string `yaml:"extra_args"`

	// ShutdownGrace bounds how long in-flight generations may run during
	// shutdown before the process exits anyway.
	ShutdownGrace    time.Duration `yaml:"-"`
	ShutdownGraceRaw string        `yaml:"shutdown_grace"`
}

// ModelEntry names one known generation model and its checkpoint.
type ModelEntry struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// ModelsConfig holds the model catalogue. Either an explicit catalog or a
// directory to scan for *.pickle checkpoints.
type ModelsConfig struct {
	Dir     string       `yaml:"dir"`
	Catalog []ModelEntry `yaml:"catalog"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Worker.Bin == "" {
		return fmt.Errorf("worker.bin is required")
	}
	if c.Models.Dir == "" && len(c.Models.Catalog) == 0 {
		return fmt.Errorf("models.dir or models.catalog is required")
	}
	for _, m := range c.Models.Catalog {
		if m.Name == "" || m.Path == "" {
			return fmt.Errorf("models.catalog entries need both name and path")
		}
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Worker.ShutdownGraceRaw != "" {
		d, err := time.ParseDuration(cfg.Worker.ShutdownGraceRaw)
		if err != nil {
			return fmt.Errorf("parsing shutdown_grace %q: %w", cfg.Worker.ShutdownGraceRaw, err)
		}
		cfg.Worker.ShutdownGrace = d
	}
	return nil
}
