// Package config provides configuration file parsing for todostream.
//
// This package enables running todostream as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
// Files ending in .toml are read as TOML; anything else is read as YAML.
//
// Example configuration:
//
//	title: Groceries
//	port: 8080
//	keep_alive: 15s
//	retry: 2s
//	write_timeout: 5s
//	seed_file: todos.yaml
//
//	todos:
//	  - id: "1"
//	    label: Buy milk
//
// After the file is parsed, TODOSTREAM_* environment variables override the
// matching settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort         = 8080
	defaultKeepAlive    = 15 * time.Second
	defaultRetry        = 2 * time.Second
	defaultTickInterval = time.Second
	defaultWriteTimeout = 5 * time.Second
)

// Config is the root configuration structure for todostream.
//
// It maps directly to the configuration file structure.
// Use [Load], [Parse] or [ParseTOML] to create a Config.
type Config struct {
	// Title is the dashboard title. Defaults to "Todos" if not set.
	Title string `yaml:"title" toml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port" toml:"port"`

	// KeepAlive is the interval between keep-alive comments on idle
	// streams. "0s" disables them. Defaults to 15s.
	KeepAlive *Duration `yaml:"keep_alive" toml:"keep_alive"`

	// Retry is the reconnection delay advertised to clients. "0s" omits it.
	// Defaults to 2s.
	Retry *Duration `yaml:"retry" toml:"retry"`

	// TickInterval is the interval of the /api/ticks stream. Defaults to 1s.
	TickInterval Duration `yaml:"tick_interval" toml:"tick_interval"`

	// WriteTimeout bounds each frame write to a client. Defaults to 5s.
	WriteTimeout Duration `yaml:"write_timeout" toml:"write_timeout"`

	// SeedFile is a YAML todo list that is loaded at start and watched for
	// changes. Relative paths are resolved against the config file's
	// directory. Supports environment variable substitution.
	SeedFile string `yaml:"seed_file" toml:"seed_file"`

	// Todos is the initial list, used when no seed file is configured.
	Todos []TodoConfig `yaml:"todos" toml:"todos"`
}

// TodoConfig defines one todo in the inline list.
type TodoConfig struct {
	ID        string `yaml:"id" toml:"id"`
	Label     string `yaml:"label" toml:"label"`
	Completed bool   `yaml:"completed" toml:"completed"`
}

// envOverrides lists the settings that can be overridden from the
// environment. Unset variables leave the field untouched.
type envOverrides struct {
	Port      int           `env:"TODOSTREAM_PORT,strict"`
	Title     string        `env:"TODOSTREAM_TITLE"`
	SeedFile  string        `env:"TODOSTREAM_SEED_FILE"`
	KeepAlive time.Duration `env:"TODOSTREAM_KEEP_ALIVE,strict"`
}

// Duration wraps time.Duration for YAML and TOML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText implements encoding.TextUnmarshaler, used by the TOML decoder.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func durationPtr(d time.Duration) *Duration {
	v := Duration(d)
	return &v
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		varName := submatches[1]
		hasDefault := submatches[2] != ""

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return submatches[3]
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a configuration file.
//
// The format is chosen by extension: .toml for TOML, anything else for YAML.
// A relative seed_file is resolved against the directory of path.
// Returns an error if the file cannot be read, parsed, or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg *Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		cfg, err = decodeTOML(data)
	} else {
		cfg, err = decodeYAML(data)
	}
	if err != nil {
		return nil, err
	}

	if cfg.SeedFile != "" && !strings.Contains(cfg.SeedFile, "${") && !filepath.IsAbs(cfg.SeedFile) {
		cfg.SeedFile = filepath.Join(filepath.Dir(path), cfg.SeedFile)
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse parses YAML configuration data.
//
// Defaults are applied, environment overrides are read, and the result is
// validated.
func Parse(data []byte) (*Config, error) {
	cfg, err := decodeYAML(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseTOML parses TOML configuration data. See [Parse].
func ParseTOML(data []byte) (*Config, error) {
	cfg, err := decodeTOML(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &cfg, nil
}

func decodeTOML(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return &cfg, nil
}

// finish applies defaults and environment overrides, then validates.
func (c *Config) finish() error {
	c.applyDefaults()
	if err := c.applyEnv(); err != nil {
		return err
	}
	return c.expandAndValidate()
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.KeepAlive == nil {
		c.KeepAlive = durationPtr(defaultKeepAlive)
	}
	if c.Retry == nil {
		c.Retry = durationPtr(defaultRetry)
	}
	if c.TickInterval == 0 {
		c.TickInterval = Duration(defaultTickInterval)
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = Duration(defaultWriteTimeout)
	}
}

// applyEnv overlays TODOSTREAM_* environment variables.
func (c *Config) applyEnv() error {
	env := envOverrides{
		Port:      c.Port,
		Title:     c.Title,
		SeedFile:  c.SeedFile,
		KeepAlive: c.KeepAlive.Duration(),
	}
	if err := envdecode.Decode(&env); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("failed to read environment overrides: %w", err)
	}

	c.Port = env.Port
	c.Title = env.Title
	c.SeedFile = env.SeedFile
	c.KeepAlive = durationPtr(env.KeepAlive)
	return nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	var err error
	if c.Title, err = expandEnvVars(c.Title); err != nil {
		return fmt.Errorf("title: %w", err)
	}
	if c.SeedFile, err = expandEnvVars(c.SeedFile); err != nil {
		return fmt.Errorf("seed_file: %w", err)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.KeepAlive.Duration() < 0 {
		return fmt.Errorf("keep_alive cannot be negative, got %s", c.KeepAlive.Duration())
	}
	if c.Retry.Duration() < 0 {
		return fmt.Errorf("retry cannot be negative, got %s", c.Retry.Duration())
	}
	if c.TickInterval.Duration() <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %s", c.TickInterval.Duration())
	}
	if c.WriteTimeout.Duration() < 0 {
		return fmt.Errorf("write_timeout cannot be negative, got %s", c.WriteTimeout.Duration())
	}

	seen := make(map[string]struct{}, len(c.Todos))
	for i, td := range c.Todos {
		if td.ID == "" {
			return fmt.Errorf("todos[%d]: id is required", i)
		}
		if _, exists := seen[td.ID]; exists {
			return fmt.Errorf("todos[%d]: duplicate id %q", i, td.ID)
		}
		seen[td.ID] = struct{}{}
	}

	return nil
}
