package shared

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Progress store drivers accepted in [ProgressConfig.Driver].
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Database    DatabaseConfig    `toml:"database"`
	Progress    ProgressConfig    `toml:"progress"`
	Job         JobConfig         `toml:"job"`
	Permissions PermissionsConfig `toml:"permissions"`
	Server      ServerConfig      `toml:"server"`
	Log         LogConfig         `toml:"log"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ProgressConfig selects where batch progress is persisted between steps.
type ProgressConfig struct {
	Driver    string `toml:"driver"`
	RedisURL  string `toml:"redis_url"`
	KeyPrefix string `toml:"key_prefix"`
}

// JobConfig contains defaults for batch runs started from the CLI.
type JobConfig struct {
	Roles          []string `toml:"roles"`
	StepsPerSecond float64  `toml:"steps_per_second"`
	Principal      string   `toml:"principal"`
}

// PermissionsConfig maps roles to the capabilities they grant.
type PermissionsConfig struct {
	Roles map[string][]string `toml:"roles"`
}

// ServerConfig contains HTTP server settings.
//
// Tokens maps a bearer token to the login it acts as. TrustedProxy lets a proxy in
// front of the server name the login in the X-Principal header instead.
type ServerConfig struct {
	Host         string            `toml:"host"`
	Port         int               `toml:"port"`
	Tokens       map[string]string `toml:"tokens"`
	TrustedProxy bool              `toml:"trusted_proxy"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Addr returns the host:port pair the server listens on.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig], and environment overrides are applied last.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the fields that cannot be defaulted.
func (c *Config) Validate() error {
	if !slices.Contains([]string{DriverSQLite, DriverRedis, DriverMemory}, c.Progress.Driver) {
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Progress.Driver)
	}
	if c.Progress.Driver == DriverRedis && c.Progress.RedisURL == "" {
		return fmt.Errorf("%w: progress.redis_url is required for the redis driver", ErrInvalidConfig)
	}
	if c.Job.StepsPerSecond < 0 {
		return fmt.Errorf("%w: job.steps_per_second must not be negative", ErrInvalidConfig)
	}
	if len(c.Permissions.Roles) == 0 {
		return fmt.Errorf("%w: permissions.roles must grant at least one role", ErrInvalidConfig)
	}
	for token, login := range c.Server.Tokens {
		if token == "" || login == "" {
			return fmt.Errorf("%w: server.tokens entries need a token and a login", ErrInvalidConfig)
		}
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("AFFMIGRATE_DATABASE_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("AFFMIGRATE_PROGRESS_DRIVER"); v != "" {
		c.Progress.Driver = v
	}
	if v := os.Getenv("AFFMIGRATE_REDIS_URL"); v != "" {
		c.Progress.RedisURL = v
	}
}
