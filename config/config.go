/*
config.go - Server configuration

PURPOSE:
  Loads the YAML configuration of the planning server. ${ENV_VAR}
  placeholders are expanded before parsing, and every missing key falls
  back to a default so an empty file (or no file) is a working setup.

FORMAT:
    server:
      port: 8080
      allowed_origins: ["http://localhost:5173"]
      max_body_bytes: 1048576
    database:
      path: data/planning.db
    log:
      level: info
      pretty: true
    supervision:
      max_rooms_per_supervisor: 2
      max_rooms_exceptional: 3
    metrics:
      enabled: true

SEE ALSO:
  - cmd/server/main.go: Flags override the loaded values
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/warp/planning-engine/supervision"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort         = 8080
	DefaultDatabasePath = "data/planning.db"
	DefaultMaxBodyBytes = 1 << 20
	DefaultMaxRooms     = 2
)

type Config struct {
	Server struct {
		Port           int      `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		MaxBodyBytes   int64    `yaml:"max_body_bytes"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`

	Supervision struct {
		MaxRoomsPerSupervisor int `yaml:"max_rooms_per_supervisor"`
		MaxRoomsExceptional   int `yaml:"max_rooms_exceptional"`
	} `yaml:"supervision"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"metrics"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.Metrics.Enabled = true
	cfg.Log.Pretty = true
	cfg.applyDefaults()
	return &cfg
}

// Load reads the file at path. An empty path yields Default().
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	// Keys the file omits keep their Default() value.
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Supervision.MaxRoomsPerSupervisor == 0 {
		c.Supervision.MaxRoomsPerSupervisor = DefaultMaxRooms
	}
}

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Supervision.MaxRoomsPerSupervisor < 1 {
		return fmt.Errorf("supervision.max_rooms_per_supervisor must be >= 1")
	}
	if c.Supervision.MaxRoomsExceptional != 0 &&
		c.Supervision.MaxRoomsExceptional <= c.Supervision.MaxRoomsPerSupervisor {
		return fmt.Errorf("supervision.max_rooms_exceptional must exceed max_rooms_per_supervisor")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// LogLevel returns the parsed level, info when unparsable.
func (c *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// SupervisionConfig maps the supervision section onto the validator config.
func (c *Config) SupervisionConfig() supervision.Config {
	return supervision.Config{
		MaxRoomsPerSupervisor: c.Supervision.MaxRoomsPerSupervisor,
		MaxRoomsExceptional:   c.Supervision.MaxRoomsExceptional,
	}
}

// EnsureDatabaseDir creates the directory holding the database file.
func (c *Config) EnsureDatabaseDir() error {
	if c.Database.Path == ":memory:" {
		return nil
	}
	return os.MkdirAll(filepath.Dir(c.Database.Path), 0o755)
}
