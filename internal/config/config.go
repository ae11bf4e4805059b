package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models taskboard.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret              string   `yaml:"jwt_secret"`
		DevLogin               bool     `yaml:"dev_login"`
		AllowLegacyActorHeader bool     `yaml:"allow_legacy_actor_header"`
		AdminRoles             []string `yaml:"admin_roles"`
	} `yaml:"auth"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Cache struct {
		RedisURL string `yaml:"redis_url"`
		TTL      string `yaml:"ttl"`
	} `yaml:"cache"`
	Board struct {
		DefaultSections []string `yaml:"default_sections"`
	} `yaml:"board"`
	Statuses []Status `yaml:"statuses"`
}

// Status is one entry of the task status enumeration. Entries are ordered;
// the first one is the default for new tasks.
type Status struct {
	Key   string `yaml:"key"`
	Label string `yaml:"label"`
}

const FileName = "taskboard.yml"

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if len(c.Board.DefaultSections) == 0 {
		return fmt.Errorf("config.board.default_sections is required")
	}
	for i, name := range c.Board.DefaultSections {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("config.board.default_sections[%d] is empty", i)
		}
	}
	if _, err := NewStatusSet(c.Statuses); err != nil {
		return err
	}
	if _, err := c.CacheTTL(); err != nil {
		return err
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	return nil
}

// StatusSet returns the validated status enumeration.
func (c *Config) StatusSet() StatusSet {
	s, _ := NewStatusSet(c.Statuses)
	return s
}

// CacheTTL parses cache.ttl; empty means the built-in default.
func (c *Config) CacheTTL() (time.Duration, error) {
	if strings.TrimSpace(c.Cache.TTL) == "" {
		return 5 * time.Minute, nil
	}
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return 0, fmt.Errorf("config.cache.ttl: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config.cache.ttl must not be negative")
	}
	return d, nil
}

// AdminRoles returns the roles treated as administrators.
func (c *Config) AdminRoles() []string {
	if len(c.Auth.AdminRoles) == 0 {
		return []string{"admin"}
	}
	return c.Auth.AdminRoles
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Load reads config from the workspace, falling back to defaults when the
// file does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes. Keys missing from
// the document keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /v1

auth:
  jwt_secret: ""
  dev_login: false
  allow_legacy_actor_header: false
  admin_roles: [admin]

log:
  level: info
  format: text

cache:
  redis_url: ""
  ttl: 5m

board:
  default_sections:
    - To Do
    - In Progress
    - Completed

statuses:
  - key: pending
    label: Pending
  - key: in_progress
    label: In Progress
  - key: on_hold
    label: On Hold
  - key: completed
    label: Completed
`
