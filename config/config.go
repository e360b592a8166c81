package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Data   DataConfig   `yaml:"data"`
	Auth   AuthConfig   `yaml:"auth"`
}

type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	LogLevel       string        `yaml:"logLevel"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
	ProxyURL       string        `yaml:"proxyUrl"`
	HTTPTimeout    time.Duration `yaml:"httpTimeout"`
}

// DataConfig points at the self-hosted data directory; DSN is derived from
// it unless overridden directly.
type DataConfig struct {
	Dir string `yaml:"dir"`
	DSN string `yaml:"dsn"`
}

// AuthConfig holds the single Basic-Auth credential guarding the non-public
// /ics/ paths; the /api routes are not behind it. Password may be plaintext or an Argon2
// hash (prefixed "$argon2id$"); PasswordIsHash selects which comparison
// the middleware uses.
type AuthConfig struct {
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	PasswordIsHash bool   `yaml:"passwordIsHash"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8082
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	if cfg.Server.HTTPTimeout == 0 {
		cfg.Server.HTTPTimeout = 60 * time.Second
	}
	if cfg.Data.Dir == "" {
		cfg.Data.Dir = "./data"
	}
	if cfg.Data.DSN == "" {
		cfg.Data.DSN = cfg.Data.Dir + "/caldav-ics-sync.db"
	}
}
