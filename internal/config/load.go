// internal/config/load.go
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// EnvConfig holds the environment overrides applied after the file is read.
type EnvConfig struct {
	Device string `env:"FTBRIDGE_CAN_DEVICE"`
	Driver string `env:"FTBRIDGE_CAN_DRIVER"`
	HTTP   string `env:"FTBRIDGE_HTTP"`
	Debug  bool   `env:"FTBRIDGE_DEBUG" envDefault:"false"`
}

// Load reads a YAML config file and applies environment overrides.
// It does not validate or normalize.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse decodes YAML bytes and applies environment overrides.
func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config parse: %w", err)
	}

	e, err := LoadEnv()
	if err != nil {
		return nil, err
	}
	e.Apply(&cfg)

	return &cfg, nil
}

// LoadEnv reads the FTBRIDGE_* environment.
func LoadEnv() (EnvConfig, error) {
	var e EnvConfig
	if err := env.Parse(&e); err != nil {
		return e, fmt.Errorf("config env: %w", err)
	}
	return e, nil
}

// Apply overrides file values with non-empty environment values.
func (e EnvConfig) Apply(cfg *Config) {
	if e.Device != "" {
		cfg.Bridge.Device.Name = e.Device
	}
	if e.Driver != "" {
		cfg.Bridge.Device.Driver = e.Driver
	}
	if e.HTTP != "" {
		cfg.Bridge.HTTP.Listen = e.HTTP
	}
}
