// Package config loads the service configuration from a yaml or json file
// with environment variable overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/noachFrank/DriverApp-sub001/api/calls"
	"github.com/noachFrank/DriverApp-sub001/auth"
	"github.com/noachFrank/DriverApp-sub001/core/metrics"
	"github.com/noachFrank/DriverApp-sub001/infra/mqtt"
	"github.com/noachFrank/DriverApp-sub001/infra/redisreg"
)

type Config struct {
	MQTT     mqtt.Config    `json:"mqtt"`
	API      calls.Config   `json:"api"`
	Registry RegistryConfig `json:"registry"`
	Dispatch DispatchConfig `json:"dispatch"`
	Logging  LoggingConfig  `json:"logging"`
	Metrics  metrics.Config `json:"metrics"`
	Auth     auth.Conf      `json:"auth"`
}

// Load reads the file at path and applies DISPATCHD_ environment overrides,
// e.g. DISPATCHD_MQTT__BROKER=tcp://broker:1883.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider("DISPATCHD_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "dispatchd_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Registry.SetDefaults()
	cfg.Dispatch.SetDefaults()
	cfg.Logging.SetDefaults()
	cfg.Metrics.SetDefaults()
	if cfg.API.Addr == "" {
		cfg.API.Addr = ":8080"
	}
	if err := cfg.Registry.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// RegistryConfig selects the call registry backend.
type RegistryConfig struct {
	// Backend is "memory" or "redis".
	Backend string          `json:"backend"`
	Redis   redisreg.Config `json:"redis"`
}

func (c *RegistryConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
}

func (c RegistryConfig) Validate() error {
	if c.Backend != "memory" && c.Backend != "redis" {
		return fmt.Errorf("unknown registry backend %s", c.Backend)
	}
	return nil
}

// DispatchConfig tunes the claim round trip.
type DispatchConfig struct {
	// ClaimTimeoutSeconds bounds how long a driver waits for a claim result.
	ClaimTimeoutSeconds int `json:"claim_timeout_seconds"`
}

func (c *DispatchConfig) SetDefaults() {
	if c.ClaimTimeoutSeconds <= 0 {
		c.ClaimTimeoutSeconds = 5
	}
}
