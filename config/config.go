// Package config loads the service configuration from a YAML or JSON file
// with environment variable overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/courierops/dispatchd/core/cost"
	"github.com/courierops/dispatchd/core/dispatch"
	"github.com/courierops/dispatchd/core/metrics"
	"github.com/courierops/dispatchd/core/solver"
	"github.com/courierops/dispatchd/infra/mqtt"
)

// MQTTConfig wraps the broker settings with an enable switch: simulations
// usually run without a broker.
type MQTTConfig struct {
	Enabled     bool `json:"enabled"`
	mqtt.Config `json:",squash"`
}

// ArchiveConfig selects where terminal requests are persisted.
type ArchiveConfig struct {
	// Backend is "memory" or "redis".
	Backend string         `json:"backend"`
	Conf    map[string]any `json:"conf"`
}

// SetDefaults applies sane defaults.
func (c *ArchiveConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
}

// Validate checks the backend name.
func (c ArchiveConfig) Validate() error {
	if c.Backend != "memory" && c.Backend != "redis" {
		return fmt.Errorf("unknown archive backend %s", c.Backend)
	}
	return nil
}

type Config struct {
	Dispatch dispatch.Config `json:"dispatch"`
	Cost     cost.Config     `json:"cost"`
	Solver   solver.Config   `json:"solver"`
	Metrics  metrics.Config  `json:"metrics"`
	MQTT     MQTTConfig      `json:"mqtt"`
	Archive  ArchiveConfig   `json:"archive"`
	Logging  LoggingConfig   `json:"logging"`
}

// Load reads the file at path, applies DISPATCHD_* environment overrides
// (double underscores map to nesting) and validates every section.
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
	if err := k.Load(env.Provider("DISPATCHD_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "dispatchd_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	dc := &mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
		TagName: "json",
		Result:  &cfg,
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json", DecoderConfig: dc}); err != nil {
		return nil, err
	}

	cfg.Dispatch.SetDefaults()
	cfg.Archive.SetDefaults()
	cfg.Logging.SetDefaults()
	if err := cfg.Dispatch.Validate(); err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	if err := cfg.Archive.Validate(); err != nil {
		return nil, fmt.Errorf("archive: %w", err)
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	if cfg.Cost.Provider.Type == "" {
		return nil, fmt.Errorf("cost: provider type is required")
	}
	return &cfg, nil
}
