// Package config loads FrameDB configuration from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/framedb/framedb/core/buffer"
	"github.com/framedb/framedb/pkg/logger"
	"github.com/framedb/framedb/pkg/telemetry"
)

// Config is the full FrameDB configuration.
type Config struct {
	Logger    logger.Config    `yaml:"logger"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Pool      buffer.Config    `yaml:"pool"`
}

// Default returns the configuration used when no file is given: console
// logging at info, telemetry off, a 64-frame pool of 4 KiB pages.
func Default() Config {
	return Config{
		Logger: logger.Config{
			Level:      "info",
			Format:     "console",
			OutputFile: "stdout",
		},
		Telemetry: telemetry.Config{
			Enabled:     false,
			ServiceName: "framedb",
		},
		Pool: buffer.Config{
			PoolSize: 64,
			PageSize: 4096,
		},
	}
}

// Load reads the YAML file at path over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if cfg.Pool.PoolSize < 1 {
		return Config{}, fmt.Errorf("pool.pool_size must be at least 1, got %d", cfg.Pool.PoolSize)
	}
	if cfg.Pool.PageSize < 1 {
		return Config{}, fmt.Errorf("pool.page_size must be positive, got %d", cfg.Pool.PageSize)
	}
	return cfg, nil
}
