package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Version       int           `toml:"version"`
	Paths         Paths         `toml:"paths"`
	Runtime       Runtime       `toml:"runtime"`
	Exclude       Exclude       `toml:"exclude"`
	Watch         Watch         `toml:"watch"`
	DB            Database      `toml:"db"`
	Observability Observability `toml:"observability"`
}

type Paths struct {
	Destination string `toml:"destination"`
}

type Runtime struct {
	// Preferred selects the back-end instantiated first by the generated
	// selector constructor; the other one is the fallback.
	Preferred string `toml:"preferred"`
}

type Exclude struct {
	Dirs  []string `toml:"dirs"`
	Files []string `toml:"files"`
}

type Watch struct {
	Debounce time.Duration `toml:"debounce"`
	// RecompilesPerSecond bounds watch-mode churn.
	RecompilesPerSecond float64 `toml:"recompiles_per_second"`
	Burst               int     `toml:"burst"`
}

type Database struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

type Observability struct {
	MetricsAddress string `toml:"metrics_address"`
	OTLPEndpoint   string `toml:"otlp_endpoint"`
}

// Load reads the TOML config, applies defaults and validates it. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err == nil {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validateVersion(&cfg); err != nil {
		return nil, err
	}
	if err := validateRuntime(&cfg); err != nil {
		return nil, err
	}
	if err := validateDatabase(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if strings.TrimSpace(cfg.Paths.Destination) == "" {
		cfg.Paths.Destination = "generated"
	}
	if strings.TrimSpace(cfg.Runtime.Preferred) == "" {
		cfg.Runtime.Preferred = "parallelme"
	}
	if len(cfg.Exclude.Dirs) == 0 {
		cfg.Exclude.Dirs = []string{".git", "build", "generated"}
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.RecompilesPerSecond <= 0 {
		cfg.Watch.RecompilesPerSecond = 2
	}
	if cfg.Watch.Burst <= 0 {
		cfg.Watch.Burst = 4
	}
	if strings.TrimSpace(cfg.DB.Path) == "" {
		cfg.DB.Path = "parlift.db"
	}
	if strings.TrimSpace(cfg.Observability.MetricsAddress) == "" {
		cfg.Observability.MetricsAddress = "127.0.0.1:9477"
	}
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateRuntime(cfg *Config) error {
	preferred := strings.ToLower(strings.TrimSpace(cfg.Runtime.Preferred))
	switch preferred {
	case "parallelme", "renderscript":
	default:
		return fmt.Errorf("runtime.preferred must be one of: parallelme, renderscript")
	}
	cfg.Runtime.Preferred = preferred
	return nil
}

func validateDatabase(cfg *Config) error {
	if cfg.DB.Enabled && strings.TrimSpace(cfg.DB.Path) == "" {
		return fmt.Errorf("db.path must not be empty when db.enabled=true")
	}
	return nil
}
