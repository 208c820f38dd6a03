// Package config loads engine configuration from defaults, an optional
// config file and HYPERMEM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConsolidationConfig tunes the consolidation engine.
type ConsolidationConfig struct {
	Strategy  string        `mapstructure:"strategy"`  // temporal | semantic
	Epsilon   float64       `mapstructure:"epsilon"`   // max hyperbolic distance within a merge group
	Window    time.Duration `mapstructure:"window"`    // temporal strategy sliding window
	KNN       int           `mapstructure:"knn"`       // semantic strategy neighbor count
	Threshold int           `mapstructure:"threshold"` // tier population that auto-triggers a pass (0 = off)
}

// CompressionConfig tunes the compression engine.
type CompressionConfig struct {
	Algorithm string        `mapstructure:"algorithm"` // brotli | gzip
	Level     int           `mapstructure:"level"`     // 0–9
	MinAge    time.Duration `mapstructure:"min_age"`   // entries younger than this are left alone
	Threshold int           `mapstructure:"threshold"` // tier population that auto-triggers a pass (0 = off)
}

// Config is the full engine configuration.
type Config struct {
	Dimension     int                 `mapstructure:"dimension"`
	DBPath        string              `mapstructure:"db_path"`
	StateKey      string              `mapstructure:"state_key"`
	RootSeed      string              `mapstructure:"root_seed"`
	Passphrase    string              `mapstructure:"passphrase"`
	AuthToken     string              `mapstructure:"auth_token"`
	Consolidation ConsolidationConfig `mapstructure:"consolidation"`
	Compression   CompressionConfig   `mapstructure:"compression"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Dimension:  8,
		DBPath:     filepath.Join(home, ".hypermem", "state.db"),
		StateKey:   "hypermem/state",
		RootSeed:   "hypermem-root",
		Passphrase: "hypermem-dev",
		Consolidation: ConsolidationConfig{
			Strategy:  "semantic",
			Epsilon:   0.75,
			Window:    time.Hour,
			KNN:       4,
			Threshold: 0,
		},
		Compression: CompressionConfig{
			Algorithm: "brotli",
			Level:     6,
			MinAge:    0,
			Threshold: 0,
		},
	}
}

// Load merges defaults, the config file (explicit path, else
// ./hypermem.yaml, else ~/.hypermem/hypermem.yaml) and HYPERMEM_*
// environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("HYPERMEM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("hypermem")
		v.AddConfigPath(".")
		home, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(home, ".hypermem"))
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("dimension", cfg.Dimension)
	v.SetDefault("db_path", cfg.DBPath)
	v.SetDefault("state_key", cfg.StateKey)
	v.SetDefault("root_seed", cfg.RootSeed)
	v.SetDefault("passphrase", cfg.Passphrase)
	v.SetDefault("auth_token", cfg.AuthToken)
	v.SetDefault("consolidation.strategy", cfg.Consolidation.Strategy)
	v.SetDefault("consolidation.epsilon", cfg.Consolidation.Epsilon)
	v.SetDefault("consolidation.window", cfg.Consolidation.Window)
	v.SetDefault("consolidation.knn", cfg.Consolidation.KNN)
	v.SetDefault("consolidation.threshold", cfg.Consolidation.Threshold)
	v.SetDefault("compression.algorithm", cfg.Compression.Algorithm)
	v.SetDefault("compression.level", cfg.Compression.Level)
	v.SetDefault("compression.min_age", cfg.Compression.MinAge)
	v.SetDefault("compression.threshold", cfg.Compression.Threshold)
}

func (c *Config) validate() error {
	if c.Dimension < 2 || c.Dimension > 64 {
		return fmt.Errorf("dimension %d outside [2,64]", c.Dimension)
	}
	if c.Compression.Level < 0 || c.Compression.Level > 9 {
		return fmt.Errorf("compression level %d outside [0,9]", c.Compression.Level)
	}
	if c.Consolidation.Epsilon <= 0 {
		return fmt.Errorf("consolidation epsilon must be positive, got %v", c.Consolidation.Epsilon)
	}
	return nil
}
