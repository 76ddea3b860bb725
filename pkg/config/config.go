// Package config loads the file configuration of the tessera server.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/tessera/internal/logging"
	"github.com/aretw0/tessera/pkg/observability"
	"github.com/aretw0/tessera/pkg/segment"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration written as "30s" in config files.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config is the root of the configuration file.
type Config struct {
	Log      LogConfig      `yaml:"log" json:"log"`
	HTTP     HTTPConfig     `yaml:"http" json:"http"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
	Segments SegmentsConfig `yaml:"segments" json:"segments"`
	Redis    RedisConfig    `yaml:"redis" json:"redis"`
}

type LogConfig struct {
	Level  string         `yaml:"level" json:"level"`
	Format logging.Format `yaml:"format" json:"format"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

// SegmentsConfig controls segment loading.
type SegmentsConfig struct {
	// Preload lists segment ids loaded at startup.
	Preload []string `yaml:"preload" json:"preload"`
	LockTTL Duration `yaml:"lock_ttl" json:"lock_ttl"`
}

// RedisConfig enables the distributed segment lock when Addr is set.
type RedisConfig struct {
	Addr   string `yaml:"addr" json:"addr"`
	Prefix string `yaml:"prefix" json:"prefix"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Log:      LogConfig{Level: "info", Format: logging.FormatText},
		HTTP:     HTTPConfig{Addr: ":8080"},
		Metrics:  MetricsConfig{Enabled: true, Namespace: observability.DefaultNamespace},
		Segments: SegmentsConfig{LockTTL: Duration(segment.DefaultLockTTL)},
		Redis:    RedisConfig{Prefix: "tessera:"},
	}
}

// Load reads a YAML or JSON (by extension) file over the defaults.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
		}
	}

	return cfg, cfg.Validate()
}

// Validate checks values that cannot be caught while decoding.
func (c Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.Segments.LockTTL < 0 {
		return fmt.Errorf("segments.lock_ttl must not be negative")
	}
	return nil
}

// LockTTL returns the segment lock TTL, falling back to the default.
func (c Config) LockTTL() time.Duration {
	if c.Segments.LockTTL <= 0 {
		return segment.DefaultLockTTL
	}
	return time.Duration(c.Segments.LockTTL)
}
