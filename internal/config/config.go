// Package config loads engine configuration from a YAML file with
// environment variable overrides for deployment secrets.
package config

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zakatwise/zakat-engine/internal/cryptobox"
	"github.com/zakatwise/zakat-engine/pkg/logger"
)

// Config is the root engine configuration.
type Config struct {
	Logging  logger.LoggingConfig `yaml:"logging"`
	Database DatabaseConfig       `yaml:"database"`
	Pricing  PricingConfig        `yaml:"pricing"`
	Engine   EngineConfig         `yaml:"engine"`
	Keys     KeysConfig           `yaml:"keys"`
}

// DatabaseConfig describes the Postgres connection. An empty URL selects
// the in-memory store.
type DatabaseConfig struct {
	URL            string `yaml:"url"`
	MigrationsPath string `yaml:"migrations_path"`
}

// PricingConfig configures the metal price source chain.
type PricingConfig struct {
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key"`
	GoldPath   string `yaml:"gold_path"`
	SilverPath string `yaml:"silver_path"`
	RedisAddr  string `yaml:"redis_addr"`
	CacheTTL   string `yaml:"cache_ttl"`
}

// EngineConfig holds calculation defaults.
type EngineConfig struct {
	Methodology   string `yaml:"methodology"`
	Currency      string `yaml:"currency"`
	ToleranceDays int    `yaml:"tolerance_days"`
	SweepSchedule string `yaml:"sweep_schedule"`
	MetricsAddr   string `yaml:"metrics_addr"`
}

// KeysConfig names the encryption keys. Key material itself is never put
// in the file; each entry's material comes from the named environment
// variable.
type KeysConfig struct {
	Current  KeyRef   `yaml:"current"`
	Previous []KeyRef `yaml:"previous"`
}

// KeyRef pairs a key version label with the env var holding its material.
type KeyRef struct {
	Version string `yaml:"version"`
	EnvVar  string `yaml:"env_var"`
}

// Load reads the config file at path, falling back to config/engine.yaml,
// and applies environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = filepath.Join("config", "engine.yaml")
	}
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration used when no file exists.
func Default() *Config {
	return &Config{
		Logging: logger.LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Database: DatabaseConfig{
			MigrationsPath: filepath.Join("internal", "app", "storage", "postgres", "migrations"),
		},
		Pricing: PricingConfig{CacheTTL: "1h"},
		Engine: EngineConfig{
			Methodology:   "STANDARD",
			Currency:      "USD",
			SweepSchedule: "15 0 * * *",
			MetricsAddr:   ":9190",
		},
		Keys: KeysConfig{
			Current: KeyRef{Version: "v1", EnvVar: "ZAKAT_ENGINE_KEY_V1"},
		},
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ZAKAT_DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("ZAKAT_PRICING_ENDPOINT"); v != "" {
		c.Pricing.Endpoint = v
	}
	if v := os.Getenv("ZAKAT_PRICING_API_KEY"); v != "" {
		c.Pricing.APIKey = v
	}
	if v := os.Getenv("ZAKAT_REDIS_ADDR"); v != "" {
		c.Pricing.RedisAddr = v
	}
	if v := os.Getenv("ZAKAT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("ZAKAT_METHODOLOGY"); v != "" {
		c.Engine.Methodology = strings.ToUpper(v)
	}
	if v := os.Getenv("ZAKAT_CURRENCY"); v != "" {
		c.Engine.Currency = strings.ToUpper(v)
	}
}

func (c *Config) validate() error {
	if c.Keys.Current.Version == "" || c.Keys.Current.EnvVar == "" {
		return fmt.Errorf("keys.current requires both version and env_var")
	}
	for i, ref := range c.Keys.Previous {
		if ref.Version == "" || ref.EnvVar == "" {
			return fmt.Errorf("keys.previous[%d] requires both version and env_var", i)
		}
	}
	if c.Engine.Currency == "" {
		return fmt.Errorf("engine.currency is required")
	}
	return nil
}

// KeyRing resolves the configured key references into a usable ring,
// reading material from the environment. Previous keys keep their
// configured order, which is the fallback decryption order.
func (c *Config) KeyRing() (cryptobox.KeyRing, error) {
	current, err := resolveKey(c.Keys.Current)
	if err != nil {
		return cryptobox.KeyRing{}, err
	}
	ring := cryptobox.KeyRing{Current: current}
	for _, ref := range c.Keys.Previous {
		k, err := resolveKey(ref)
		if err != nil {
			return cryptobox.KeyRing{}, err
		}
		ring.Previous = append(ring.Previous, k)
	}
	return ring, nil
}

func resolveKey(ref KeyRef) (cryptobox.Key, error) {
	raw := os.Getenv(ref.EnvVar)
	if raw == "" {
		return cryptobox.Key{}, fmt.Errorf("key %s: environment variable %s is not set", ref.Version, ref.EnvVar)
	}
	material, err := ParseKeyMaterial(raw)
	if err != nil {
		return cryptobox.Key{}, fmt.Errorf("key %s: %w", ref.Version, err)
	}
	return cryptobox.NewKey(ref.Version, material)
}

// ParseKeyMaterial accepts hex, base64 or raw key material and returns the
// decoded bytes. Hex is tried first since generated keys are hex encoded.
func ParseKeyMaterial(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("key material is empty")
	}
	if decoded, err := hex.DecodeString(raw); err == nil && len(decoded) >= 16 {
		return decoded, nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(raw); err == nil && len(decoded) >= 16 {
		return decoded, nil
	}
	if len(raw) < 16 {
		return nil, fmt.Errorf("key material must be at least 16 bytes")
	}
	return []byte(raw), nil
}
