package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full marketboard configuration.
type Config struct {
	API   APIConfig   `yaml:"api"`
	DB    DBConfig    `yaml:"db"`
	HTTP  HTTPConfig  `yaml:"http"`
	Cache CacheConfig `yaml:"cache"`
}

// APIConfig configures the remote log API client.
type APIConfig struct {
	BaseURL        string  `yaml:"base_url"`
	RPS            float64 `yaml:"rps"`
	Burst          int     `yaml:"burst"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	MaxRetries     int     `yaml:"max_retries"`
}

// DBConfig configures the relational store.
type DBConfig struct {
	Driver         string `yaml:"driver"` // postgres or sqlite3
	DSN            string `yaml:"dsn"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// HTTPConfig configures the read-only KPI API server.
type HTTPConfig struct {
	Host                string `yaml:"host"`
	Port                int    `yaml:"port"`
	ReadTimeoutSeconds  int    `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `yaml:"write_timeout_seconds"`
}

// CacheConfig configures the optional Redis KPI cache.
type CacheConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Addr       string `yaml:"addr"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:        "http://localhost:1353",
			RPS:            10,
			Burst:          5,
			TimeoutSeconds: 10,
			MaxRetries:     3,
		},
		DB: DBConfig{
			Driver:         "postgres",
			DSN:            "postgres://postgres@localhost:5432/marketboard?sslmode=disable",
			TimeoutSeconds: 30,
		},
		HTTP: HTTPConfig{
			Host:                "127.0.0.1",
			Port:                8080,
			ReadTimeoutSeconds:  10,
			WriteTimeoutSeconds: 10,
		},
		Cache: CacheConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			TTLSeconds: 300,
		},
	}
}

// Load reads a YAML config file over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the services cannot start with.
func (c Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must not be empty")
	}
	if c.API.RPS <= 0 {
		return fmt.Errorf("api.rps must be positive, got %v", c.API.RPS)
	}
	switch c.DB.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("db.driver must be postgres or sqlite3, got %q", c.DB.Driver)
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must not be empty")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port out of range: %d", c.HTTP.Port)
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return fmt.Errorf("cache.addr must be set when cache is enabled")
	}
	return nil
}
