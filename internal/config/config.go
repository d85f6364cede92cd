package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"priceoracle/internal/asset"
)

type Server struct {
	Port              string `json:"port" yaml:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec" yaml:"request_timeout_sec"`
}

type Oracle struct {
	CacheTTLSec        int `json:"cache_ttl_sec" yaml:"cache_ttl_sec"`
	SweepIntervalSec   int `json:"sweep_interval_sec" yaml:"sweep_interval_sec"`
	RefreshIntervalSec int `json:"refresh_interval_sec" yaml:"refresh_interval_sec"` // 0 disables scheduled refresh
}

type CoinGecko struct {
	Enabled              bool   `json:"enabled" yaml:"enabled"`
	Endpoint             string `json:"endpoint" yaml:"endpoint"`
	APIKey               string `json:"api_key" yaml:"api_key"`
	ProAPIKey            string `json:"pro_api_key" yaml:"pro_api_key"`
	TimeoutMs            int    `json:"timeout_ms" yaml:"timeout_ms"`
	MaxRequestsPerMinute int    `json:"max_requests_per_minute" yaml:"max_requests_per_minute"`
	Burst                int    `json:"burst" yaml:"burst"`
}

type Jupiter struct {
	Enabled              bool   `json:"enabled" yaml:"enabled"`
	Endpoint             string `json:"endpoint" yaml:"endpoint"`
	APIKey               string `json:"api_key" yaml:"api_key"`
	TimeoutMs            int    `json:"timeout_ms" yaml:"timeout_ms"`
	MaxRequestsPerMinute int    `json:"max_requests_per_minute" yaml:"max_requests_per_minute"`
	Burst                int    `json:"burst" yaml:"burst"`
	MaxIDsPerRequest     int    `json:"max_ids_per_request" yaml:"max_ids_per_request"`
}

type Log struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text or json
}

type Config struct {
	Server    Server    `json:"server" yaml:"server"`
	Oracle    Oracle    `json:"oracle" yaml:"oracle"`
	CoinGecko CoinGecko `json:"coingecko" yaml:"coingecko"`
	Jupiter   Jupiter   `json:"jupiter" yaml:"jupiter"`
	Log       Log       `json:"log" yaml:"log"`
	// FallbackFile replaces the embedded fallback table when set.
	FallbackFile string `json:"fallback_file" yaml:"fallback_file"`
	// Assets replaces the built-in asset list when non-empty.
	Assets []asset.Asset `json:"assets,omitempty" yaml:"assets,omitempty"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 10},
		Oracle: Oracle{
			CacheTTLSec:      30,
			SweepIntervalSec: 300,
		},
		CoinGecko: CoinGecko{
			Enabled:              true,
			TimeoutMs:            5000,
			MaxRequestsPerMinute: 30,
			Burst:                2,
		},
		Jupiter: Jupiter{
			Enabled:              true,
			TimeoutMs:            3000,
			MaxRequestsPerMinute: 60,
			Burst:                2,
			MaxIDsPerRequest:     100,
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load reads config from path, as YAML for .yaml/.yml files and JSON
// otherwise. If path is empty, config.json or config.yaml in the working
// directory is used when present; a missing file yields defaults.
// Environment variables override select fields.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		for _, p := range []string{"config.json", "config.yaml"} {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := unmarshal(path, b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func unmarshal(path string, b []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	default:
		return json.Unmarshal(b, cfg)
	}
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	if c.Oracle.CacheTTLSec < 0 || c.Oracle.SweepIntervalSec < 0 || c.Oracle.RefreshIntervalSec < 0 {
		return errors.New("invalid config: oracle intervals must not be negative")
	}
	if c.CoinGecko.TimeoutMs < 0 || c.Jupiter.TimeoutMs < 0 {
		return errors.New("invalid config: provider timeouts must not be negative")
	}
	if len(c.Assets) > 0 {
		if _, err := asset.NewRegistry(c.Assets); err != nil {
			return fmt.Errorf("invalid config: assets: %w", err)
		}
	}
	return nil
}

// Registry builds the asset registry, falling back to the built-in list.
func (c Config) Registry() *asset.Registry {
	if len(c.Assets) == 0 {
		return asset.DefaultRegistry()
	}
	return asset.MustRegistry(c.Assets)
}

func (o Oracle) CacheTTL() time.Duration        { return seconds(o.CacheTTLSec) }
func (o Oracle) SweepInterval() time.Duration   { return seconds(o.SweepIntervalSec) }
func (o Oracle) RefreshInterval() time.Duration { return seconds(o.RefreshIntervalSec) }

func (c CoinGecko) Timeout() time.Duration { return time.Duration(c.TimeoutMs) * time.Millisecond }
func (j Jupiter) Timeout() time.Duration   { return time.Duration(j.TimeoutMs) * time.Millisecond }

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	envInt("REQUEST_TIMEOUT_SEC", 1, &cfg.Server.RequestTimeoutSec)

	envInt("ORACLE_CACHE_TTL_SEC", 1, &cfg.Oracle.CacheTTLSec)
	envInt("ORACLE_SWEEP_INTERVAL_SEC", 1, &cfg.Oracle.SweepIntervalSec)
	envInt("ORACLE_REFRESH_INTERVAL_SEC", 0, &cfg.Oracle.RefreshIntervalSec)
	if v := os.Getenv("FALLBACK_FILE"); v != "" {
		cfg.FallbackFile = v
	}

	envBool("COINGECKO_ENABLED", &cfg.CoinGecko.Enabled)
	if v := os.Getenv("COINGECKO_ENDPOINT"); v != "" {
		cfg.CoinGecko.Endpoint = v
	}
	if v := os.Getenv("COINGECKO_API_KEY"); v != "" {
		cfg.CoinGecko.APIKey = v
	}
	if v := os.Getenv("COINGECKO_PRO_API_KEY"); v != "" {
		cfg.CoinGecko.ProAPIKey = v
	}
	envInt("COINGECKO_TIMEOUT_MS", 1, &cfg.CoinGecko.TimeoutMs)
	envInt("COINGECKO_MAX_RPM", 0, &cfg.CoinGecko.MaxRequestsPerMinute)
	envInt("COINGECKO_BURST", 1, &cfg.CoinGecko.Burst)

	envBool("JUPITER_ENABLED", &cfg.Jupiter.Enabled)
	if v := os.Getenv("JUPITER_ENDPOINT"); v != "" {
		cfg.Jupiter.Endpoint = v
	}
	if v := os.Getenv("JUPITER_API_KEY"); v != "" {
		cfg.Jupiter.APIKey = v
	}
	envInt("JUPITER_TIMEOUT_MS", 1, &cfg.Jupiter.TimeoutMs)
	envInt("JUPITER_MAX_RPM", 0, &cfg.Jupiter.MaxRequestsPerMinute)
	envInt("JUPITER_BURST", 1, &cfg.Jupiter.Burst)
	envInt("JUPITER_MAX_IDS_PER_REQUEST", 1, &cfg.Jupiter.MaxIDsPerRequest)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// envInt sets *dst from the named variable when it parses to at least min.
func envInt(name string, min int, dst *int) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	var x int
	if _, err := fmt.Sscanf(v, "%d", &x); err != nil || x < min {
		return
	}
	*dst = x
}

func envBool(name string, dst *bool) {
	switch strings.ToLower(os.Getenv(name)) {
	case "1", "true", "yes", "y":
		*dst = true
	case "0", "false", "no", "n":
		*dst = false
	}
}
