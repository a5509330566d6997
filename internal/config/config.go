// Package config loads the fxpilot YAML configuration and applies
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Duration wraps time.Duration so values can be written as "1s" or "500ms"
// in YAML.
type Duration time.Duration

// UnmarshalYAML parses a duration string such as "1s" or "500ms".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the top-level configuration shared by all fxpilot binaries.
type Config struct {
	Storage Storage      `yaml:"storage"`
	Server  Server       `yaml:"server"`
	Venue   Venue        `yaml:"venue"`
	Engine  EngineConfig `yaml:"engine"`
	Signal  SignalConfig `yaml:"signal"`
	Logging Logging      `yaml:"logging"`
}

// Storage holds paths for data persistence.
type Storage struct {
	SQLitePath string `yaml:"sqlite_path"`
	HistoryDir string `yaml:"history_dir"`
}

// Server holds network listener configuration for the API process.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Venue selects and configures the trading terminal connection.
// Driver is one of "mt5", "alpaca", "simulator".
type Venue struct {
	Driver string `yaml:"driver"`
	MT5    MT5    `yaml:"mt5"`
	Alpaca Alpaca `yaml:"alpaca"`
}

// MT5 holds the endpoint and credentials for a MetaTrader 5 gateway bridge.
type MT5 struct {
	GatewayURL string   `yaml:"gateway_url"`
	AuthToken  string   `yaml:"auth_token"`
	Timeout    Duration `yaml:"timeout"`
}

// Alpaca holds credentials and endpoints for the Alpaca broker API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
}

// EngineConfig defines the engine loop cadence and per-symbol parameters.
type EngineConfig struct {
	Symbol         string             `yaml:"symbol"`
	TickInterval   Duration           `yaml:"tick_interval"`
	PipSizes       map[string]float64 `yaml:"pip_sizes"`
	DefaultPipSize float64            `yaml:"default_pip_size"`
}

// SignalConfig selects the trading signal source.
// Driver is one of "fixed", "onnx".
type SignalConfig struct {
	Driver     string `yaml:"driver"`
	ModelPath  string `yaml:"model_path"`
	Label      string `yaml:"label"`
	Confidence int    `yaml:"confidence"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides, and fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills zero-valued fields that have a sensible default.
func applyDefaults(cfg *Config) {
	if cfg.Engine.TickInterval <= 0 {
		cfg.Engine.TickInterval = Duration(time.Second)
	}
	if cfg.Engine.Symbol == "" {
		cfg.Engine.Symbol = "EURUSD"
	}
	if cfg.Engine.DefaultPipSize <= 0 {
		// Conventional fractional pip for 4-decimal quote currencies.
		cfg.Engine.DefaultPipSize = 0.0001
	}
	if cfg.Venue.Driver == "" {
		cfg.Venue.Driver = "simulator"
	}
	if cfg.Venue.MT5.Timeout <= 0 {
		cfg.Venue.MT5.Timeout = Duration(10 * time.Second)
	}
	if cfg.Signal.Driver == "" {
		cfg.Signal.Driver = "fixed"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
}

// PipSize returns the pip size configured for a symbol, falling back to the
// default when the symbol has no entry.
func (c *EngineConfig) PipSize(symbol string) float64 {
	if size, ok := c.PipSizes[symbol]; ok && size > 0 {
		return size
	}
	return c.DefaultPipSize
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("HISTORY_DIR"); v != "" {
		cfg.Storage.HistoryDir = v
	}

	if v := os.Getenv("VENUE_DRIVER"); v != "" {
		cfg.Venue.Driver = v
	}
	if v := os.Getenv("MT5_GATEWAY_URL"); v != "" {
		cfg.Venue.MT5.GatewayURL = v
	}
	if v := os.Getenv("MT5_AUTH_TOKEN"); v != "" {
		cfg.Venue.MT5.AuthToken = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Venue.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Venue.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Venue.Alpaca.BaseURL = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Venue.Alpaca.DataURL = v
	}

	if v := os.Getenv("FXPILOT_SYMBOL"); v != "" {
		cfg.Engine.Symbol = v
	}
	if v := os.Getenv("API_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority — canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Venue.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Venue.Alpaca.APISecret = v
	}
}
