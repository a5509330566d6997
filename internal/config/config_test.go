package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fxpilot.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
storage:
  sqlite_path: "/tmp/fxpilot/fxpilot.db"
  history_dir: "/tmp/fxpilot/history"
server:
  host: "0.0.0.0"
  port: 8000
venue:
  driver: "mt5"
  mt5:
    gateway_url: "http://127.0.0.1:5001"
    auth_token: "secret"
    timeout: 5s
engine:
  symbol: "GBPUSD"
  tick_interval: 2s
  pip_sizes:
    USDJPY: 0.01
  default_pip_size: 0.0001
signal:
  driver: "fixed"
  label: "HOLD"
  confidence: 50
logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Storage.SQLitePath != "/tmp/fxpilot/fxpilot.db" {
		t.Errorf("SQLitePath = %q", cfg.Storage.SQLitePath)
	}
	if cfg.Venue.Driver != "mt5" {
		t.Errorf("Venue.Driver = %q, want mt5", cfg.Venue.Driver)
	}
	if cfg.Venue.MT5.GatewayURL != "http://127.0.0.1:5001" {
		t.Errorf("GatewayURL = %q", cfg.Venue.MT5.GatewayURL)
	}
	if cfg.Venue.MT5.Timeout.Std() != 5*time.Second {
		t.Errorf("MT5.Timeout = %v, want 5s", cfg.Venue.MT5.Timeout)
	}
	if cfg.Engine.Symbol != "GBPUSD" {
		t.Errorf("Engine.Symbol = %q, want GBPUSD", cfg.Engine.Symbol)
	}
	if cfg.Engine.TickInterval.Std() != 2*time.Second {
		t.Errorf("TickInterval = %v, want 2s", cfg.Engine.TickInterval)
	}
	if cfg.Signal.Label != "HOLD" || cfg.Signal.Confidence != 50 {
		t.Errorf("Signal = %+v", cfg.Signal)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  sqlite_path: "/tmp/fxpilot.db"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Engine.TickInterval.Std() != time.Second {
		t.Errorf("default TickInterval = %v, want 1s", cfg.Engine.TickInterval)
	}
	if cfg.Engine.Symbol != "EURUSD" {
		t.Errorf("default Symbol = %q, want EURUSD", cfg.Engine.Symbol)
	}
	if cfg.Engine.DefaultPipSize != 0.0001 {
		t.Errorf("default pip size = %v, want 0.0001", cfg.Engine.DefaultPipSize)
	}
	if cfg.Venue.Driver != "simulator" {
		t.Errorf("default Venue.Driver = %q, want simulator", cfg.Venue.Driver)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("default Server.Port = %d, want 8000", cfg.Server.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
venue:
  driver: "simulator"
engine:
  symbol: "EURUSD"
`)

	t.Setenv("VENUE_DRIVER", "mt5")
	t.Setenv("MT5_GATEWAY_URL", "http://gateway:5001")
	t.Setenv("FXPILOT_SYMBOL", "USDJPY")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Venue.Driver != "mt5" {
		t.Errorf("Venue.Driver = %q, want env override mt5", cfg.Venue.Driver)
	}
	if cfg.Venue.MT5.GatewayURL != "http://gateway:5001" {
		t.Errorf("GatewayURL = %q", cfg.Venue.MT5.GatewayURL)
	}
	if cfg.Engine.Symbol != "USDJPY" {
		t.Errorf("Symbol = %q, want USDJPY", cfg.Engine.Symbol)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestPipSize(t *testing.T) {
	ec := EngineConfig{
		PipSizes:       map[string]float64{"USDJPY": 0.01},
		DefaultPipSize: 0.0001,
	}

	if got := ec.PipSize("USDJPY"); got != 0.01 {
		t.Errorf("PipSize(USDJPY) = %v, want 0.01", got)
	}
	if got := ec.PipSize("EURUSD"); got != 0.0001 {
		t.Errorf("PipSize(EURUSD) = %v, want 0.0001", got)
	}
}
