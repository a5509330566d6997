package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fxpilot/internal/archive"
	"fxpilot/internal/config"
	"fxpilot/internal/engine"
	sig "fxpilot/internal/signal"
	"fxpilot/internal/store"
	"fxpilot/internal/util"
	"fxpilot/internal/venue"
)

func main() {
	// Credentials usually live in a local .env; a missing file is fine.
	godotenv.Load()

	cfgPath := "config/fxpilot.yaml"
	if p := os.Getenv("FXPILOT_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	st, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	term, err := newTerminal(cfg)
	if err != nil {
		log.Fatalf("failed to create terminal: %v", err)
	}
	defer term.Close()

	source, err := newSignalSource(cfg)
	if err != nil {
		log.Fatalf("failed to create signal source: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Verify venue connectivity before entering the loop.
	if err := util.Retry(ctx, 5, time.Second, func() error {
		_, err := term.Account(ctx)
		return err
	}); err != nil {
		log.Fatalf("venue unreachable: %v", err)
	}

	opts := engine.Options{
		Symbol:   cfg.Engine.Symbol,
		Interval: cfg.Engine.TickInterval.Std(),
		PipSize:  cfg.Engine.PipSize,
		Logger:   logger,
	}
	if cfg.Storage.HistoryDir != "" {
		arch := archive.NewParquetArchiver(cfg.Storage.HistoryDir)
		defer arch.Close()
		opts.Archive = arch
	}

	eng := engine.New(term, st, st, source, opts)
	if err := eng.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("engine error: %v", err)
	}
}

func newTerminal(cfg *config.Config) (venue.Terminal, error) {
	switch cfg.Venue.Driver {
	case "mt5":
		return venue.NewMT5Terminal(cfg.Venue.MT5.GatewayURL, cfg.Venue.MT5.AuthToken, cfg.Venue.MT5.Timeout.Std()), nil
	case "alpaca":
		return venue.NewAlpacaTerminal(cfg.Venue.Alpaca.APIKey, cfg.Venue.Alpaca.APISecret,
			cfg.Venue.Alpaca.BaseURL, cfg.Venue.Alpaca.DataURL), nil
	case "simulator":
		simulator := venue.NewSimulator(10000)
		simulator.SetTick(cfg.Engine.Symbol, 1.0849, 1.0851)
		return simulator, nil
	default:
		return nil, fmt.Errorf("unknown venue driver %q", cfg.Venue.Driver)
	}
}

func newSignalSource(cfg *config.Config) (sig.Source, error) {
	switch cfg.Signal.Driver {
	case "onnx":
		return sig.NewModel(cfg.Signal.ModelPath)
	case "fixed":
		label := cfg.Signal.Label
		if label == "" {
			label = "HOLD"
		}
		return &sig.Fixed{Label: label, Confidence: cfg.Signal.Confidence}, nil
	default:
		return nil, fmt.Errorf("unknown signal driver %q", cfg.Signal.Driver)
	}
}
