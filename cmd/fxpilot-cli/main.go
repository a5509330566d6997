package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"fxpilot/pkg/fxpilot"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: fxpilot-cli <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version     Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  state       Show the current live state\n")
		fmt.Fprintf(os.Stderr, "  trade       Queue a trade command\n")
		fmt.Fprintf(os.Stderr, "  commands    List recent trade commands\n")
		fmt.Fprintf(os.Stderr, "  health      Check server health\n")
		fmt.Fprintf(os.Stderr, "\nThe server URL comes from FXPILOT_API_URL (default http://localhost:8000).\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	baseURL := "http://localhost:8000"
	if v := os.Getenv("FXPILOT_API_URL"); v != "" {
		baseURL = v
	}
	client := fxpilot.NewClient(baseURL)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("fxpilot-cli %s\n", version)

	case "state":
		err = runState(ctx, client)

	case "trade":
		err = runTrade(ctx, client, os.Args[2:])

	case "commands":
		err = runCommands(ctx, client, os.Args[2:])

	case "health":
		err = runHealth(ctx, client)

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		flag.Usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runState(ctx context.Context, client *fxpilot.Client) error {
	snap, err := client.GetLiveState(ctx)
	if err != nil {
		return err
	}
	return printJSON(snap)
}

func runTrade(ctx context.Context, client *fxpilot.Client, args []string) error {
	fs := flag.NewFlagSet("trade", flag.ExitOnError)
	symbol := fs.String("symbol", "EURUSD", "instrument symbol")
	action := fs.String("action", "", "buy or sell")
	orderType := fs.String("type", "market", "market, limit, or stop")
	volume := fs.Float64("volume", 0, "lot size")
	price := fs.Float64("price", 0, "order price (limit/stop only)")
	tp := fs.Int("tp", 0, "take profit distance in pips")
	sl := fs.Int("sl", 0, "stop loss distance in pips")
	trailing := fs.Bool("trailing", false, "request a trailing stop")
	fs.Parse(args)

	ack, err := client.PlaceTrade(ctx, fxpilot.TradeRequest{
		Symbol:       *symbol,
		Action:       *action,
		OrderType:    *orderType,
		Volume:       *volume,
		Price:        *price,
		TakeProfit:   *tp,
		StopLoss:     *sl,
		TrailingStop: *trailing,
	})
	if err != nil {
		return err
	}
	fmt.Printf("queued %s (%s)\n", ack.ID, ack.Status)
	return nil
}

func runCommands(ctx context.Context, client *fxpilot.Client, args []string) error {
	fs := flag.NewFlagSet("commands", flag.ExitOnError)
	limit := fs.Int("limit", 10, "number of commands to show")
	fs.Parse(args)

	cmds, err := client.ListCommands(ctx, *limit)
	if err != nil {
		return err
	}
	for _, c := range cmds {
		line := fmt.Sprintf("%s  %-8s  %-4s %-6s %s %.2f", c.SubmittedAt.Format(time.RFC3339),
			c.Status, c.Action, c.OrderType, c.Symbol, c.Volume)
		if c.Error != "" {
			line += "  (" + c.Error + ")"
		}
		fmt.Println(line)
	}
	return nil
}

func runHealth(ctx context.Context, client *fxpilot.Client) error {
	h, err := client.GetHealth(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("status: %s, store: %s\n", h.Status, h.Store)
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
