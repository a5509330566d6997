// Package fxpilot provides a Go client for the fxpilot-api server.
package fxpilot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fxpilot/internal/domain"
)

// Client talks to the fxpilot-api REST endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the API server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// TradeRequest describes a trade command to queue. Price is required for
// limit and stop orders; TakeProfit and StopLoss are pip distances.
type TradeRequest struct {
	Symbol       string  `json:"symbol"`
	Action       string  `json:"action"`
	OrderType    string  `json:"order_type"`
	Volume       float64 `json:"volume"`
	Price        float64 `json:"price,omitempty"`
	TakeProfit   int     `json:"take_profit,omitempty"`
	StopLoss     int     `json:"stop_loss,omitempty"`
	TrailingStop bool    `json:"trailing_stop,omitempty"`
}

// TradeAck acknowledges a queued trade command.
type TradeAck struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Health reports service and store health.
type Health struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// GetLiveState retrieves the current snapshot.
func (c *Client) GetLiveState(ctx context.Context) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	if err := c.get(ctx, "/api/live-state", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// PlaceTrade queues a trade command and returns its assigned ID.
func (c *Client) PlaceTrade(ctx context.Context, req TradeRequest) (*TradeAck, error) {
	var ack TradeAck
	if err := c.post(ctx, "/api/trade", req, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// ListCommands retrieves recent trade commands, newest first.
func (c *Client) ListCommands(ctx context.Context, limit int) ([]domain.TradeCommand, error) {
	path := "/api/trade-commands"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		Commands []domain.TradeCommand `json:"commands"`
	}
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Commands, nil
}

// GetCommand retrieves a single trade command by ID.
func (c *Client) GetCommand(ctx context.Context, id string) (*domain.TradeCommand, error) {
	var cmd domain.TradeCommand
	if err := c.get(ctx, "/api/trade-commands/"+id, &cmd); err != nil {
		return nil, err
	}
	return &cmd, nil
}

// GetHealth retrieves service health.
func (c *Client) GetHealth(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.get(ctx, "/api/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := resp.Status
		if body, err := io.ReadAll(io.LimitReader(resp.Body, 4096)); err == nil {
			if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
				msg = apiErr.Error
			}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
