package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"fxpilot/internal/domain"
)

// Compile-time interface check.
var _ Terminal = (*MT5Terminal)(nil)

// MT5 trade return code for a completed deal.
const mt5RetcodeDone = 10009

// Numeric MT5 order type constants, as exposed by the terminal API.
var mt5OrderTypes = map[OrderCode]int{
	MarketBuy:  0,
	MarketSell: 1,
	LimitBuy:   2,
	LimitSell:  3,
	StopBuy:    4,
	StopSell:   5,
}

// MT5Terminal implements Terminal against a MetaTrader 5 gateway bridge —
// a sidecar exposing the terminal's account, tick, and order_send calls
// over HTTP/JSON.
type MT5Terminal struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
}

// NewMT5Terminal creates an MT5Terminal talking to the gateway at baseURL.
// authToken, if non-empty, is sent as a bearer token on every request.
func NewMT5Terminal(baseURL, authToken string, timeout time.Duration) *MT5Terminal {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MT5Terminal{
		baseURL:    baseURL,
		authToken:  authToken,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name returns "mt5".
func (t *MT5Terminal) Name() string { return "mt5" }

// Close releases the idle HTTP connections held by the client.
func (t *MT5Terminal) Close() error {
	t.httpClient.CloseIdleConnections()
	return nil
}

// ---------------------------------------------------------------------------
// Wire types (gateway JSON payloads)
// ---------------------------------------------------------------------------

type mt5OrderRequest struct {
	Symbol    string  `json:"symbol"`
	Volume    float64 `json:"volume"`
	Type      int     `json:"type"`
	Price     float64 `json:"price"`
	SL        float64 `json:"sl"`
	TP        float64 `json:"tp"`
	Deviation int     `json:"deviation"`
	Magic     int     `json:"magic"`
	Comment   string  `json:"comment"`
	Pending   bool    `json:"pending"`
}

type mt5OrderResponse struct {
	Retcode int    `json:"retcode"`
	Order   int64  `json:"order"`
	Comment string `json:"comment"`
}

type mt5Tick struct {
	Bid  float64 `json:"bid"`
	Ask  float64 `json:"ask"`
	Time int64   `json:"time"` // Unix seconds
}

type mt5Position struct {
	Ticket       int64   `json:"ticket"`
	Symbol       string  `json:"symbol"`
	Type         int     `json:"type"` // 0 = buy, 1 = sell
	Volume       float64 `json:"volume"`
	PriceOpen    float64 `json:"price_open"`
	PriceCurrent float64 `json:"price_current"`
	Profit       float64 `json:"profit"`
	Time         int64   `json:"time"` // Unix seconds
}

// ---------------------------------------------------------------------------
// Terminal implementation
// ---------------------------------------------------------------------------

// Account queries the gateway's /account endpoint. The account payload is
// dict-shaped on the wire; known fields are mapped to named struct fields
// and the remainder is preserved in Extra.
func (t *MT5Terminal) Account(ctx context.Context) (*domain.AccountInfo, error) {
	var raw map[string]any
	if err := t.getJSON(ctx, "/account", &raw); err != nil {
		return nil, &QueryError{Op: "account", Err: err}
	}

	acct := &domain.AccountInfo{
		Login:      popInt(raw, "login"),
		Currency:   popString(raw, "currency"),
		Balance:    popFloat(raw, "balance"),
		Equity:     popFloat(raw, "equity"),
		Margin:     popFloat(raw, "margin"),
		MarginFree: popFloat(raw, "margin_free"),
		Profit:     popFloat(raw, "profit"),
		Leverage:   popInt(raw, "leverage"),
	}
	if len(raw) > 0 {
		acct.Extra = raw
	}
	return acct, nil
}

// Positions queries the gateway's /positions endpoint.
func (t *MT5Terminal) Positions(ctx context.Context) ([]domain.Position, error) {
	var raw []mt5Position
	if err := t.getJSON(ctx, "/positions", &raw); err != nil {
		return nil, &QueryError{Op: "positions", Err: err}
	}

	positions := make([]domain.Position, 0, len(raw))
	for _, p := range raw {
		side := domain.PositionSideLong
		if p.Type == 1 {
			side = domain.PositionSideShort
		}
		positions = append(positions, domain.Position{
			Ticket:       p.Ticket,
			Symbol:       p.Symbol,
			Side:         side,
			Volume:       p.Volume,
			OpenPrice:    p.PriceOpen,
			CurrentPrice: p.PriceCurrent,
			Profit:       p.Profit,
			OpenedAt:     time.Unix(p.Time, 0).UTC(),
		})
	}
	return positions, nil
}

// Tick queries the gateway's /tick/{symbol} endpoint.
func (t *MT5Terminal) Tick(ctx context.Context, symbol string) (*Tick, error) {
	var raw mt5Tick
	if err := t.getJSON(ctx, "/tick/"+url.PathEscape(symbol), &raw); err != nil {
		return nil, &QueryError{Op: "tick", Err: err}
	}
	if raw.Bid <= 0 && raw.Ask <= 0 {
		return nil, &QueryError{Op: "tick", Err: fmt.Errorf("no tick data for %s", symbol)}
	}
	return &Tick{
		Symbol: symbol,
		Bid:    raw.Bid,
		Ask:    raw.Ask,
		Time:   time.Unix(raw.Time, 0).UTC(),
	}, nil
}

// SubmitOrder posts an order_send request to the gateway. Any retcode other
// than done is a SubmitError carrying the terminal's comment.
func (t *MT5Terminal) SubmitOrder(ctx context.Context, params OrderParams) (*OrderResult, error) {
	mt5Type, ok := mt5OrderTypes[params.Code]
	if !ok {
		return nil, &SubmitError{Reason: fmt.Sprintf("unsupported order code %q", params.Code)}
	}

	comment := params.Comment
	if comment == "" {
		comment = "fxpilot"
	}

	req := mt5OrderRequest{
		Symbol:    params.Symbol,
		Volume:    params.Volume,
		Type:      mt5Type,
		Price:     params.Price,
		SL:        params.StopLoss,
		TP:        params.TakeProfit,
		Deviation: 10,
		Magic:     234000,
		Comment:   comment,
		Pending:   params.Code.Pending(),
	}

	var resp mt5OrderResponse
	if err := t.postJSON(ctx, "/order", req, &resp); err != nil {
		return nil, &SubmitError{Reason: err.Error()}
	}
	if resp.Retcode != mt5RetcodeDone {
		reason := resp.Comment
		if reason == "" {
			reason = fmt.Sprintf("retcode %d", resp.Retcode)
		}
		return nil, &SubmitError{Reason: reason}
	}

	return &OrderResult{OrderID: fmt.Sprintf("%d", resp.Order)}, nil
}

// ---------------------------------------------------------------------------
// HTTP helpers
// ---------------------------------------------------------------------------

func (t *MT5Terminal) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path, nil)
	if err != nil {
		return err
	}
	return t.do(req, out)
}

func (t *MT5Terminal) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return t.do(req, out)
}

func (t *MT5Terminal) do(req *http.Request, out any) error {
	if t.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+t.authToken)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway %s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ---------------------------------------------------------------------------
// Dynamic payload helpers
// ---------------------------------------------------------------------------

func popFloat(m map[string]any, key string) float64 {
	v, ok := m[key]
	if !ok {
		return 0
	}
	delete(m, key)
	f, _ := v.(float64)
	return f
}

func popInt(m map[string]any, key string) int64 {
	return int64(popFloat(m, key))
}

func popString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	delete(m, key)
	s, _ := v.(string)
	return s
}
