package bybit

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"TradePulse/internal/domain/models"
	applogger "TradePulse/pkg/logger"
)

const recvWindow = "5000"

// Client talks to the Bybit v5 REST API. It implements both the exchange
// order surface and the candle source for derivatives symbols.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	category  string
	http      *http.Client
	logger    *applogger.Logger

	pollInterval time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithCategory sets the product category (linear, inverse, spot).
func WithCategory(category string) Option {
	return func(c *Client) {
		c.category = category
	}
}

// WithLogger sets the client logger.
func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a Bybit v5 client.
func NewClient(baseURL, apiKey, apiSecret string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		apiSecret:    apiSecret,
		category:     "linear",
		http:         &http.Client{Timeout: 10 * time.Second},
		logger:       applogger.Nop(),
		pollInterval: 300 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// envelope is the common Bybit v5 response wrapper.
type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
}

// GetPositions returns the live positions the exchange reports for symbol.
// Zero-size entries are filtered out.
func (c *Client) GetPositions(ctx context.Context, symbol string) ([]models.LivePosition, error) {
	q := url.Values{}
	q.Set("category", c.category)
	q.Set("symbol", symbol)

	var result struct {
		List []struct {
			Symbol      string `json:"symbol"`
			Side        string `json:"side"`
			Size        string `json:"size"`
			CreatedTime string `json:"createdTime"`
		} `json:"list"`
	}
	if err := c.get(ctx, "/v5/position/list", q, true, &result); err != nil {
		return nil, err
	}

	out := make([]models.LivePosition, 0, len(result.List))
	for _, p := range result.List {
		size, _ := strconv.ParseFloat(p.Size, 64)
		if size == 0 {
			continue
		}
		createdMs, _ := strconv.ParseInt(p.CreatedTime, 10, 64)
		out = append(out, models.LivePosition{
			Symbol:      p.Symbol,
			Side:        sideFromBybit(p.Side),
			Size:        size,
			CreatedTime: time.UnixMilli(createdMs),
		})
	}
	return out, nil
}

// SubmitOrder places a market order and waits for the fill confirmation.
// The result is returned only once the exchange reports the order filled.
func (c *Client) SubmitOrder(ctx context.Context, symbol string, side models.Side, qty float64) (models.OrderResult, error) {
	linkID := uuid.NewString()
	body := map[string]string{
		"category":    c.category,
		"symbol":      symbol,
		"side":        sideToBybit(side),
		"orderType":   "Market",
		"qty":         strconv.FormatFloat(qty, 'f', -1, 64),
		"orderLinkId": linkID,
	}

	var created struct {
		OrderID string `json:"orderId"`
	}
	if err := c.post(ctx, "/v5/order/create", body, &created); err != nil {
		return models.OrderResult{}, err
	}

	return c.awaitFill(ctx, symbol, created.OrderID)
}

// ClosePosition submits a reduce-only market order sized to the current
// exchange position on that side.
func (c *Client) ClosePosition(ctx context.Context, symbol string, side models.Side) error {
	live, err := c.GetPositions(ctx, symbol)
	if err != nil {
		return err
	}
	var size float64
	for _, p := range live {
		if p.Side == side {
			size = p.Size
			break
		}
	}
	if size == 0 {
		return fmt.Errorf("bybit: no %s position to close for %s", side, symbol)
	}

	body := map[string]string{
		"category":    c.category,
		"symbol":      symbol,
		"side":        sideToBybit(side.Opposite()),
		"orderType":   "Market",
		"qty":         strconv.FormatFloat(size, 'f', -1, 64),
		"reduceOnly":  "true",
		"orderLinkId": uuid.NewString(),
	}
	var created struct {
		OrderID string `json:"orderId"`
	}
	if err := c.post(ctx, "/v5/order/create", body, &created); err != nil {
		return err
	}
	_, err = c.awaitFill(ctx, symbol, created.OrderID)
	return err
}

// FetchCandles returns up to lookback closed bars in ascending time order.
// The still-forming bar Bybit includes at the head of its list is dropped.
func (c *Client) FetchCandles(ctx context.Context, symbol, timeframe string, lookback int) ([]models.Candle, error) {
	interval, err := intervalFromTimeframe(timeframe)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("category", c.category)
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("limit", strconv.Itoa(lookback+1))

	var result struct {
		List [][]string `json:"list"`
	}
	if err := c.get(ctx, "/v5/market/kline", q, false, &result); err != nil {
		return nil, err
	}
	if len(result.List) == 0 {
		return nil, nil
	}

	// Bybit returns newest first; the newest bar is unconfirmed.
	rows := result.List[1:]
	candles := make([]models.Candle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		if len(row) < 6 {
			continue
		}
		startMs, _ := strconv.ParseInt(row[0], 10, 64)
		open, _ := strconv.ParseFloat(row[1], 64)
		high, _ := strconv.ParseFloat(row[2], 64)
		low, _ := strconv.ParseFloat(row[3], 64)
		cls, _ := strconv.ParseFloat(row[4], 64)
		vol, _ := strconv.ParseFloat(row[5], 64)
		candles = append(candles, models.Candle{
			Bucket: time.UnixMilli(startMs),
			Symbol: symbol,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  cls,
			Volume: vol,
		})
	}
	return candles, nil
}

// awaitFill polls the realtime order endpoint until the order reports
// Filled or ctx expires.
func (c *Client) awaitFill(ctx context.Context, symbol, orderID string) (models.OrderResult, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		q := url.Values{}
		q.Set("category", c.category)
		q.Set("symbol", symbol)
		q.Set("orderId", orderID)

		var result struct {
			List []struct {
				OrderID     string `json:"orderId"`
				OrderStatus string `json:"orderStatus"`
				AvgPrice    string `json:"avgPrice"`
				UpdatedTime string `json:"updatedTime"`
			} `json:"list"`
		}
		if err := c.get(ctx, "/v5/order/realtime", q, true, &result); err != nil {
			return models.OrderResult{}, err
		}
		for _, o := range result.List {
			if o.OrderID != orderID {
				continue
			}
			switch o.OrderStatus {
			case "Filled":
				price, _ := strconv.ParseFloat(o.AvgPrice, 64)
				updatedMs, _ := strconv.ParseInt(o.UpdatedTime, 10, 64)
				return models.OrderResult{
					OrderID:   orderID,
					FillPrice: price,
					FillTime:  time.UnixMilli(updatedMs),
				}, nil
			case "Cancelled", "Rejected", "Deactivated":
				return models.OrderResult{}, fmt.Errorf("bybit: order %s %s", orderID, o.OrderStatus)
			}
		}

		select {
		case <-ctx.Done():
			return models.OrderResult{}, fmt.Errorf("bybit: order %s fill wait: %w", orderID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) get(ctx context.Context, path string, q url.Values, signed bool, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("bybit request: %w", err)
	}
	if signed {
		c.sign(req, q.Encode())
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("bybit marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("bybit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.sign(req, string(payload))
	return c.do(req, out)
}

// sign applies the v5 HMAC headers: the signature covers
// timestamp + key + recvWindow + payload.
func (c *Client) sign(req *http.Request, payload string) {
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(ts + c.apiKey + recvWindow + payload))

	req.Header.Set("X-BAPI-API-KEY", c.apiKey)
	req.Header.Set("X-BAPI-TIMESTAMP", ts)
	req.Header.Set("X-BAPI-RECV-WINDOW", recvWindow)
	req.Header.Set("X-BAPI-SIGN", hex.EncodeToString(mac.Sum(nil)))
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bybit %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("bybit read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bybit %s: status %d", req.URL.Path, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("bybit decode: %w", err)
	}
	if env.RetCode != 0 {
		return fmt.Errorf("bybit %s: retCode %d: %s", req.URL.Path, env.RetCode, env.RetMsg)
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("bybit decode result: %w", err)
		}
	}
	return nil
}

func sideToBybit(s models.Side) string {
	if s == models.SideShort {
		return "Sell"
	}
	return "Buy"
}

func sideFromBybit(s string) models.Side {
	if s == "Sell" {
		return models.SideShort
	}
	return models.SideLong
}

// intervalFromTimeframe maps compact timeframes to Bybit kline intervals.
func intervalFromTimeframe(tf string) (string, error) {
	switch tf {
	case "1m":
		return "1", nil
	case "3m":
		return "3", nil
	case "5m":
		return "5", nil
	case "15m":
		return "15", nil
	case "30m":
		return "30", nil
	case "1h":
		return "60", nil
	case "2h":
		return "120", nil
	case "4h":
		return "240", nil
	case "1d":
		return "D", nil
	default:
		return "", fmt.Errorf("bybit: unsupported timeframe %q", tf)
	}
}
