package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"TradePulse/internal/domain/models"
	applogger "TradePulse/pkg/logger"
)

// Tick is a live price update from the kline stream. Confirmed marks a
// closed bar; unconfirmed ticks only move the mark price.
type Tick struct {
	Symbol    string
	Price     float64
	Candle    models.Candle
	Confirmed bool
}

// Stream consumes the Bybit v5 public kline WebSocket for a set of symbols.
type Stream struct {
	wsURL          string
	symbols        []string
	interval       string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	logger         *applogger.Logger

	// mu guards conn and connected: Close may be called from the shutdown
	// path while the read goroutine is blocked on the connection.
	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

// NewStream creates a kline stream for symbols on the given timeframe.
func NewStream(wsURL string, symbols []string, timeframe string, reconnectDelay, pingInterval time.Duration, logger *applogger.Logger) (*Stream, error) {
	interval, err := intervalFromTimeframe(timeframe)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = applogger.Nop()
	}
	return &Stream{
		wsURL:          wsURL,
		symbols:        symbols,
		interval:       interval,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		logger:         logger,
	}, nil
}

// Connect establishes the WebSocket connection.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("bybit stream connect: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()
	s.logger.Info("bybit stream connected", applogger.String("url", s.wsURL))
	return nil
}

// connection returns the current connection, or nil when disconnected.
func (s *Stream) connection() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil
	}
	return s.conn
}

// Subscribe subscribes to the kline topic for every configured symbol.
func (s *Stream) Subscribe(ctx context.Context) error {
	conn := s.connection()
	if conn == nil {
		return fmt.Errorf("bybit stream not connected")
	}
	args := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		args = append(args, fmt.Sprintf("kline.%s.%s", s.interval, sym))
	}
	msg := map[string]interface{}{"op": "subscribe", "args": args}
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("bybit subscribe: %w", err)
	}
	s.logger.Info("bybit stream subscribed", applogger.Strings("topics", args))
	return nil
}

type wsKline struct {
	Start     int64  `json:"start"`
	Open      string `json:"open"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Close     string `json:"close"`
	Volume    string `json:"volume"`
	Confirm   bool   `json:"confirm"`
	Timestamp int64  `json:"timestamp"`
}

type wsMessage struct {
	Topic string    `json:"topic"`
	Data  []wsKline `json:"data"`
}

// Read streams ticks and errors from the current connection. The tick
// channel is dropped-on-backpressure; a read error ends both channels.
// The ping loop is tied to this read's lifetime and writes to the
// connection captured here, never to a later one.
func (s *Stream) Read(ctx context.Context) (<-chan Tick, <-chan error) {
	ticks := make(chan Tick, 256)
	errs := make(chan error, 1)

	conn := s.connection()
	if conn == nil {
		errs <- fmt.Errorf("bybit stream not connected")
		close(ticks)
		close(errs)
		return ticks, errs
	}

	rctx, stop := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-rctx.Done():
				return
			case <-ticker.C:
				_ = conn.WriteJSON(map[string]string{"op": "ping"})
			}
		}
	}()

	go func() {
		defer stop()
		defer close(ticks)
		defer close(errs)
		for {
			select {
			case <-rctx.Done():
				return
			default:
				_, b, err := conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("bybit stream read: %w", err)
					return
				}
				var m wsMessage
				if err := json.Unmarshal(b, &m); err != nil {
					continue
				}
				symbol, ok := symbolFromTopic(m.Topic)
				if !ok {
					continue
				}
				for _, k := range m.Data {
					tick, ok := tickFromKline(symbol, k)
					if !ok {
						continue
					}
					select {
					case ticks <- tick:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return ticks, errs
}

// Reconnect closes and re-establishes the connection and subscriptions.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.reconnectDelay):
	}
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

// Close closes the connection, unblocking any reader on it.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (s *Stream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// symbolFromTopic extracts the symbol from "kline.<interval>.<symbol>".
func symbolFromTopic(topic string) (string, bool) {
	for i := len(topic) - 1; i >= 0; i-- {
		if topic[i] == '.' {
			if len(topic) > i+1 && len(topic) > 6 && topic[:6] == "kline." {
				return topic[i+1:], true
			}
			return "", false
		}
	}
	return "", false
}

func tickFromKline(symbol string, k wsKline) (Tick, bool) {
	cls, err := strconv.ParseFloat(k.Close, 64)
	if err != nil || cls <= 0 {
		return Tick{}, false
	}
	open, _ := strconv.ParseFloat(k.Open, 64)
	high, _ := strconv.ParseFloat(k.High, 64)
	low, _ := strconv.ParseFloat(k.Low, 64)
	vol, _ := strconv.ParseFloat(k.Volume, 64)
	return Tick{
		Symbol:    symbol,
		Price:     cls,
		Confirmed: k.Confirm,
		Candle: models.Candle{
			Bucket: time.UnixMilli(k.Start),
			Symbol: symbol,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  cls,
			Volume: vol,
		},
	}, true
}
