package paper

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"TradePulse/internal/domain/models"
)

// Exchange simulates order fills and position tracking in process. It serves
// paper trading mode and tests: orders fill instantly at the synthetic mark
// price, and GetPositions reports exactly what was filled.
type Exchange struct {
	mu        sync.Mutex
	positions map[string]models.LivePosition
	marks     map[string]float64
	slippage  float64
}

// NewExchange creates an empty paper exchange.
func NewExchange() *Exchange {
	return &Exchange{
		positions: make(map[string]models.LivePosition),
		marks:     make(map[string]float64),
	}
}

// SetMark sets the synthetic mark price orders fill against.
func (e *Exchange) SetMark(symbol string, price float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.marks[symbol] = price
}

// SetSlippage applies a uniform random fill slippage up to pct percent.
func (e *Exchange) SetSlippage(pct float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.slippage = pct
}

// GetPositions reports the simulated open position for symbol, if any.
func (e *Exchange) GetPositions(ctx context.Context, symbol string) ([]models.LivePosition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pos, ok := e.positions[symbol]
	if !ok {
		return nil, nil
	}
	return []models.LivePosition{pos}, nil
}

// SubmitOrder fills a market order at the current mark price.
func (e *Exchange) SubmitOrder(ctx context.Context, symbol string, side models.Side, qty float64) (models.OrderResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if qty <= 0 {
		return models.OrderResult{}, fmt.Errorf("paper: qty must be positive, got %v", qty)
	}
	mark, ok := e.marks[symbol]
	if !ok || mark <= 0 {
		return models.OrderResult{}, fmt.Errorf("paper: no mark price for %s", symbol)
	}
	if _, open := e.positions[symbol]; open {
		return models.OrderResult{}, fmt.Errorf("paper: position already open for %s", symbol)
	}

	fill := mark
	if e.slippage > 0 {
		drift := (rand.Float64()*2 - 1) * e.slippage / 100
		fill = mark * (1 + drift)
	}

	now := time.Now()
	e.positions[symbol] = models.LivePosition{
		Symbol:      symbol,
		Side:        side,
		Size:        qty,
		CreatedTime: now,
	}
	return models.OrderResult{
		OrderID:   uuid.NewString(),
		FillPrice: fill,
		FillTime:  now,
	}, nil
}

// ClosePosition removes the simulated position for symbol.
func (e *Exchange) ClosePosition(ctx context.Context, symbol string, side models.Side) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, ok := e.positions[symbol]
	if !ok {
		return fmt.Errorf("paper: no open position for %s", symbol)
	}
	if pos.Side != side {
		return fmt.Errorf("paper: side mismatch for %s: have %s, want %s", symbol, pos.Side, side)
	}
	delete(e.positions, symbol)
	return nil
}

// Source generates synthetic candle history for paper mode. Each symbol
// walks a seeded random path so repeated fetches extend a consistent series.
type Source struct {
	mu    sync.Mutex
	walks map[string]*walk
	step  time.Duration
	sink  func(symbol string, price float64)
}

type walk struct {
	price float64
	rng   *rand.Rand
}

// SourceOption configures a Source.
type SourceOption func(*Source)

// WithMarkSink forwards each symbol's latest close, typically into
// Exchange.SetMark so paper fills track the synthetic series.
func WithMarkSink(sink func(symbol string, price float64)) SourceOption {
	return func(s *Source) {
		s.sink = sink
	}
}

// NewSource creates a candle source with the given timeframe step.
func NewSource(step time.Duration, opts ...SourceOption) *Source {
	if step <= 0 {
		step = 5 * time.Minute
	}
	s := &Source{
		walks: make(map[string]*walk),
		step:  step,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchCandles synthesizes lookback bars ending at the current step bucket.
func (s *Source) FetchCandles(ctx context.Context, symbol, timeframe string, lookback int) ([]models.Candle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.walks[symbol]
	if !ok {
		seed := int64(0)
		for _, r := range symbol {
			seed = seed*31 + int64(r)
		}
		w = &walk{price: 100, rng: rand.New(rand.NewSource(seed))}
		s.walks[symbol] = w
	}

	end := time.Now().Truncate(s.step)
	candles := make([]models.Candle, 0, lookback)
	for i := lookback - 1; i >= 0; i-- {
		open := w.price
		drift := (w.rng.Float64()*2 - 1) * 0.6
		close := open * (1 + drift/100)
		high := math.Max(open, close) * 1.001
		low := math.Min(open, close) * 0.999
		candles = append(candles, models.Candle{
			Bucket: end.Add(-time.Duration(i) * s.step),
			Symbol: symbol,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  close,
			Volume: 1000 + w.rng.Float64()*500,
		})
		w.price = close
	}
	if s.sink != nil && len(candles) > 0 {
		s.sink(symbol, candles[len(candles)-1].Close)
	}
	return candles, nil
}
