package engine

import (
	"context"
	"sync"
	"time"

	"TradePulse/internal/domain/models"
	applogger "TradePulse/pkg/logger"
)

var testStart = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

// candlesFromCloses builds a contiguous 5m candle series where each bar
// opens at the previous close.
func candlesFromCloses(symbol string, closes []float64) []models.Candle {
	out := make([]models.Candle, len(closes))
	prev := closes[0]
	for i, c := range closes {
		hi, lo := prev, c
		if c > hi {
			hi, lo = c, prev
		}
		out[i] = models.Candle{
			Bucket: testStart.Add(time.Duration(i) * 5 * time.Minute),
			Symbol: symbol,
			Open:   prev,
			High:   hi,
			Low:    lo,
			Close:  c,
			Volume: 100,
		}
		prev = c
	}
	return out
}

// flatCloses returns n closes drifting gently so no filter trips on them.
func flatCloses(n int, base float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = base + float64(i%3)*0.01
	}
	return out
}

type fakeExchange struct {
	mu        sync.Mutex
	live      []models.LivePosition
	liveErr   error
	fill      models.OrderResult
	submitErr error
	closeErr  error
	submits   int
	closes    int
}

func (f *fakeExchange) GetPositions(ctx context.Context, symbol string) ([]models.LivePosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.liveErr != nil {
		return nil, f.liveErr
	}
	return f.live, nil
}

func (f *fakeExchange) SubmitOrder(ctx context.Context, symbol string, side models.Side, qty float64) (models.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	if f.submitErr != nil {
		return models.OrderResult{}, f.submitErr
	}
	return f.fill, nil
}

func (f *fakeExchange) ClosePosition(ctx context.Context, symbol string, side models.Side) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return f.closeErr
}

func (f *fakeExchange) setLive(live []models.LivePosition, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live = live
	f.liveErr = err
}

type fakeSource struct {
	mu      sync.Mutex
	candles map[string][]models.Candle
	err     error
	fetches int
}

func (f *fakeSource) FetchCandles(ctx context.Context, symbol, timeframe string, lookback int) ([]models.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	return f.candles[symbol], nil
}

type fakeSink struct {
	mu     sync.Mutex
	opens  []models.TradeRecord
	closed []models.TradeRecord
}

func (f *fakeSink) RecordOpen(ctx context.Context, rec models.TradeRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens = append(f.opens, rec)
}

func (f *fakeSink) RecordClose(ctx context.Context, rec models.TradeRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, rec)
}

func (f *fakeSink) Close() error { return nil }

type fakePosStore struct {
	mu   sync.Mutex
	data map[string]models.Position
}

func newFakePosStore() *fakePosStore {
	return &fakePosStore{data: make(map[string]models.Position)}
}

func (f *fakePosStore) Save(ctx context.Context, pos models.Position) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[pos.Symbol] = pos
	return nil
}

func (f *fakePosStore) Remove(ctx context.Context, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, symbol)
	return nil
}

func (f *fakePosStore) LoadAll(ctx context.Context) ([]models.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Position, 0, len(f.data))
	for _, p := range f.data {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakePosStore) Close() error { return nil }

// recordingMetrics captures decision outcomes for assertions; everything
// else is a no-op.
type recordingMetrics struct {
	mu        sync.Mutex
	decisions []string
}

func (m *recordingMetrics) RecordDecision(symbol, outcome, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, outcome+":"+reason)
}

func (m *recordingMetrics) RecordTransition(symbol, from, to string)          {}
func (m *recordingMetrics) RecordOpenPositions(n int)                         {}
func (m *recordingMetrics) RecordLastPrice(symbol string, price float64)      {}
func (m *recordingMetrics) RecordCycleDuration(stage string, d time.Duration) {}
func (m *recordingMetrics) RecordError(kind string)                           {}

func (m *recordingMetrics) has(entry string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.decisions {
		if d == entry {
			return true
		}
	}
	return false
}

func testMachine(symbol string, exch *fakeExchange) (*PositionStateMachine, *fakeSink, *fakePosStore, *recordingMetrics) {
	sink := &fakeSink{}
	store := newFakePosStore()
	met := &recordingMetrics{}
	guard := NewReconciliationGuard(exch, applogger.Nop(), met, 10*time.Second, time.Second)
	m := NewPositionStateMachine(symbol, MachineDeps{
		Exchange: exch,
		Guard:    guard,
		History:  sink,
		PosStore: store,
		Metrics:  met,
		Logger:   applogger.Nop(),
	}, MachineConfig{OrderQty: 1, OrderTimeout: time.Second})
	return m, sink, store, met
}
