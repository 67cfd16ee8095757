package repository

import (
	"context"
	"time"

	"TradePulse/internal/domain/models"
)

// ExchangeClient is the boundary to the exchange. Every call may fail or
// time out; callers treat failure as "unknown" and fail closed.
type ExchangeClient interface {
	GetPositions(ctx context.Context, symbol string) ([]models.LivePosition, error)
	SubmitOrder(ctx context.Context, symbol string, side models.Side, qty float64) (models.OrderResult, error)
	ClosePosition(ctx context.Context, symbol string, side models.Side) error
}

// IndicatorSource supplies raw candle history for indicator computation.
type IndicatorSource interface {
	FetchCandles(ctx context.Context, symbol, timeframe string, lookback int) ([]models.Candle, error)
}

// ConfigSource supplies immutable filter/protect config snapshots.
type ConfigSource interface {
	FilterConfig() models.FilterConfig
	ProtectConfig() models.ProtectConfig
}

// Advisor is an optional signal module. A nil Advisor disables blending
// with zero degradation of the core decision path.
type Advisor interface {
	Advise(ctx context.Context, symbol string, ind models.SymbolIndicators) (models.Advice, error)
}

// HistorySink records open/close transitions. Calls are fire-and-forget:
// the engine never blocks on or reacts to sink failures.
type HistorySink interface {
	RecordOpen(ctx context.Context, rec models.TradeRecord)
	RecordClose(ctx context.Context, rec models.TradeRecord)
	Close() error
}

// PositionStore persists open positions so a restart can rehydrate them.
// An empty load is a cold start, not an error.
type PositionStore interface {
	Save(ctx context.Context, pos models.Position) error
	Remove(ctx context.Context, symbol string) error
	LoadAll(ctx context.Context) ([]models.Position, error)
	Close() error
}

// Metrics is the engine's observability boundary.
type Metrics interface {
	RecordDecision(symbol, outcome, reason string)
	RecordTransition(symbol, from, to string)
	RecordOpenPositions(n int)
	RecordLastPrice(symbol string, price float64)
	RecordCycleDuration(stage string, d time.Duration)
	RecordError(kind string)
}
