package repository

import (
	"context"
	"database/sql"
	"time"

	"TradePulse/internal/domain/models"
	appch "TradePulse/pkg/clickhouse"
	applogger "TradePulse/pkg/logger"
)

const tradeEventsDDL = `
CREATE TABLE IF NOT EXISTS trade_events (
    symbol      LowCardinality(String),
    side        LowCardinality(String),
    event       LowCardinality(String),
    price       Float64,
    qty         Float64,
    order_id    String,
    pnl_pct     Float64,
    reason      LowCardinality(String),
    occurred_at DateTime64(3)
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(occurred_at)
ORDER BY (symbol, occurred_at)`

const insertTradeEvent = `
INSERT INTO trade_events
    (symbol, side, event, price, qty, order_id, pnl_pct, reason, occurred_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// ClickHouseHistorySink persists trade events to a ClickHouse table.
// Insert failures are logged and dropped; trade history is best-effort.
type ClickHouseHistorySink struct {
	client  *appch.Client
	db      *sql.DB
	timeout time.Duration
	logger  *applogger.Logger
}

// NewClickHouseHistorySink creates the trade_events table if needed and
// returns a sink writing to it.
func NewClickHouseHistorySink(client *appch.Client, logger *applogger.Logger) (*ClickHouseHistorySink, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, []string{tradeEventsDDL}); err != nil {
		return nil, err
	}
	return &ClickHouseHistorySink{
		client:  client,
		db:      client.DB(),
		timeout: 5 * time.Second,
		logger:  logger,
	}, nil
}

func (s *ClickHouseHistorySink) RecordOpen(ctx context.Context, rec models.TradeRecord) {
	s.insert(ctx, rec)
}

func (s *ClickHouseHistorySink) RecordClose(ctx context.Context, rec models.TradeRecord) {
	s.insert(ctx, rec)
}

func (s *ClickHouseHistorySink) insert(ctx context.Context, rec models.TradeRecord) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, insertTradeEvent,
		rec.Symbol, string(rec.Side), rec.Event, rec.Price, rec.Qty,
		rec.OrderID, rec.PnLPct, rec.Reason, rec.OccurredAt)
	if err != nil {
		s.logger.Error("failed to insert trade record",
			applogger.String("symbol", rec.Symbol),
			applogger.String("event", rec.Event),
			applogger.Error(err))
	}
}

// Close releases the ClickHouse connection pool.
func (s *ClickHouseHistorySink) Close() error {
	return s.client.Close()
}
