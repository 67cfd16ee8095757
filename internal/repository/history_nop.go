package repository

import (
	"context"

	"TradePulse/internal/domain/models"
)

// NopHistorySink discards trade events. Used when no history backend is
// configured and in paper trading.
type NopHistorySink struct{}

func (NopHistorySink) RecordOpen(ctx context.Context, rec models.TradeRecord)  {}
func (NopHistorySink) RecordClose(ctx context.Context, rec models.TradeRecord) {}
func (NopHistorySink) Close() error                                            { return nil }
