package engine

import (
	"context"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	applogger "TradePulse/pkg/logger"
)

// Guard denial reasons.
const (
	ReasonLivePosition = "live_position_exists"
	ReasonQueryFailed  = "exchange_query_failed"
	ReasonNotBotOwned  = "not_opened_by_bot"
	ReasonNoMatch      = "no_matching_live_position"
	ReasonTimeMismatch = "created_time_outside_tolerance"
)

// ReconciliationGuard verifies intended actions against the exchange's
// actual state. Both checks are mandatory gates and both fail closed: an
// exchange query failure is treated as "unknown" and denies the action.
type ReconciliationGuard struct {
	exchange    drepo.ExchangeClient
	logger      *applogger.Logger
	metrics     drepo.Metrics
	tolerance   time.Duration
	callTimeout time.Duration
}

// NewReconciliationGuard creates a guard. tolerance bounds the
// createdTime match window on close; callTimeout bounds each exchange
// query.
func NewReconciliationGuard(exchange drepo.ExchangeClient, logger *applogger.Logger, metrics drepo.Metrics, tolerance, callTimeout time.Duration) *ReconciliationGuard {
	if tolerance <= 0 {
		tolerance = 10 * time.Second
	}
	if callTimeout <= 0 {
		callTimeout = 5 * time.Second
	}
	return &ReconciliationGuard{
		exchange:    exchange,
		logger:      logger,
		metrics:     metrics,
		tolerance:   tolerance,
		callTimeout: callTimeout,
	}
}

// CanOpen reports whether a new position may be opened on symbol. Any
// nonzero-size live position on the exchange, ours or not, denies the
// open regardless of internal state.
func (g *ReconciliationGuard) CanOpen(ctx context.Context, symbol string) (bool, string) {
	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	live, err := g.exchange.GetPositions(ctx, symbol)
	if err != nil {
		g.metrics.RecordError("guard_query")
		g.logger.Warn("guard: position query failed, denying open",
			applogger.String("symbol", symbol), applogger.Error(err))
		return false, ReasonQueryFailed
	}
	for _, lp := range live {
		if lp.Size != 0 {
			return false, ReasonLivePosition
		}
	}
	return true, ""
}

// CanClose reports whether pos may be closed. The close is confirmed
// only when the exchange reports a position matching the side whose
// createdTime lies within the tolerance window of our entry time; this
// is what keeps the bot's hands off manually opened positions.
func (g *ReconciliationGuard) CanClose(ctx context.Context, pos *models.Position) (bool, string) {
	if pos == nil || !pos.OpenedByBot {
		return false, ReasonNotBotOwned
	}

	ctx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	live, err := g.exchange.GetPositions(ctx, pos.Symbol)
	if err != nil {
		g.metrics.RecordError("guard_query")
		g.logger.Warn("guard: position query failed, denying close",
			applogger.String("symbol", pos.Symbol), applogger.Error(err))
		return false, ReasonQueryFailed
	}

	sideSeen := false
	for _, lp := range live {
		if lp.Size == 0 || lp.Side != pos.Side {
			continue
		}
		sideSeen = true
		delta := lp.CreatedTime.Sub(pos.EntryTimestamp)
		if delta < 0 {
			delta = -delta
		}
		if delta <= g.tolerance {
			return true, ""
		}
	}
	if sideSeen {
		return false, ReasonTimeMismatch
	}
	return false, ReasonNoMatch
}
