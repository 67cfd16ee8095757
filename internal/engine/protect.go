package engine

import (
	"TradePulse/internal/domain/models"
)

// ProtectiveExitManager converts running profit into protective exit
// levels. Update is pure computation over the position and price; the
// only mutation is the position's own peak-profit bookkeeping.
type ProtectiveExitManager struct {
	cfg models.ProtectConfig
}

// NewProtectiveExitManager creates a manager with the given thresholds.
func NewProtectiveExitManager(cfg models.ProtectConfig) *ProtectiveExitManager {
	return &ProtectiveExitManager{cfg: cfg}
}

// Update folds the current price into the position's profit tracking and
// returns the exit decision for this cycle.
//
// MaxProfitPct is monotone non-decreasing for the life of the position.
// Break-even arms once profit reaches the activation threshold and fires
// when profit falls back to the trigger. The trailing stop is judged
// independently: once peak profit reaches its activation threshold, a
// retrace of the trailing distance from the peak fires it.
func (m *ProtectiveExitManager) Update(pos *models.Position, price float64) models.ExitDecision {
	if pos == nil {
		return models.ExitNone
	}
	pnl := pos.PnLPct(price)
	if pnl > pos.MaxProfitPct {
		pos.MaxProfitPct = pnl
	}

	if !pos.BreakEvenArmed && pnl >= m.cfg.BreakEvenActivationPct {
		pos.BreakEvenArmed = true
	}
	if pos.BreakEvenArmed && pnl <= m.cfg.BreakEvenTriggerPct {
		return models.ExitBreakEven
	}

	if pos.MaxProfitPct >= m.cfg.TrailingActivationPct {
		if pnl <= pos.MaxProfitPct-m.cfg.TrailingDistancePct {
			return models.ExitTrailingStop
		}
	}
	return models.ExitNone
}
