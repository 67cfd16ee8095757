package engine

import (
	"context"
	"fmt"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	applogger "TradePulse/pkg/logger"
)

// Close reasons recorded to the history sink.
const (
	CloseReasonBreakEven    = "break_even"
	CloseReasonTrailingStop = "trailing_stop"
	CloseReasonRSIExit      = "rsi_exit"
	CloseReasonOpposite     = "opposite_signal"
)

// MachineDeps are the collaborators a state machine acts through.
type MachineDeps struct {
	Exchange drepo.ExchangeClient
	Guard    *ReconciliationGuard
	History  drepo.HistorySink
	PosStore drepo.PositionStore
	Metrics  drepo.Metrics
	Logger   *applogger.Logger
}

// MachineConfig tunes one state machine.
type MachineConfig struct {
	OrderQty         float64
	OrderTimeout     time.Duration
	StrictInvariants bool
}

// PositionStateMachine owns one symbol's position lifecycle:
// idle -> entering -> in_position -> exiting -> idle. Exactly one
// goroutine drives a machine at a time (the scheduler holds the symbol
// lock); the machine itself is not internally synchronized.
type PositionStateMachine struct {
	symbol string
	status models.PositionStatus
	pos    *models.Position

	lastDenyReason string
	lastDenyAt     time.Time

	deps MachineDeps
	cfg  MachineConfig
}

// NewPositionStateMachine creates an idle machine for symbol.
func NewPositionStateMachine(symbol string, deps MachineDeps, cfg MachineConfig) *PositionStateMachine {
	if cfg.OrderTimeout <= 0 {
		cfg.OrderTimeout = 10 * time.Second
	}
	return &PositionStateMachine{
		symbol: symbol,
		status: models.StatusIdle,
		deps:   deps,
		cfg:    cfg,
	}
}

// Symbol returns the machine's symbol.
func (m *PositionStateMachine) Symbol() string { return m.symbol }

// Status returns the current lifecycle state.
func (m *PositionStateMachine) Status() models.PositionStatus { return m.status }

// Position returns a copy of the open position, if any.
func (m *PositionStateMachine) Position() (models.Position, bool) {
	if m.pos == nil {
		return models.Position{}, false
	}
	return *m.pos, true
}

// LastDeny returns the most recent entry-denial reason and when it was
// recorded.
func (m *PositionStateMachine) LastDeny() (string, time.Time) {
	return m.lastDenyReason, m.lastDenyAt
}

// Rehydrate installs a persisted position and moves straight to
// in_position. Only valid from idle.
func (m *PositionStateMachine) Rehydrate(pos models.Position) error {
	if m.status != models.StatusIdle {
		return m.invalid("rehydrate", models.StatusInPosition)
	}
	p := pos
	m.pos = &p
	m.setStatus(models.StatusInPosition)
	return nil
}

// HandleEntry drives one entry attempt from idle. The reconciliation
// guard is consulted immediately before the entering transition; a
// position comes into existence only on a confirmed fill.
func (m *PositionStateMachine) HandleEntry(ctx context.Context, sig models.Signal) error {
	side, ok := sig.SideFor()
	if !ok {
		return nil
	}
	if m.status != models.StatusIdle {
		return m.invalid("entry", models.StatusEntering)
	}

	allowed, reason := m.deps.Guard.CanOpen(ctx, m.symbol)
	if !allowed {
		m.recordDeny(reason)
		m.deps.Metrics.RecordDecision(m.symbol, "entry_denied", reason)
		return nil
	}

	m.setStatus(models.StatusEntering)

	octx, cancel := context.WithTimeout(ctx, m.cfg.OrderTimeout)
	defer cancel()
	res, err := m.deps.Exchange.SubmitOrder(octx, m.symbol, side, m.cfg.OrderQty)
	if err != nil {
		// Submission failure or timeout: no position was created.
		m.deps.Metrics.RecordError("order_submit")
		m.deps.Logger.Warn("order submission failed",
			applogger.String("symbol", m.symbol),
			applogger.String("side", string(side)),
			applogger.Error(err))
		m.setStatus(models.StatusIdle)
		return nil
	}

	m.pos = &models.Position{
		Symbol:         m.symbol,
		Side:           side,
		EntryPrice:     res.FillPrice,
		EntryQty:       m.cfg.OrderQty,
		EntryTimestamp: res.FillTime,
		OrderID:        res.OrderID,
		OpenedByBot:    true,
	}
	m.setStatus(models.StatusInPosition)
	m.deps.Metrics.RecordDecision(m.symbol, "entry_filled", string(side))
	m.deps.Logger.Info("position opened",
		applogger.String("symbol", m.symbol),
		applogger.String("side", string(side)),
		applogger.Float64("entry_price", res.FillPrice),
		applogger.String("order_id", res.OrderID))

	if m.deps.PosStore != nil {
		if err := m.deps.PosStore.Save(ctx, *m.pos); err != nil {
			m.deps.Metrics.RecordError("position_persist")
			m.deps.Logger.Warn("position persist failed",
				applogger.String("symbol", m.symbol), applogger.Error(err))
		}
	}
	if m.deps.History != nil {
		m.deps.History.RecordOpen(ctx, models.TradeRecord{
			Symbol:     m.symbol,
			Side:       side,
			Event:      "open",
			Price:      res.FillPrice,
			Qty:        m.cfg.OrderQty,
			OrderID:    res.OrderID,
			OccurredAt: res.FillTime,
		})
	}
	return nil
}

// HandleCycle evaluates one in-position cycle: feed the current price to
// the protective-exit manager, check the RSI exit and opposite-signal
// conditions, and drive the exit if any of them triggered. Exit beats
// any re-entry consideration within the same cycle.
func (m *PositionStateMachine) HandleCycle(ctx context.Context, ind models.SymbolIndicators, fcfg models.FilterConfig, protect *ProtectiveExitManager) error {
	if m.status != models.StatusInPosition {
		return m.invalid("cycle", models.StatusExiting)
	}
	if ind.Price == 0 {
		return nil
	}

	decision := protect.Update(m.pos, ind.Price)
	reason := ""
	switch decision {
	case models.ExitBreakEven:
		reason = CloseReasonBreakEven
	case models.ExitTrailingStop:
		reason = CloseReasonTrailingStop
	default:
		if RSIExitTriggered(m.pos.Side, ind.RSI, fcfg) {
			reason = CloseReasonRSIExit
		} else if opp := EntrySignal(ind, fcfg); opp != models.SignalNone {
			if side, _ := opp.SideFor(); side == m.pos.Side.Opposite() {
				if allowed, _ := NewFilterChain().Evaluate(m.symbol, ind, opp, fcfg); allowed {
					reason = CloseReasonOpposite
				}
			}
		}
	}
	if reason == "" {
		return nil
	}
	return m.exit(ctx, ind.Price, reason)
}

// exit drives the exiting transition. If the guard cannot confirm the
// position belongs to this bot, the close is aborted and the machine
// returns to in_position with its state intact.
func (m *PositionStateMachine) exit(ctx context.Context, price float64, reason string) error {
	m.setStatus(models.StatusExiting)

	allowed, denyReason := m.deps.Guard.CanClose(ctx, m.pos)
	if !allowed {
		m.deps.Metrics.RecordDecision(m.symbol, "close_denied", denyReason)
		m.deps.Logger.Warn("close aborted by reconciliation guard",
			applogger.String("symbol", m.symbol),
			applogger.String("reason", denyReason))
		m.setStatus(models.StatusInPosition)
		return nil
	}

	octx, cancel := context.WithTimeout(ctx, m.cfg.OrderTimeout)
	defer cancel()
	if err := m.deps.Exchange.ClosePosition(octx, m.symbol, m.pos.Side); err != nil {
		m.deps.Metrics.RecordError("order_close")
		m.deps.Logger.Warn("close submission failed",
			applogger.String("symbol", m.symbol), applogger.Error(err))
		m.setStatus(models.StatusInPosition)
		return nil
	}

	closed := *m.pos
	pnl := closed.PnLPct(price)
	m.pos = nil
	m.setStatus(models.StatusIdle)
	m.deps.Metrics.RecordDecision(m.symbol, "closed", reason)
	m.deps.Logger.Info("position closed",
		applogger.String("symbol", m.symbol),
		applogger.String("reason", reason),
		applogger.Float64("pnl_pct", pnl))

	if m.deps.PosStore != nil {
		if err := m.deps.PosStore.Remove(ctx, m.symbol); err != nil {
			m.deps.Metrics.RecordError("position_persist")
		}
	}
	if m.deps.History != nil {
		m.deps.History.RecordClose(ctx, models.TradeRecord{
			Symbol:     m.symbol,
			Side:       closed.Side,
			Event:      "close",
			Price:      price,
			Qty:        closed.EntryQty,
			OrderID:    closed.OrderID,
			PnLPct:     pnl,
			Reason:     reason,
			OccurredAt: time.Now().UTC(),
		})
	}
	return nil
}

func (m *PositionStateMachine) setStatus(next models.PositionStatus) {
	m.deps.Metrics.RecordTransition(m.symbol, string(m.status), string(next))
	m.status = next
}

func (m *PositionStateMachine) recordDeny(reason string) {
	m.lastDenyReason = reason
	m.lastDenyAt = time.Now().UTC()
}

// invalid handles a transition that is not legal from the current state:
// a bug, not an operational condition. Strict mode panics; production
// logs and refuses.
func (m *PositionStateMachine) invalid(op string, want models.PositionStatus) error {
	err := fmt.Errorf("%w: %s %s while %s", ErrInvalidTransition, m.symbol, op, m.status)
	if m.cfg.StrictInvariants {
		panic(err)
	}
	m.deps.Metrics.RecordError("invalid_transition")
	m.deps.Logger.Error("invalid state transition ignored",
		applogger.String("symbol", m.symbol),
		applogger.String("op", op),
		applogger.String("status", string(m.status)),
		applogger.String("wanted", string(want)))
	return err
}
