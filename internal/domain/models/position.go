package models

import "time"

// Side of a position or order.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// PositionStatus is the lifecycle state of a symbol's bot.
type PositionStatus string

const (
	StatusIdle       PositionStatus = "idle"
	StatusEntering   PositionStatus = "entering"
	StatusInPosition PositionStatus = "in_position"
	StatusExiting    PositionStatus = "exiting"
)

// Signal is a trade intent produced by the filter chain or an advisor.
type Signal string

const (
	SignalNone       Signal = "none"
	SignalEnterLong  Signal = "enter_long"
	SignalEnterShort Signal = "enter_short"
	SignalExit       Signal = "exit"
)

// SideFor maps an entry signal to the position side it would open.
func (s Signal) SideFor() (Side, bool) {
	switch s {
	case SignalEnterLong:
		return SideLong, true
	case SignalEnterShort:
		return SideShort, true
	default:
		return "", false
	}
}

// Position is the bot's record of one open trade. It is created only on a
// confirmed fill and mutated only by the owning state machine.
type Position struct {
	Symbol         string    `json:"symbol"`
	Side           Side      `json:"side"`
	EntryPrice     float64   `json:"entry_price"`
	EntryQty       float64   `json:"entry_qty"`
	EntryTimestamp time.Time `json:"entry_at"`
	OrderID        string    `json:"order_id"`
	OpenedByBot    bool      `json:"opened_by_bot"`
	MaxProfitPct   float64   `json:"max_profit_pct"`
	BreakEvenArmed bool      `json:"break_even_armed"`
}

// PnLPct returns the side-adjusted unrealized profit at price, in percent.
func (p *Position) PnLPct(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	raw := (price - p.EntryPrice) / p.EntryPrice * 100
	if p.Side == SideShort {
		return -raw
	}
	return raw
}

// LivePosition is what the exchange reports for a symbol.
type LivePosition struct {
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	Size        float64   `json:"size"`
	CreatedTime time.Time `json:"created_time"`
}

// OrderResult is the confirmed outcome of an order submission.
type OrderResult struct {
	OrderID   string    `json:"order_id"`
	FillPrice float64   `json:"fill_price"`
	FillTime  time.Time `json:"fill_time"`
}

// ExitDecision is the protective-exit manager's verdict for one cycle.
type ExitDecision string

const (
	ExitNone         ExitDecision = "none"
	ExitBreakEven    ExitDecision = "break_even"
	ExitTrailingStop ExitDecision = "trailing_stop"
)

// TradeRecord is a history event emitted on open and close transitions.
type TradeRecord struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Event      string    `json:"event"` // "open" or "close"
	Price      float64   `json:"price"`
	Qty        float64   `json:"qty"`
	OrderID    string    `json:"order_id"`
	PnLPct     float64   `json:"pnl_pct,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Advice is an optional advisory module's output.
type Advice struct {
	Signal     Signal  `json:"signal"`
	Confidence float64 `json:"confidence"`
}
