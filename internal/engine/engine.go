package engine

import (
	"context"
	"sync/atomic"
	"time"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	applogger "TradePulse/pkg/logger"
)

// Config tunes the engine and its scheduler.
type Config struct {
	Symbols            []string
	Timeframe          string
	CandleLookback     int
	RefreshInterval    time.Duration
	EntryScanInterval  time.Duration
	RefreshWorkers     int
	MaxOpenPositions   int
	OrderQty           float64
	OrderTimeout       time.Duration
	ExchangeTimeout    time.Duration
	SnapshotTimeout    time.Duration
	ReconcileTolerance time.Duration
	RSIPeriod          int
	EMAFast            int
	EMASlow            int
	MaturityMinCandles int
	AdvisorMinConf     float64
	StrictInvariants   bool
}

func (c *Config) fillDefaults() {
	if c.Timeframe == "" {
		c.Timeframe = "5m"
	}
	if c.CandleLookback <= 0 {
		c.CandleLookback = 100
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = 25 * time.Second
	}
	if c.EntryScanInterval <= 0 {
		c.EntryScanInterval = 60 * time.Second
	}
	if c.RefreshWorkers <= 0 {
		c.RefreshWorkers = 8
	}
	if c.MaxOpenPositions <= 0 {
		c.MaxOpenPositions = 5
	}
	if c.OrderTimeout <= 0 {
		c.OrderTimeout = 10 * time.Second
	}
	if c.ExchangeTimeout <= 0 {
		c.ExchangeTimeout = 5 * time.Second
	}
	if c.SnapshotTimeout <= 0 {
		c.SnapshotTimeout = 2 * time.Second
	}
	if c.ReconcileTolerance <= 0 {
		c.ReconcileTolerance = 10 * time.Second
	}
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = 14
	}
	if c.EMAFast <= 0 {
		c.EMAFast = 9
	}
	if c.EMASlow <= 0 {
		c.EMASlow = 21
	}
	if c.MaturityMinCandles <= 0 {
		c.MaturityMinCandles = c.RSIPeriod * 2
	}
	if c.AdvisorMinConf <= 0 {
		c.AdvisorMinConf = 0.7
	}
}

// Deps are the engine's injected collaborators. Advisor may be nil.
type Deps struct {
	Exchange  drepo.ExchangeClient
	Source    drepo.IndicatorSource
	ConfigSrc drepo.ConfigSource
	Advisor   drepo.Advisor
	History   drepo.HistorySink
	PosStore  drepo.PositionStore
	Metrics   drepo.Metrics
	Logger    *applogger.Logger
}

// Engine owns all mutable trading state: the indicator store, one state
// machine per symbol, and the reconciliation guard. There is no
// package-level state; everything reaches the engine through explicit
// dependencies.
type Engine struct {
	cfg   Config
	deps  Deps
	store *IndicatorStore
	locks *SymbolLocks

	filters *FilterChain
	guard   *ReconciliationGuard

	// machines is built once at construction and read-only afterwards;
	// per-machine access is serialized by locks.
	machines map[string]*PositionStateMachine

	lastRefresh atomic.Int64 // unix nanos of last completed refresh
}

// New creates an engine for the configured symbols.
func New(cfg Config, deps Deps) *Engine {
	cfg.fillDefaults()
	e := &Engine{
		cfg:      cfg,
		deps:     deps,
		store:    NewIndicatorStore(cfg.CandleLookback * 2),
		locks:    NewSymbolLocks(len(cfg.Symbols)*2 + 1),
		filters:  NewFilterChain(),
		machines: make(map[string]*PositionStateMachine, len(cfg.Symbols)),
	}
	e.guard = NewReconciliationGuard(deps.Exchange, deps.Logger, deps.Metrics, cfg.ReconcileTolerance, cfg.ExchangeTimeout)
	mdeps := MachineDeps{
		Exchange: deps.Exchange,
		Guard:    e.guard,
		History:  deps.History,
		PosStore: deps.PosStore,
		Metrics:  deps.Metrics,
		Logger:   deps.Logger,
	}
	mcfg := MachineConfig{
		OrderQty:         cfg.OrderQty,
		OrderTimeout:     cfg.OrderTimeout,
		StrictInvariants: cfg.StrictInvariants,
	}
	for _, sym := range cfg.Symbols {
		e.machines[sym] = NewPositionStateMachine(sym, mdeps, mcfg)
	}
	return e
}

// Store exposes the indicator store (read-side callers use Snapshot or
// TrySnapshot, never the live map).
func (e *Engine) Store() *IndicatorStore { return e.store }

// Guard exposes the reconciliation guard.
func (e *Engine) Guard() *ReconciliationGuard { return e.guard }

// Machine returns the state machine for symbol.
func (e *Engine) Machine(symbol string) (*PositionStateMachine, bool) {
	m, ok := e.machines[symbol]
	return m, ok
}

// Rehydrate loads persisted positions into their machines. An empty or
// absent store is a cold start: every machine stays idle.
func (e *Engine) Rehydrate(ctx context.Context) error {
	if e.deps.PosStore == nil {
		return nil
	}
	positions, err := e.deps.PosStore.LoadAll(ctx)
	if err != nil {
		e.deps.Metrics.RecordError("rehydrate")
		e.deps.Logger.Warn("position rehydration failed, starting cold", applogger.Error(err))
		return nil
	}
	for _, pos := range positions {
		m, ok := e.machines[pos.Symbol]
		if !ok {
			e.deps.Logger.Warn("persisted position for untracked symbol, skipping",
				applogger.String("symbol", pos.Symbol))
			continue
		}
		if err := m.Rehydrate(pos); err != nil {
			continue
		}
		e.deps.Logger.Info("position rehydrated",
			applogger.String("symbol", pos.Symbol),
			applogger.String("side", string(pos.Side)))
	}
	return nil
}

// OpenPositionCount counts machines holding or working on a position.
func (e *Engine) OpenPositionCount() int {
	n := 0
	for _, m := range e.machines {
		if m.Status() != models.StatusIdle {
			n++
		}
	}
	return n
}

// PositionView is one machine's externally visible state. Busy marks a
// symbol whose lock could not be taken in time; its live fields are
// omitted rather than read unsynchronized.
type PositionView struct {
	Symbol     string                `json:"symbol"`
	Status     models.PositionStatus `json:"status,omitempty"`
	Position   *models.Position      `json:"position,omitempty"`
	DenyReason string                `json:"deny_reason,omitempty"`
	Busy       bool                  `json:"busy,omitempty"`
}

// Status is the engine's externally visible state for the control plane.
type Status struct {
	Symbols       int            `json:"symbols"`
	OpenPositions int            `json:"open_positions"`
	MaxOpen       int            `json:"max_open_positions"`
	LastRefresh   time.Time      `json:"last_refresh"`
	Positions     []PositionView `json:"positions"`
}

// StatusReport assembles the control-plane view. Machine fields are only
// ever read under the per-symbol lock with a bounded wait; a symbol whose
// lock cannot be taken is reported busy with no live fields instead of
// stalling the caller or racing the scheduler.
func (e *Engine) StatusReport() Status {
	st := Status{
		Symbols: len(e.machines),
		MaxOpen: e.cfg.MaxOpenPositions,
	}
	if ns := e.lastRefresh.Load(); ns > 0 {
		st.LastRefresh = time.Unix(0, ns).UTC()
	}
	for sym, m := range e.machines {
		if err := e.locks.TryLock(sym, 50*time.Millisecond); err != nil {
			st.Positions = append(st.Positions, PositionView{Symbol: sym, Busy: true})
			continue
		}
		view := PositionView{Symbol: sym, Status: m.Status()}
		if pos, ok := m.Position(); ok {
			p := pos
			view.Position = &p
		}
		if reason, _ := m.LastDeny(); reason != "" {
			view.DenyReason = reason
		}
		e.locks.Unlock(sym)
		if view.Status != models.StatusIdle {
			st.OpenPositions++
			st.Positions = append(st.Positions, view)
		}
	}
	return st
}

// ApplyTick folds a live stream update into the indicator store. The
// mark price always moves; a confirmed bar is appended to the candle
// window and the derived indicators recomputed. Symbols without a
// refreshed baseline are skipped so stream data never races the first
// scheduler refresh into a partial view.
func (e *Engine) ApplyTick(symbol string, price float64, candle models.Candle, confirmed bool) {
	if _, ok := e.machines[symbol]; !ok || price <= 0 {
		return
	}
	si, ok := e.store.Get(symbol)
	if !ok {
		return
	}
	si.Price = price
	si.UpdatedAt = time.Now().UTC()
	if confirmed {
		si.RecentCandles = append(si.RecentCandles, candle)
		si.RSI = LatestRSI(si.RecentCandles, e.cfg.RSIPeriod)
		si.Trend = TrendFrom(si.RecentCandles, e.cfg.EMAFast, e.cfg.EMASlow)
		si.IsMature = len(si.RecentCandles) >= e.cfg.MaturityMinCandles
	}
	e.store.Update(symbol, si)
	e.deps.Metrics.RecordLastPrice(symbol, price)
}

// Indicators returns a bounded-wait copy of one symbol's indicators for
// the control plane. ErrBusy maps to backpressure upstream.
func (e *Engine) Indicators(symbol string) (models.SymbolIndicators, error) {
	snap, err := e.store.TrySnapshot(e.cfg.SnapshotTimeout)
	if err != nil {
		return models.SymbolIndicators{}, err
	}
	si, ok := snap[symbol]
	if !ok {
		return models.SymbolIndicators{}, ErrNotTracked
	}
	return si, nil
}
