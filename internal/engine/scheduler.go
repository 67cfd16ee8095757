package engine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"TradePulse/internal/domain/models"
	applogger "TradePulse/pkg/logger"
)

// Scheduler drives the engine's update cycle: refresh indicators on one
// cadence, scan for new entries on a slower one, and evaluate exits for
// live positions every refresh. Decisions always run against a snapshot
// taken after the refresh writes have completed; no scan ever iterates
// the live store.
type Scheduler struct {
	engine *Engine
}

// NewScheduler creates a scheduler for engine.
func NewScheduler(engine *Engine) *Scheduler {
	return &Scheduler{engine: engine}
}

// Run blocks until ctx is cancelled, executing refresh/exit cycles and
// entry scans on their configured cadences. The first cycle runs
// immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	e := s.engine
	refresh := time.NewTicker(e.cfg.RefreshInterval)
	defer refresh.Stop()
	entries := time.NewTicker(e.cfg.EntryScanInterval)
	defer entries.Stop()

	s.cycle(ctx, true)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-refresh.C:
			s.cycle(ctx, false)
		case <-entries.C:
			s.entryScan(ctx)
		}
	}
}

// cycle refreshes all symbols, then evaluates exits against one fresh
// snapshot. withEntries additionally runs an entry scan on the same
// snapshot (used for the warmup cycle).
func (s *Scheduler) cycle(ctx context.Context, withEntries bool) {
	e := s.engine
	start := time.Now()
	s.refreshAll(ctx)
	e.deps.Metrics.RecordCycleDuration("refresh", time.Since(start))
	e.lastRefresh.Store(time.Now().UnixNano())

	snap := e.store.Snapshot()
	s.exitPass(ctx, snap)
	if withEntries {
		s.entryPassOn(ctx, snap)
	}
	e.deps.Metrics.RecordCycleDuration("cycle", time.Since(start))
}

// entryScan takes its own snapshot; refresh may have run in between but
// the snapshot is still internally consistent.
func (s *Scheduler) entryScan(ctx context.Context) {
	start := time.Now()
	snap := s.engine.store.Snapshot()
	s.entryPassOn(ctx, snap)
	s.engine.deps.Metrics.RecordCycleDuration("entry_scan", time.Since(start))
}

// refreshAll fetches candles and recomputes indicators for every tracked
// symbol on a bounded worker pool. A failed fetch skips the symbol and
// leaves its previous store entry in place.
func (s *Scheduler) refreshAll(ctx context.Context) {
	e := s.engine
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.RefreshWorkers)

	for _, sym := range e.cfg.Symbols {
		sym := sym
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, e.cfg.ExchangeTimeout)
			defer cancel()
			candles, err := e.deps.Source.FetchCandles(fctx, sym, e.cfg.Timeframe, e.cfg.CandleLookback)
			if err != nil {
				e.deps.Metrics.RecordError("candle_fetch")
				e.deps.Logger.Warn("candle fetch failed, keeping previous indicators",
					applogger.String("symbol", sym), applogger.Error(err))
				return nil
			}
			if len(candles) == 0 {
				return nil
			}
			e.store.Update(sym, s.computeIndicators(sym, candles))
			return nil
		})
	}
	_ = g.Wait()
}

// computeIndicators derives the decision inputs from raw candles.
func (s *Scheduler) computeIndicators(symbol string, candles []models.Candle) models.SymbolIndicators {
	e := s.engine
	last := candles[len(candles)-1]
	si := models.SymbolIndicators{
		Symbol:        symbol,
		Price:         last.Close,
		RSI:           LatestRSI(candles, e.cfg.RSIPeriod),
		Trend:         TrendFrom(candles, e.cfg.EMAFast, e.cfg.EMASlow),
		RecentCandles: candles,
		IsMature:      len(candles) >= e.cfg.MaturityMinCandles,
		UpdatedAt:     time.Now().UTC(),
	}
	e.deps.Metrics.RecordLastPrice(symbol, si.Price)
	return si
}

// exitPass feeds the snapshot to every machine holding a position.
func (s *Scheduler) exitPass(ctx context.Context, snap map[string]models.SymbolIndicators) {
	e := s.engine
	fcfg := e.deps.ConfigSrc.FilterConfig()
	protect := NewProtectiveExitManager(e.deps.ConfigSrc.ProtectConfig())

	for sym, m := range e.machines {
		ind, ok := snap[sym]
		if !ok {
			continue
		}
		if err := e.locks.TryLock(sym, e.cfg.SnapshotTimeout); err != nil {
			e.deps.Metrics.RecordError("symbol_busy")
			continue
		}
		if m.Status() == models.StatusInPosition {
			_ = m.HandleCycle(ctx, ind, fcfg, protect)
		}
		e.locks.Unlock(sym)
	}
	e.deps.Metrics.RecordOpenPositions(e.OpenPositionCount())
}

// entryPassOn runs the filter chain over idle symbols in the snapshot
// and drives allowed entries, respecting the global open-position cap.
// An optional advisor with enough confidence overrides the chain's
// verdict in either direction.
func (s *Scheduler) entryPassOn(ctx context.Context, snap map[string]models.SymbolIndicators) {
	e := s.engine
	fcfg := e.deps.ConfigSrc.FilterConfig()

	for sym, m := range e.machines {
		if e.OpenPositionCount() >= e.cfg.MaxOpenPositions {
			return
		}
		ind, ok := snap[sym]
		if !ok {
			continue
		}

		sig := EntrySignal(ind, fcfg)
		allowed := false
		reason := ""
		if sig != models.SignalNone {
			allowed, reason = e.filters.Evaluate(sym, ind, sig, fcfg)
		}

		if e.deps.Advisor != nil {
			advice, err := e.deps.Advisor.Advise(ctx, sym, ind)
			if err == nil && advice.Confidence >= e.cfg.AdvisorMinConf {
				switch advice.Signal {
				case models.SignalEnterLong, models.SignalEnterShort:
					sig = advice.Signal
					allowed = true
					reason = ""
				case models.SignalNone, models.SignalExit:
					allowed = false
					reason = "advisor_override"
				}
			}
		}

		if sig == models.SignalNone {
			continue
		}
		if !allowed {
			e.deps.Metrics.RecordDecision(sym, "entry_filtered", reason)
			continue
		}

		if err := e.locks.TryLock(sym, e.cfg.SnapshotTimeout); err != nil {
			e.deps.Metrics.RecordError("symbol_busy")
			continue
		}
		if m.Status() == models.StatusIdle {
			_ = m.HandleEntry(ctx, sig)
		}
		e.locks.Unlock(sym)
	}
	e.deps.Metrics.RecordOpenPositions(e.OpenPositionCount())
}
