package engine

import (
	"math"

	"TradePulse/internal/domain/models"
)

// Filter chain denial reasons.
const (
	ReasonTrendFilter  = "trend_filter"
	ReasonMaturity     = "maturity_filter"
	ReasonTimeFilter   = "time_filter"
	ReasonAntiPumpDump = "anti_pump_dump"
)

// FilterChain gates entry signals. Evaluate is a pure function over its
// inputs: no I/O, no retained state, identical inputs give identical
// results. Filters run in a fixed order and short-circuit on first deny.
type FilterChain struct{}

// NewFilterChain creates the chain.
func NewFilterChain() *FilterChain { return &FilterChain{} }

// Evaluate returns (true, "") when the candidate entry is allowed, or
// (false, reason) naming the filter that denied it.
func (f *FilterChain) Evaluate(symbol string, ind models.SymbolIndicators, sig models.Signal, cfg models.FilterConfig) (bool, string) {
	side, ok := sig.SideFor()
	if !ok {
		return false, "not_an_entry_signal"
	}
	if !trendAllows(ind.Trend, side, cfg) {
		return false, ReasonTrendFilter
	}
	if cfg.RequireMaturity && !ind.IsMature {
		return false, ReasonMaturity
	}
	if !timeFilterAllows(ind.RecentCandles, side, cfg) {
		return false, ReasonTimeFilter
	}
	if !antiPumpDumpAllows(ind.RecentCandles, cfg) {
		return false, ReasonAntiPumpDump
	}
	return true, ""
}

func trendAllows(trend models.Trend, side models.Side, cfg models.FilterConfig) bool {
	if side == models.SideLong && cfg.AvoidDownTrend && trend == models.TrendDown {
		return false
	}
	if side == models.SideShort && cfg.AvoidUpTrend && trend == models.TrendUp {
		return false
	}
	return true
}

// timeFilterAllows rejects entries where the RSI has been pinned past
// its entry bound for the whole window: at least one candle inside the
// window must sit on the far side of the bound, proving the cross into
// the extreme happened recently enough to still mean something.
func timeFilterAllows(cs []models.Candle, side models.Side, cfg models.FilterConfig) bool {
	if cfg.TimeFilterCandles <= 0 {
		return true
	}
	series := RSISeries(cs, cfg.RSIPeriod)
	// drop warmup zeros
	start := cfg.RSIPeriod
	if start >= len(series) {
		return true // not enough history to judge; maturity filter owns that case
	}
	window := series[start:]
	if len(window) > cfg.TimeFilterCandles {
		window = window[len(window)-cfg.TimeFilterCandles:]
	}
	for _, v := range window {
		if side == models.SideLong && v >= cfg.RSIEntryLong {
			return true
		}
		if side == models.SideShort && v <= cfg.RSIEntryShort {
			return true
		}
	}
	return false
}

// antiPumpDumpAllows blocks entries into manipulated or illiquid price
// action: any single candle beyond SingleCandlePercent, or any run of
// MultiCandleCount consecutive candles whose moves sum beyond
// MultiCandlePercent, denies the entry.
func antiPumpDumpAllows(cs []models.Candle, cfg models.FilterConfig) bool {
	if cfg.AntiScamCandles <= 0 {
		return true
	}
	window := cs
	if len(window) > cfg.AntiScamCandles {
		window = window[len(window)-cfg.AntiScamCandles:]
	}
	moves := make([]float64, len(window))
	for i, c := range window {
		moves[i] = c.PercentMove()
		if cfg.SingleCandlePercent > 0 && math.Abs(moves[i]) > cfg.SingleCandlePercent {
			return false
		}
	}
	if cfg.MultiCandleCount > 1 && cfg.MultiCandlePercent > 0 {
		for i := 0; i+cfg.MultiCandleCount <= len(moves); i++ {
			sum := 0.0
			for _, m := range moves[i : i+cfg.MultiCandleCount] {
				sum += m
			}
			if math.Abs(sum) > cfg.MultiCandlePercent {
				return false
			}
		}
	}
	return true
}

// EntrySignal derives a candidate entry from the latest RSI reading:
// oversold suggests a long, overbought suggests a short. The filter
// chain still has to allow it.
func EntrySignal(ind models.SymbolIndicators, cfg models.FilterConfig) models.Signal {
	switch {
	case ind.RSI < cfg.RSIEntryLong:
		return models.SignalEnterLong
	case ind.RSI > cfg.RSIEntryShort:
		return models.SignalEnterShort
	default:
		return models.SignalNone
	}
}

// RSIExitTriggered reports whether the in-position RSI exit condition
// holds for the given side.
func RSIExitTriggered(side models.Side, rsi float64, cfg models.FilterConfig) bool {
	if side == models.SideLong {
		return rsi >= cfg.RSIExitLong
	}
	return rsi <= cfg.RSIExitShort
}
