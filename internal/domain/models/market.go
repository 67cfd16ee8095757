package models

import "time"

// Trend is a coarse direction classification derived from EMA relationships.
type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

// Candle represents one OHLCV bar.
type Candle struct {
	Bucket time.Time `json:"bucket"`
	Symbol string    `json:"symbol"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PercentMove returns the close-over-open move of the candle in percent.
func (c Candle) PercentMove() float64 {
	if c.Open == 0 {
		return 0
	}
	return (c.Close - c.Open) / c.Open * 100
}

// SymbolIndicators is the per-symbol view the decision layer works from.
// Instances handed out via snapshots are copies; RecentCandles in a
// snapshot must never alias the live store's slice.
type SymbolIndicators struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	RSI           float64   `json:"rsi"`
	Trend         Trend     `json:"trend"`
	RecentCandles []Candle  `json:"recent_candles,omitempty"`
	IsMature      bool      `json:"is_mature"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Clone returns a deep copy with its own candle slice.
func (si SymbolIndicators) Clone() SymbolIndicators {
	out := si
	if len(si.RecentCandles) > 0 {
		out.RecentCandles = make([]Candle, len(si.RecentCandles))
		copy(out.RecentCandles, si.RecentCandles)
	}
	return out
}
