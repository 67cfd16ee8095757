package models

// FilterConfig carries every threshold the decision layer reads. It is a
// value object: swapped whole on reload, never mutated field by field.
// Defaults and validation tags are applied by the config loader.
type FilterConfig struct {
	// RSI entry/exit bounds. Entry and exit thresholds are independently
	// configurable at both ends.
	RSIPeriod     int     `yaml:"rsi_period" default:"14" validate:"gt=1"`
	RSIEntryLong  float64 `yaml:"rsi_entry_long" default:"29" validate:"gte=0,lte=100"`
	RSIEntryShort float64 `yaml:"rsi_entry_short" default:"71" validate:"gte=0,lte=100"`
	RSIExitLong   float64 `yaml:"rsi_exit_long" default:"70" validate:"gte=0,lte=100"`
	RSIExitShort  float64 `yaml:"rsi_exit_short" default:"30" validate:"gte=0,lte=100"`

	// Trend filter.
	AvoidDownTrend bool `yaml:"avoid_downtrend" default:"true"`
	AvoidUpTrend   bool `yaml:"avoid_uptrend" default:"true"`

	// Maturity filter.
	RequireMaturity bool `yaml:"require_maturity" default:"true"`

	// Time-windowed RSI filter: the RSI must have crossed back through
	// the entry bound within the last TimeFilterCandles candles.
	TimeFilterCandles int `yaml:"time_filter_candles" default:"10" validate:"gte=0"`

	// Anti-pump/dump filter.
	AntiScamCandles     int     `yaml:"anti_scam_candles" default:"10" validate:"gte=0"`
	SingleCandlePercent float64 `yaml:"single_candle_percent" default:"8" validate:"gte=0"`
	MultiCandleCount    int     `yaml:"multi_candle_count" default:"3" validate:"gte=0"`
	MultiCandlePercent  float64 `yaml:"multi_candle_percent" default:"12" validate:"gte=0"`
}

// ProtectConfig carries the protective-exit thresholds, in percent.
type ProtectConfig struct {
	BreakEvenActivationPct float64 `yaml:"break_even_activation_pct" default:"2" validate:"gte=0"`
	BreakEvenTriggerPct    float64 `yaml:"break_even_trigger_pct" default:"0"`
	TrailingActivationPct  float64 `yaml:"trailing_activation_pct" default:"1.5" validate:"gte=0"`
	TrailingDistancePct    float64 `yaml:"trailing_distance_pct" default:"1" validate:"gt=0"`
}
