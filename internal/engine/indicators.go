package engine

import (
	"TradePulse/internal/domain/models"
)

// RSISeries returns the n-period Relative Strength Index over the candle
// closes using Wilder's smoothing, aligned to the input. Indices before
// the first full window are zero.
func RSISeries(cs []models.Candle, n int) []float64 {
	out := make([]float64, len(cs))
	if n <= 0 || len(cs) == 0 {
		return out
	}
	var gain, loss float64
	for i := 1; i < len(cs); i++ {
		d := cs[i].Close - cs[i-1].Close
		if i <= n {
			if d > 0 {
				gain += d
			} else {
				loss -= d
			}
			if i == n {
				gain /= float64(n)
				loss /= float64(n)
				out[i] = rsiValue(gain, loss)
			}
		} else {
			// Wilder smoothing
			if d > 0 {
				gain = (gain*float64(n-1) + d) / float64(n)
				loss = (loss * float64(n-1)) / float64(n)
			} else {
				gain = (gain * float64(n-1)) / float64(n)
				loss = (loss*float64(n-1) - d) / float64(n)
			}
			out[i] = rsiValue(gain, loss)
		}
	}
	return out
}

// rsiValue converts smoothed average gain/loss to the RSI reading. A
// zero average loss means every move was up, which is RSI 100.
func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

// LatestRSI returns the most recent RSI value, or 50 (neutral) when the
// history is too short to compute one.
func LatestRSI(cs []models.Candle, n int) float64 {
	if len(cs) < n+1 {
		return 50.0
	}
	series := RSISeries(cs, n)
	return series[len(series)-1]
}

// EMASeries returns the n-period exponential moving average of the
// closes, aligned to the input. The first value seeds the average.
func EMASeries(cs []models.Candle, n int) []float64 {
	out := make([]float64, len(cs))
	if n <= 0 || len(cs) == 0 {
		return out
	}
	k := 2.0 / (float64(n) + 1.0)
	out[0] = cs[0].Close
	for i := 1; i < len(cs); i++ {
		out[i] = cs[i].Close*k + out[i-1]*(1.0-k)
	}
	return out
}

// TrendFrom classifies direction from the relative position and slope of
// a fast and a slow EMA. Fast above slow with a rising fast EMA is up,
// the mirror is down, anything else is neutral.
func TrendFrom(cs []models.Candle, fast, slow int) models.Trend {
	if len(cs) < 2 || fast <= 0 || slow <= 0 {
		return models.TrendNeutral
	}
	fastEMA := EMASeries(cs, fast)
	slowEMA := EMASeries(cs, slow)
	i := len(cs) - 1
	slopeUp := fastEMA[i] > fastEMA[i-1]
	slopeDown := fastEMA[i] < fastEMA[i-1]
	switch {
	case fastEMA[i] > slowEMA[i] && slopeUp:
		return models.TrendUp
	case fastEMA[i] < slowEMA[i] && slopeDown:
		return models.TrendDown
	default:
		return models.TrendNeutral
	}
}
