package engine

import (
	"testing"
	"time"

	"TradePulse/internal/domain/models"
)

func indicatorsWith(symbol string, closes []float64) models.SymbolIndicators {
	cs := candlesFromCloses(symbol, closes)
	return models.SymbolIndicators{
		Symbol:        symbol,
		Price:         cs[len(cs)-1].Close,
		RecentCandles: cs,
		UpdatedAt:     time.Now(),
	}
}

func TestStoreSnapshotIsDeepCopy(t *testing.T) {
	s := NewIndicatorStore(50)
	s.Update("BTCUSDT", indicatorsWith("BTCUSDT", flatCloses(10, 100)))

	snap := s.Snapshot()
	si := snap["BTCUSDT"]
	if len(si.RecentCandles) != 10 {
		t.Fatalf("expected 10 candles, got %d", len(si.RecentCandles))
	}
	si.RecentCandles[0].Close = -1

	fresh, ok := s.Get("BTCUSDT")
	if !ok {
		t.Fatalf("expected symbol present")
	}
	if fresh.RecentCandles[0].Close == -1 {
		t.Fatalf("snapshot mutation leaked into store")
	}
}

func TestStoreUpdateAppendsOnlyNewerBars(t *testing.T) {
	s := NewIndicatorStore(50)
	first := indicatorsWith("ETHUSDT", flatCloses(10, 100))
	s.Update("ETHUSDT", first)

	// second view overlaps the first 10 bars and adds 2 newer ones
	second := indicatorsWith("ETHUSDT", flatCloses(12, 100))
	s.Update("ETHUSDT", second)

	got, _ := s.Get("ETHUSDT")
	if len(got.RecentCandles) != 12 {
		t.Fatalf("expected 12 candles after merge, got %d", len(got.RecentCandles))
	}
	for i := 1; i < len(got.RecentCandles); i++ {
		if !got.RecentCandles[i].Bucket.After(got.RecentCandles[i-1].Bucket) {
			t.Fatalf("buckets not strictly increasing at %d", i)
		}
	}
}

func TestStoreWindowNeverShrinks(t *testing.T) {
	s := NewIndicatorStore(50)
	s.Update("SOLUSDT", indicatorsWith("SOLUSDT", flatCloses(20, 100)))
	before, _ := s.Get("SOLUSDT")

	// a refresh that somehow fetched fewer bars must not shorten the window
	s.Update("SOLUSDT", indicatorsWith("SOLUSDT", flatCloses(5, 100)))
	after, _ := s.Get("SOLUSDT")

	if len(after.RecentCandles) < len(before.RecentCandles) {
		t.Fatalf("window shrank from %d to %d", len(before.RecentCandles), len(after.RecentCandles))
	}
}

func TestStoreTrimsToCapacity(t *testing.T) {
	s := NewIndicatorStore(8)
	s.Update("BTCUSDT", indicatorsWith("BTCUSDT", flatCloses(20, 100)))
	got, _ := s.Get("BTCUSDT")
	if len(got.RecentCandles) != 8 {
		t.Fatalf("expected window trimmed to 8, got %d", len(got.RecentCandles))
	}
	// the newest bars survive the trim
	want := testStart.Add(19 * 5 * time.Minute)
	if !got.RecentCandles[7].Bucket.Equal(want) {
		t.Fatalf("expected newest bucket %v, got %v", want, got.RecentCandles[7].Bucket)
	}
}

func TestStoreTrySnapshotTimesOutUnderWriteLock(t *testing.T) {
	s := NewIndicatorStore(50)
	s.Update("BTCUSDT", indicatorsWith("BTCUSDT", flatCloses(5, 100)))

	s.mu.Lock()
	_, err := s.TrySnapshot(20 * time.Millisecond)
	s.mu.Unlock()
	if err != ErrBusy {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	if _, err := s.TrySnapshot(20 * time.Millisecond); err != nil {
		t.Fatalf("expected snapshot after unlock, got %v", err)
	}
}
