package engine

import (
	"sync"
	"time"

	"TradePulse/internal/domain/models"
)

// IndicatorStore is the shared symbol -> indicators cache. Scheduler
// workers write disjoint symbols concurrently; decision passes read one
// consistent Snapshot per scan and iterate the copy lock-free. Nothing
// ever iterates the live map.
type IndicatorStore struct {
	mu       sync.RWMutex
	data     map[string]models.SymbolIndicators
	capacity int
}

// NewIndicatorStore creates a store whose per-symbol candle windows hold
// at most capacity bars.
func NewIndicatorStore(capacity int) *IndicatorStore {
	if capacity < 1 {
		capacity = 200
	}
	return &IndicatorStore{
		data:     make(map[string]models.SymbolIndicators),
		capacity: capacity,
	}
}

// Update merges a refreshed view of one symbol into the store. Candles
// are append-only: bars already held are kept, only strictly newer bars
// from the incoming view are appended, and the window is trimmed to
// capacity from the front. A snapshot taken after an Update therefore
// never shows a shorter window than one taken before, up to capacity.
func (s *IndicatorStore) Update(symbol string, in models.SymbolIndicators) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.data[symbol]
	if !ok {
		next := in.Clone()
		next.Symbol = symbol
		next.RecentCandles = trimWindow(next.RecentCandles, s.capacity)
		s.data[symbol] = next
		return
	}

	merged := cur.RecentCandles
	var lastBucket time.Time
	if n := len(merged); n > 0 {
		lastBucket = merged[n-1].Bucket
	}
	for _, c := range in.RecentCandles {
		if c.Bucket.After(lastBucket) {
			merged = append(merged, c)
			lastBucket = c.Bucket
		}
	}

	next := in
	next.Symbol = symbol
	next.RecentCandles = trimWindow(merged, s.capacity)
	s.data[symbol] = next
}

// Get returns a copy of one symbol's indicators.
func (s *IndicatorStore) Get(symbol string) (models.SymbolIndicators, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	si, ok := s.data[symbol]
	if !ok {
		return models.SymbolIndicators{}, false
	}
	return si.Clone(), true
}

// Snapshot returns a deep copy of the whole store. The result is owned
// by the caller and never mutated by subsequent Updates.
func (s *IndicatorStore) Snapshot() map[string]models.SymbolIndicators {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.SymbolIndicators, len(s.data))
	for k, v := range s.data {
		out[k] = v.Clone()
	}
	return out
}

// TrySnapshot is Snapshot with a bounded read-lock acquisition. It
// returns ErrBusy when the lock cannot be taken within timeout, so a
// slow refresh cycle degrades to backpressure instead of a stall.
func (s *IndicatorStore) TrySnapshot(timeout time.Duration) (map[string]models.SymbolIndicators, error) {
	deadline := time.Now().Add(timeout)
	for {
		if s.mu.TryRLock() {
			out := make(map[string]models.SymbolIndicators, len(s.data))
			for k, v := range s.data {
				out[k] = v.Clone()
			}
			s.mu.RUnlock()
			return out, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrBusy
		}
		time.Sleep(time.Millisecond)
	}
}

// Len returns the number of tracked symbols.
func (s *IndicatorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

func trimWindow(cs []models.Candle, capacity int) []models.Candle {
	if len(cs) <= capacity {
		return cs
	}
	trimmed := make([]models.Candle, capacity)
	copy(trimmed, cs[len(cs)-capacity:])
	return trimmed
}
