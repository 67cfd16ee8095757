package repository

import (
	"context"
	"errors"
	"fmt"

	"TradePulse/internal/domain/models"
	"TradePulse/pkg/cache"
)

const positionKeyPrefix = "position:"

// CachePositionStore persists open positions in a cache.Service, one key per
// symbol. Backed by Redis in live mode or an in-memory cache in paper mode.
// Positions never expire; they are removed explicitly on close.
type CachePositionStore struct {
	cache cache.Service
}

// NewCachePositionStore wraps a cache service as a position store.
func NewCachePositionStore(c cache.Service) *CachePositionStore {
	return &CachePositionStore{cache: c}
}

// Save upserts the position under its symbol key.
func (s *CachePositionStore) Save(ctx context.Context, pos models.Position) error {
	if err := s.cache.Set(ctx, positionKeyPrefix+pos.Symbol, pos, 0); err != nil {
		return fmt.Errorf("save position %s: %w", pos.Symbol, err)
	}
	return nil
}

// Remove deletes the position for symbol. Removing a missing key is not an
// error.
func (s *CachePositionStore) Remove(ctx context.Context, symbol string) error {
	if err := s.cache.Delete(ctx, positionKeyPrefix+symbol); err != nil {
		return fmt.Errorf("remove position %s: %w", symbol, err)
	}
	return nil
}

// LoadAll returns every stored position. An empty result is a cold start.
func (s *CachePositionStore) LoadAll(ctx context.Context) ([]models.Position, error) {
	keys, err := s.cache.Keys(ctx, positionKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}

	positions := make([]models.Position, 0, len(keys))
	for _, key := range keys {
		var pos models.Position
		if err := s.cache.Get(ctx, key, &pos); err != nil {
			if errors.Is(err, cache.ErrCacheMiss) {
				continue
			}
			return nil, fmt.Errorf("load position %s: %w", key, err)
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

// Close releases the underlying cache connection.
func (s *CachePositionStore) Close() error {
	return s.cache.Close()
}
