package engine

import (
	"sync/atomic"

	"TradePulse/internal/domain/models"
)

// ConfigBundle pairs the filter and protect configs that must change
// together.
type ConfigBundle struct {
	Filter  models.FilterConfig
	Protect models.ProtectConfig
}

// ConfigHolder is an atomically swappable ConfigSource. Readers always
// see a complete bundle, never a half-updated one; reloads install a
// whole new bundle with Swap.
type ConfigHolder struct {
	p atomic.Pointer[ConfigBundle]
}

// NewConfigHolder creates a holder with the initial bundle.
func NewConfigHolder(filter models.FilterConfig, protect models.ProtectConfig) *ConfigHolder {
	h := &ConfigHolder{}
	h.p.Store(&ConfigBundle{Filter: filter, Protect: protect})
	return h
}

// Swap atomically installs a new bundle.
func (h *ConfigHolder) Swap(bundle ConfigBundle) {
	b := bundle
	h.p.Store(&b)
}

// FilterConfig returns the current filter config by value.
func (h *ConfigHolder) FilterConfig() models.FilterConfig {
	return h.p.Load().Filter
}

// ProtectConfig returns the current protect config by value.
func (h *ConfigHolder) ProtectConfig() models.ProtectConfig {
	return h.p.Load().Protect
}
