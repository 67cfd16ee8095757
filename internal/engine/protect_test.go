package engine

import (
	"testing"

	"TradePulse/internal/domain/models"
)

func testProtectConfig() models.ProtectConfig {
	return models.ProtectConfig{
		BreakEvenActivationPct: 2,
		BreakEvenTriggerPct:    0,
		TrailingActivationPct:  1.5,
		TrailingDistancePct:    1,
	}
}

func longPosition(entry float64) *models.Position {
	return &models.Position{
		Symbol:      "BTCUSDT",
		Side:        models.SideLong,
		EntryPrice:  entry,
		EntryQty:    1,
		OpenedByBot: true,
	}
}

func TestProtectMaxProfitIsMonotone(t *testing.T) {
	m := NewProtectiveExitManager(testProtectConfig())
	pos := longPosition(100)

	m.Update(pos, 101) // +1%
	if pos.MaxProfitPct != 1 {
		t.Fatalf("expected peak 1, got %v", pos.MaxProfitPct)
	}
	m.Update(pos, 100.5) // retrace
	if pos.MaxProfitPct != 1 {
		t.Fatalf("peak must not decrease, got %v", pos.MaxProfitPct)
	}
	m.Update(pos, 103) // +3%
	if pos.MaxProfitPct != 3 {
		t.Fatalf("expected peak 3, got %v", pos.MaxProfitPct)
	}
}

func TestProtectBreakEvenArmAndFire(t *testing.T) {
	m := NewProtectiveExitManager(testProtectConfig())
	pos := longPosition(100)

	if got := m.Update(pos, 101); got != models.ExitNone {
		t.Fatalf("below activation: expected none, got %s", got)
	}
	if pos.BreakEvenArmed {
		t.Fatalf("should not be armed below activation")
	}

	if got := m.Update(pos, 102); got != models.ExitNone {
		t.Fatalf("arming tick: expected none, got %s", got)
	}
	if !pos.BreakEvenArmed {
		t.Fatalf("expected armed at +2%%")
	}

	if got := m.Update(pos, 101.5); got != models.ExitNone {
		t.Fatalf("still in profit: expected none, got %s", got)
	}
	if got := m.Update(pos, 100); got != models.ExitBreakEven {
		t.Fatalf("profit back at trigger: expected break_even, got %s", got)
	}
}

func TestProtectBreakEvenNeverDisarms(t *testing.T) {
	m := NewProtectiveExitManager(testProtectConfig())
	pos := longPosition(100)

	m.Update(pos, 102)   // arm
	m.Update(pos, 101.4) // retrace but still positive
	if !pos.BreakEvenArmed {
		t.Fatalf("armed flag must persist")
	}
	if got := m.Update(pos, 99.9); got != models.ExitBreakEven {
		t.Fatalf("expected break_even after falling through trigger, got %s", got)
	}
}

func TestProtectTrailingStop(t *testing.T) {
	cfg := testProtectConfig()
	cfg.BreakEvenActivationPct = 100 // keep break-even out of the way
	m := NewProtectiveExitManager(cfg)
	pos := longPosition(100)

	if got := m.Update(pos, 103); got != models.ExitNone {
		t.Fatalf("rising to peak: expected none, got %s", got)
	}
	if got := m.Update(pos, 102.5); got != models.ExitNone {
		t.Fatalf("retrace inside distance: expected none, got %s", got)
	}
	if got := m.Update(pos, 102); got != models.ExitTrailingStop {
		t.Fatalf("retrace of full distance from peak: expected trailing_stop, got %s", got)
	}
}

func TestProtectTrailingNotActiveBelowActivation(t *testing.T) {
	cfg := testProtectConfig()
	cfg.BreakEvenActivationPct = 100
	m := NewProtectiveExitManager(cfg)
	pos := longPosition(100)

	m.Update(pos, 101) // peak +1%, below trailing activation
	if got := m.Update(pos, 99); got != models.ExitNone {
		t.Fatalf("peak below activation: expected none, got %s", got)
	}
}

func TestProtectShortSide(t *testing.T) {
	m := NewProtectiveExitManager(testProtectConfig())
	pos := &models.Position{
		Symbol:      "BTCUSDT",
		Side:        models.SideShort,
		EntryPrice:  100,
		EntryQty:    1,
		OpenedByBot: true,
	}

	// price falling is profit for a short
	m.Update(pos, 98)
	if pos.MaxProfitPct != 2 {
		t.Fatalf("expected peak 2 on short, got %v", pos.MaxProfitPct)
	}
	if !pos.BreakEvenArmed {
		t.Fatalf("short should arm at +2%%")
	}
	if got := m.Update(pos, 100); got != models.ExitBreakEven {
		t.Fatalf("short back at entry: expected break_even, got %s", got)
	}
}
