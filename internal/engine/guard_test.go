package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"TradePulse/internal/domain/models"
	applogger "TradePulse/pkg/logger"
)

func testGuard(exch *fakeExchange) *ReconciliationGuard {
	return NewReconciliationGuard(exch, applogger.Nop(), &recordingMetrics{}, 10*time.Second, time.Second)
}

func TestGuardCanOpenCleanSymbol(t *testing.T) {
	g := testGuard(&fakeExchange{})
	ok, reason := g.CanOpen(context.Background(), "BTCUSDT")
	if !ok {
		t.Fatalf("expected open allowed, got %s", reason)
	}
}

func TestGuardCanOpenDeniesOnLivePosition(t *testing.T) {
	exch := &fakeExchange{}
	exch.setLive([]models.LivePosition{{Symbol: "BTCUSDT", Side: models.SideLong, Size: 0.5, CreatedTime: time.Now()}}, nil)
	g := testGuard(exch)

	ok, reason := g.CanOpen(context.Background(), "BTCUSDT")
	if ok || reason != ReasonLivePosition {
		t.Fatalf("expected %s, got ok=%v reason=%s", ReasonLivePosition, ok, reason)
	}
}

func TestGuardCanOpenFailsClosedOnQueryError(t *testing.T) {
	exch := &fakeExchange{}
	exch.setLive(nil, errors.New("connection reset"))
	g := testGuard(exch)

	ok, reason := g.CanOpen(context.Background(), "BTCUSDT")
	if ok || reason != ReasonQueryFailed {
		t.Fatalf("query failure must deny: got ok=%v reason=%s", ok, reason)
	}
}

func TestGuardCanCloseMatchingPosition(t *testing.T) {
	entered := time.Now().Add(-time.Hour)
	exch := &fakeExchange{}
	exch.setLive([]models.LivePosition{{
		Symbol: "BTCUSDT", Side: models.SideLong, Size: 1,
		CreatedTime: entered.Add(3 * time.Second),
	}}, nil)
	g := testGuard(exch)

	pos := &models.Position{Symbol: "BTCUSDT", Side: models.SideLong, EntryTimestamp: entered, OpenedByBot: true}
	ok, reason := g.CanClose(context.Background(), pos)
	if !ok {
		t.Fatalf("expected close allowed, got %s", reason)
	}
}

func TestGuardCanCloseDeniesNotBotOwned(t *testing.T) {
	g := testGuard(&fakeExchange{})
	pos := &models.Position{Symbol: "BTCUSDT", Side: models.SideLong, OpenedByBot: false}
	if ok, reason := g.CanClose(context.Background(), pos); ok || reason != ReasonNotBotOwned {
		t.Fatalf("expected %s, got ok=%v reason=%s", ReasonNotBotOwned, ok, reason)
	}
}

func TestGuardCanCloseDeniesSideMismatch(t *testing.T) {
	entered := time.Now()
	exch := &fakeExchange{}
	exch.setLive([]models.LivePosition{{
		Symbol: "BTCUSDT", Side: models.SideShort, Size: 1, CreatedTime: entered,
	}}, nil)
	g := testGuard(exch)

	pos := &models.Position{Symbol: "BTCUSDT", Side: models.SideLong, EntryTimestamp: entered, OpenedByBot: true}
	if ok, reason := g.CanClose(context.Background(), pos); ok || reason != ReasonNoMatch {
		t.Fatalf("expected %s, got ok=%v reason=%s", ReasonNoMatch, ok, reason)
	}
}

func TestGuardCanCloseDeniesCreatedTimeMismatch(t *testing.T) {
	entered := time.Now().Add(-time.Hour)
	exch := &fakeExchange{}
	// same side, but opened a minute away from our entry: someone else's
	exch.setLive([]models.LivePosition{{
		Symbol: "BTCUSDT", Side: models.SideLong, Size: 1,
		CreatedTime: entered.Add(time.Minute),
	}}, nil)
	g := testGuard(exch)

	pos := &models.Position{Symbol: "BTCUSDT", Side: models.SideLong, EntryTimestamp: entered, OpenedByBot: true}
	if ok, reason := g.CanClose(context.Background(), pos); ok || reason != ReasonTimeMismatch {
		t.Fatalf("expected %s, got ok=%v reason=%s", ReasonTimeMismatch, ok, reason)
	}
}

func TestGuardCanCloseFailsClosedOnQueryError(t *testing.T) {
	exch := &fakeExchange{}
	exch.setLive(nil, errors.New("timeout"))
	g := testGuard(exch)

	pos := &models.Position{Symbol: "BTCUSDT", Side: models.SideLong, OpenedByBot: true}
	if ok, reason := g.CanClose(context.Background(), pos); ok || reason != ReasonQueryFailed {
		t.Fatalf("query failure must deny: got ok=%v reason=%s", ok, reason)
	}
}
