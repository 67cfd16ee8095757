package paper

import (
	"context"
	"testing"
	"time"

	"TradePulse/internal/domain/models"
)

func TestExchangeFillAndClose(t *testing.T) {
	ctx := context.Background()
	e := NewExchange()
	e.SetMark("BTCUSDT", 64000)

	res, err := e.SubmitOrder(ctx, "BTCUSDT", models.SideLong, 0.5)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.FillPrice != 64000 || res.OrderID == "" {
		t.Fatalf("unexpected fill %+v", res)
	}

	live, err := e.GetPositions(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if len(live) != 1 || live[0].Size != 0.5 || live[0].Side != models.SideLong {
		t.Fatalf("unexpected live position %+v", live)
	}

	if err := e.ClosePosition(ctx, "BTCUSDT", models.SideLong); err != nil {
		t.Fatalf("close: %v", err)
	}
	live, _ = e.GetPositions(ctx, "BTCUSDT")
	if len(live) != 0 {
		t.Fatalf("expected flat after close, got %+v", live)
	}
}

func TestExchangeRejectsWithoutMark(t *testing.T) {
	e := NewExchange()
	if _, err := e.SubmitOrder(context.Background(), "BTCUSDT", models.SideLong, 1); err == nil {
		t.Fatalf("expected error without mark price")
	}
}

func TestExchangeRejectsDoubleOpen(t *testing.T) {
	ctx := context.Background()
	e := NewExchange()
	e.SetMark("BTCUSDT", 64000)

	if _, err := e.SubmitOrder(ctx, "BTCUSDT", models.SideLong, 1); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := e.SubmitOrder(ctx, "BTCUSDT", models.SideShort, 1); err == nil {
		t.Fatalf("expected error on second open for same symbol")
	}
}

func TestExchangeCloseSideMismatch(t *testing.T) {
	ctx := context.Background()
	e := NewExchange()
	e.SetMark("BTCUSDT", 64000)

	if _, err := e.SubmitOrder(ctx, "BTCUSDT", models.SideLong, 1); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := e.ClosePosition(ctx, "BTCUSDT", models.SideShort); err == nil {
		t.Fatalf("expected side mismatch error")
	}
}

func TestSourceExtendsConsistentSeries(t *testing.T) {
	ctx := context.Background()
	src := NewSource(5 * time.Minute)

	first, err := src.FetchCandles(ctx, "BTCUSDT", "5m", 50)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(first) != 50 {
		t.Fatalf("expected 50 candles, got %d", len(first))
	}
	for i := 1; i < len(first); i++ {
		if !first[i].Bucket.After(first[i-1].Bucket) {
			t.Fatalf("buckets not increasing at %d", i)
		}
		if first[i].Open != first[i-1].Close {
			t.Fatalf("candle %d does not open at previous close", i)
		}
	}

	// the walk continues from where it left off
	second, err := src.FetchCandles(ctx, "BTCUSDT", "5m", 10)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if second[0].Open != first[len(first)-1].Close {
		t.Fatalf("walk restarted instead of continuing")
	}
}

func TestSourceMarkSinkFeedsExchange(t *testing.T) {
	ctx := context.Background()
	e := NewExchange()
	src := NewSource(5*time.Minute, WithMarkSink(e.SetMark))

	candles, err := src.FetchCandles(ctx, "BTCUSDT", "5m", 30)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	res, err := e.SubmitOrder(ctx, "BTCUSDT", models.SideLong, 1)
	if err != nil {
		t.Fatalf("submit after fetch: %v", err)
	}
	if res.FillPrice != candles[len(candles)-1].Close {
		t.Fatalf("fill %v does not track latest close %v", res.FillPrice, candles[len(candles)-1].Close)
	}
}
