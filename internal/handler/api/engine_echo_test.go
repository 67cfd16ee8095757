package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"TradePulse/internal/domain/models"
	"TradePulse/internal/engine"
	internalrepo "TradePulse/internal/repository"
	"TradePulse/pkg/cache"
	applogger "TradePulse/pkg/logger"
)

type stubExchange struct{}

func (stubExchange) GetPositions(ctx context.Context, symbol string) ([]models.LivePosition, error) {
	return nil, nil
}
func (stubExchange) SubmitOrder(ctx context.Context, symbol string, side models.Side, qty float64) (models.OrderResult, error) {
	return models.OrderResult{}, nil
}
func (stubExchange) ClosePosition(ctx context.Context, symbol string, side models.Side) error {
	return nil
}

type stubSource struct{}

func (stubSource) FetchCandles(ctx context.Context, symbol, timeframe string, lookback int) ([]models.Candle, error) {
	return nil, nil
}

type stubMetrics struct{}

func (stubMetrics) RecordDecision(symbol, outcome, reason string)     {}
func (stubMetrics) RecordTransition(symbol, from, to string)          {}
func (stubMetrics) RecordOpenPositions(n int)                         {}
func (stubMetrics) RecordLastPrice(symbol string, price float64)      {}
func (stubMetrics) RecordCycleDuration(stage string, d time.Duration) {}
func (stubMetrics) RecordError(kind string)                           {}

func testHandler() *EngineEchoHandler {
	eng := engine.New(engine.Config{
		Symbols:  []string{"BTCUSDT"},
		OrderQty: 1,
	}, engine.Deps{
		Exchange:  stubExchange{},
		Source:    stubSource{},
		ConfigSrc: engine.NewConfigHolder(models.FilterConfig{RSIPeriod: 14, RSIEntryLong: 29, RSIEntryShort: 71}, models.ProtectConfig{TrailingDistancePct: 1}),
		History:   internalrepo.NopHistorySink{},
		PosStore:  internalrepo.NewCachePositionStore(cache.NewMemoryCache()),
		Metrics:   stubMetrics{},
		Logger:    applogger.Nop(),
	})
	eng.Store().Update("BTCUSDT", models.SymbolIndicators{
		Symbol: "BTCUSDT", Price: 64000, RSI: 42, Trend: models.TrendNeutral, UpdatedAt: time.Now(),
	})
	return NewEngineEchoHandler(applogger.Nop(), eng)
}

func doRequest(t *testing.T, h *EngineEchoHandler, path string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestStatusEndpoint(t *testing.T) {
	rec := doRequest(t, testHandler(), "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data engine.Status `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Symbols != 1 || resp.Data.OpenPositions != 0 {
		t.Fatalf("unexpected status %+v", resp.Data)
	}
}

func TestIndicatorsEndpoint(t *testing.T) {
	rec := doRequest(t, testHandler(), "/api/indicators/BTCUSDT")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data models.SymbolIndicators `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.RSI != 42 || resp.Data.Price != 64000 {
		t.Fatalf("unexpected indicators %+v", resp.Data)
	}
}

func TestIndicatorsEndpointUnknownSymbol(t *testing.T) {
	rec := doRequest(t, testHandler(), "/api/indicators/DOGEUSDT")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPositionsEndpointEmpty(t *testing.T) {
	rec := doRequest(t, testHandler(), "/api/positions")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data []engine.PositionView `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 0 {
		t.Fatalf("expected no positions, got %+v", resp.Data)
	}
}
