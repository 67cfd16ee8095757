package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"TradePulse/internal/domain/models"
)

func TestFetchCandlesDropsFormingBar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v5/market/kline" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("interval"); got != "5" {
			t.Errorf("expected interval 5, got %s", got)
		}
		// newest first; the head bar is still forming
		fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"list":[
			["1748700600000","103","104","102","103.5","10","1000"],
			["1748700300000","102","103","101","103","12","1200"],
			["1748700000000","100","102","99","102","15","1500"]
		]}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "")
	candles, err := c.FetchCandles(context.Background(), "BTCUSDT", "5m", 2)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("expected 2 closed bars, got %d", len(candles))
	}
	if !candles[0].Bucket.Before(candles[1].Bucket) {
		t.Fatalf("candles must be ascending")
	}
	if candles[1].Close != 103 {
		t.Fatalf("newest closed bar should close at 103, got %v", candles[1].Close)
	}
}

func TestGetPositionsFiltersZeroSize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-BAPI-API-KEY") != "key" {
			t.Errorf("expected signed request")
		}
		if r.Header.Get("X-BAPI-SIGN") == "" {
			t.Errorf("expected signature header")
		}
		fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"list":[
			{"symbol":"BTCUSDT","side":"Buy","size":"0.5","createdTime":"1748700000000"},
			{"symbol":"BTCUSDT","side":"Sell","size":"0","createdTime":"0"}
		]}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret")
	live, err := c.GetPositions(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if len(live) != 1 {
		t.Fatalf("expected zero-size entries filtered, got %d", len(live))
	}
	if live[0].Side != models.SideLong || live[0].Size != 0.5 {
		t.Fatalf("unexpected position %+v", live[0])
	}
}

func TestSubmitOrderWaitsForFill(t *testing.T) {
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v5/order/create":
			var body map[string]string
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("decode body: %v", err)
			}
			if body["side"] != "Buy" || body["orderType"] != "Market" {
				t.Errorf("unexpected order body %v", body)
			}
			fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"orderId":"abc-1"}}`)
		case "/v5/order/realtime":
			polls++
			status := "New"
			if polls >= 2 {
				status = "Filled"
			}
			fmt.Fprintf(w, `{"retCode":0,"retMsg":"OK","result":{"list":[
				{"orderId":"abc-1","orderStatus":"%s","avgPrice":"64100.5","updatedTime":"1748700000000"}
			]}}`, status)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret")
	c.pollInterval = time.Millisecond
	res, err := c.SubmitOrder(context.Background(), "BTCUSDT", models.SideLong, 0.01)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.OrderID != "abc-1" || res.FillPrice != 64100.5 {
		t.Fatalf("unexpected result %+v", res)
	}
	if polls < 2 {
		t.Fatalf("expected the client to poll until filled, polls=%d", polls)
	}
}

func TestSubmitOrderRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v5/order/create":
			fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"orderId":"abc-2"}}`)
		case "/v5/order/realtime":
			fmt.Fprint(w, `{"retCode":0,"retMsg":"OK","result":{"list":[
				{"orderId":"abc-2","orderStatus":"Rejected","avgPrice":"0","updatedTime":"0"}
			]}}`)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "secret")
	c.pollInterval = time.Millisecond
	if _, err := c.SubmitOrder(context.Background(), "BTCUSDT", models.SideLong, 0.01); err == nil {
		t.Fatalf("expected error for rejected order")
	}
}

func TestAPIErrorSurfacesRetMsg(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"retCode":10001,"retMsg":"params error"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "")
	_, err := c.FetchCandles(context.Background(), "BTCUSDT", "5m", 10)
	if err == nil {
		t.Fatalf("expected retCode error")
	}
}

func TestIntervalFromTimeframe(t *testing.T) {
	if got, err := intervalFromTimeframe("1h"); err != nil || got != "60" {
		t.Fatalf("1h: got %s err %v", got, err)
	}
	if _, err := intervalFromTimeframe("7m"); err == nil {
		t.Fatalf("expected error for unsupported timeframe")
	}
}
