package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coinpulse/conf"
)

func newTestClient(url string) *BinanceClient {
	c := NewBinanceClient(conf.ExchangeConfig{BaseURL: url, Timeout: conf.Duration(2 * time.Second)})
	c.retryDelay = time.Millisecond
	return c
}

func TestGetKlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("symbol = %q, want BTCUSDT", got)
		}
		w.Write([]byte(`[
			[1700000000000,"34000.1","34100.5","33900.0","34050.2","120.5",1700000899999,"4100000",1000,"60","2050000","0"],
			[1700000900000,"34050.2","34200.0","34000.0","34150.0","98.1",1700001799999,"3350000",900,"49","1675000","0"]
		]`))
	}))
	defer srv.Close()

	klines, err := newTestClient(srv.URL).GetKlines(context.Background(), "BTC/USDT", "15m", 2)
	if err != nil {
		t.Fatalf("GetKlines: %v", err)
	}
	if len(klines) != 2 {
		t.Fatalf("got %d klines, want 2", len(klines))
	}
	first := klines[0]
	if first.Open != 34000.1 || first.High != 34100.5 || first.Low != 33900.0 || first.Close != 34050.2 || first.Volume != 120.5 {
		t.Errorf("unexpected first kline: %+v", first)
	}
	if !first.Timestamp.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("unexpected timestamp: %v", first.Timestamp)
	}
	if !klines[1].Timestamp.After(first.Timestamp) {
		t.Error("klines not in ascending order")
	}
}

func TestGetKlinesEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetKlines(context.Background(), "DEADUSDT", "15m", 10)
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestGetKlinesTruncatedRow(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"two columns", `[[1700000000000,"1.0"]]`},
		{"seven columns", `[[1700000000000,"1.0","2.0","0.5","1.5","10",1700000899999]]`},
		{"eleven columns", `[[1700000000000,"1","2","0.5","1.5","10",1700000899999,"15",5,"5","7.5"]]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).GetKlines(context.Background(), "BTCUSDT", "15m", 1)
			if err == nil {
				t.Fatal("expected error for truncated row")
			}
		})
	}
}

func TestGetKlinesRetriesOnServerError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[[1700000000000,"1","2","0.5","1.5","10",1700000899999,"15",5,"5","7.5","0"]]`))
	}))
	defer srv.Close()

	klines, err := newTestClient(srv.URL).GetKlines(context.Background(), "BTCUSDT", "1h", 1)
	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
	if len(klines) != 1 || klines[0].Close != 1.5 {
		t.Errorf("unexpected klines: %+v", klines)
	}
}

func TestGetTicker24h(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/24hr" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"symbol":"ETHUSDT","lastPrice":"1800.5","priceChangePercent":"-2.35","volume":"50000","quoteVolume":"90000000"}`))
	}))
	defer srv.Close()

	ticker, err := newTestClient(srv.URL).GetTicker24h(context.Background(), "ETHUSDT")
	if err != nil {
		t.Fatalf("GetTicker24h: %v", err)
	}
	if ticker.LastPrice != 1800.5 || ticker.PriceChangePercent != -2.35 {
		t.Errorf("unexpected ticker: %+v", ticker)
	}
}
