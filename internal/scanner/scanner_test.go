package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"coinpulse/conf"
	"coinpulse/internal/alert"
	"coinpulse/internal/model"
	"coinpulse/internal/scoring"
	"coinpulse/internal/tracker"
)

// fakeMarket 按interval返回预置K线，测试时可整体替换数据
type fakeMarket struct {
	mu     sync.Mutex
	klines map[string][]model.Kline
}

func (f *fakeMarket) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]model.Kline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.klines[interval], nil
}

func (f *fakeMarket) GetTicker24h(ctx context.Context, symbol string) (model.Ticker24h, error) {
	return model.Ticker24h{Symbol: symbol, LastPrice: 100, PriceChangePercent: 1.5, QuoteVolume: 1e6}, nil
}

func (f *fakeMarket) set(interval string, klines []model.Kline) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.klines[interval] = klines
}

type captureAlerter struct {
	mu     sync.Mutex
	events []*model.AlertEvent
}

func (c *captureAlerter) Dispatch(ctx context.Context, event *model.AlertEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureAlerter) byKind(kind model.AlertKind) []*model.AlertEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*model.AlertEvent
	for _, e := range c.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func series(closes []float64, volumes []float64) []model.Kline {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	klines := make([]model.Kline, len(closes))
	for i, c := range closes {
		vol := 100.0
		if volumes != nil {
			vol = volumes[i]
		}
		klines[i] = model.Kline{
			Timestamp: base.Add(time.Duration(i) * 15 * time.Minute),
			Open:      c + 0.5,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    vol,
		}
	}
	return klines
}

// 连续阴跌+末根放量：RSI/KD触底，带宽拉开，入场条件齐活
func entrySeries() []model.Kline {
	n := 60
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i := 0; i < n; i++ {
		closes[i] = 160 - float64(i)
		volumes[i] = 100
	}
	volumes[n-1] = 500
	return series(closes, volumes)
}

func risingTrendSeries() []model.Kline {
	closes := make([]float64, 220)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	return series(closes, nil)
}

func newTestScanner(market *fakeMarket, sink Alerter) *Scanner {
	cfg := conf.ScannerConfig{
		Symbols:     []string{"BTCUSDT"},
		Intervals:   map[string]float64{"15m": 0.21},
		ConfirmMap:  map[string]string{"15m": "1h"},
		KlineLimit:  500,
		MinHistory:  50,
		Concurrency: 2,
	}
	rules := map[string]scoring.RuleSet{"15m": scoring.NewRuleSet(conf.DefaultScore())}
	tr := tracker.New(context.Background(), nil)
	return New(market, rules, tr, sink, alert.NewFormatter("UTC"), cfg)
}

func TestScanFiresEntryOnce(t *testing.T) {
	market := &fakeMarket{klines: map[string][]model.Kline{
		"15m": entrySeries(),
		"1h":  risingTrendSeries(),
	}}
	sink := &captureAlerter{}
	s := newTestScanner(market, sink)

	s.scanAll(context.Background())

	entries := sink.byKind(model.AlertEntry)
	if len(entries) != 1 {
		t.Fatalf("got %d entry alerts, want 1", len(entries))
	}
	ev := entries[0]
	if ev.Symbol != "BTCUSDT" || ev.Interval != "15m" {
		t.Errorf("identity wrong: %s %s", ev.Symbol, ev.Interval)
	}
	if ev.Confidence < 70 {
		t.Errorf("entry confidence = %d, want >= 70", ev.Confidence)
	}

	// 同样的行情再扫一轮，边沿状态挡住重复告警
	s.scanAll(context.Background())
	if got := len(sink.byKind(model.AlertEntry)); got != 1 {
		t.Errorf("second identical cycle produced %d entries, want still 1", got)
	}
}

type flakyAlerter struct {
	captureAlerter
	failures int
}

func (f *flakyAlerter) Dispatch(ctx context.Context, event *model.AlertEvent) error {
	f.mu.Lock()
	f.events = append(f.events, event)
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	f.mu.Unlock()
	if fail {
		return errors.New("channel down")
	}
	return nil
}

func TestScanRetriesEntryAfterDispatchFailure(t *testing.T) {
	market := &fakeMarket{klines: map[string][]model.Kline{
		"15m": entrySeries(),
		"1h":  risingTrendSeries(),
	}}
	sink := &flakyAlerter{failures: 1}
	s := newTestScanner(market, sink)

	// 第一轮发送失败，边沿状态回滚
	s.scanAll(context.Background())
	// 条件没变，第二轮要重发
	s.scanAll(context.Background())

	entries := sink.byKind(model.AlertEntry)
	if len(entries) != 2 {
		t.Fatalf("got %d entry attempts, want 2 (one failed, one retried)", len(entries))
	}

	// 重发成功后恢复正常的边沿去重
	s.scanAll(context.Background())
	if got := len(sink.byKind(model.AlertEntry)); got != 2 {
		t.Errorf("third cycle produced %d attempts, want still 2", got)
	}
}

func TestScanSkipsWhenTrendDown(t *testing.T) {
	falling := make([]float64, 220)
	for i := range falling {
		falling[i] = 400 - float64(i)
	}
	market := &fakeMarket{klines: map[string][]model.Kline{
		"15m": entrySeries(),
		"1h":  series(falling, nil),
	}}
	sink := &captureAlerter{}
	s := newTestScanner(market, sink)

	s.scanAll(context.Background())

	// 没有趋势分：20+15+15+15=65 < 70，不入场
	if got := len(sink.byKind(model.AlertEntry)); got != 0 {
		t.Errorf("entry fired against a falling confirm trend, got %d", got)
	}
}

func TestScanSkipsShortHistory(t *testing.T) {
	market := &fakeMarket{klines: map[string][]model.Kline{
		"15m": entrySeries()[:20],
		"1h":  risingTrendSeries(),
	}}
	sink := &captureAlerter{}
	s := newTestScanner(market, sink)

	s.scanAll(context.Background())
	if len(sink.events) != 0 {
		t.Errorf("short history produced %d alerts, want 0", len(sink.events))
	}
}

func TestScanFiresTrailingStop(t *testing.T) {
	market := &fakeMarket{klines: map[string][]model.Kline{
		"15m": entrySeries(),
		"1h":  risingTrendSeries(),
	}}
	sink := &captureAlerter{}
	s := newTestScanner(market, sink)

	// 第一轮：健康行情，TSL开始追踪（最新收盘101）
	s.scanAll(context.Background())

	// 行情崩了：价格回撤超过21%
	n := 60
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		closes[i] = 101 - float64(i)*0.4
	}
	closes[n-1] = 70 // 101*(1-0.21)=79.79，70已跌破
	market.set("15m", series(closes, nil))

	s.scanAll(context.Background())

	stops := sink.byKind(model.AlertTrailStop)
	if len(stops) != 1 {
		t.Fatalf("got %d trailing stop alerts, want 1", len(stops))
	}
	if stops[0].Price != 70 {
		t.Errorf("stop price = %v, want 70", stops[0].Price)
	}
}
