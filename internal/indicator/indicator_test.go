package indicator

import (
	"math"
	"testing"
	"time"

	"coinpulse/internal/model"
)

func makeKlines(closes []float64, volumes []float64) []model.Kline {
	klines := make([]model.Kline, len(closes))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		vol := 100.0
		if volumes != nil {
			vol = volumes[i]
		}
		klines[i] = model.Kline{
			Timestamp: base.Add(time.Duration(i) * 15 * time.Minute),
			Open:      c * 0.999,
			High:      c * 1.002,
			Low:       c * 0.998,
			Close:     c,
			Volume:    vol,
		}
	}
	return klines
}

func flatSeries(n int, price float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = price
	}
	return s
}

func TestVolumeSpike(t *testing.T) {
	volumes := make([]float64, 40)
	for i := range volumes {
		volumes[i] = 100
	}
	klines := makeKlines(flatSeries(40, 50), volumes)

	if VolumeSpike(klines, VolumeWindow) {
		t.Error("flat volume should not spike")
	}

	// 全为100时std为0，任何高于均值的量都算异动
	volumes[39] = 101
	klines = makeKlines(flatSeries(40, 50), volumes)
	if !VolumeSpike(klines, VolumeWindow) {
		t.Error("expected spike above zero-variance baseline")
	}
}

func TestVolumeSpikeInsufficientData(t *testing.T) {
	klines := makeKlines(flatSeries(10, 50), nil)
	if VolumeSpike(klines, VolumeWindow) {
		t.Error("short history must not report a spike")
	}
}

func TestSuppressed(t *testing.T) {
	narrowUpper := flatSeries(25, 100.2)
	narrowLower := flatSeries(25, 99.8)
	if !Suppressed(narrowUpper, narrowLower, 100, SuppWindow) {
		t.Error("0.4 band width on a 100 close should be suppressed")
	}

	wideUpper := flatSeries(25, 105)
	wideLower := flatSeries(25, 95)
	if Suppressed(wideUpper, wideLower, 100, SuppWindow) {
		t.Error("10% band width should not be suppressed")
	}
}

func TestBullishDivergence(t *testing.T) {
	// 价格两次探底且后低更低，RSI后低更高 -> 底背离
	lows := flatSeries(DivWindow, 100)
	rsi := flatSeries(DivWindow, 50)
	lows[4], rsi[4] = 90, 25   // 前低
	lows[11], rsi[11] = 88, 32 // 后低：价格更低，RSI更高

	if !BullishDivergence(lows, rsi, DivWindow) {
		t.Error("expected bullish divergence")
	}

	// RSI同步创新低 -> 不构成背离
	rsi[11] = 20
	if BullishDivergence(lows, rsi, DivWindow) {
		t.Error("lower low with lower RSI is not a divergence")
	}
}

func TestCalculateVWAP(t *testing.T) {
	klines := []model.Kline{
		{High: 102, Low: 98, Close: 100, Volume: 10},
		{High: 112, Low: 108, Close: 110, Volume: 30},
	}
	// (100*10 + 110*30) / 40 = 107.5
	got := CalculateVWAP(klines)
	if math.Abs(got-107.5) > 1e-9 {
		t.Errorf("VWAP = %v, want 107.5", got)
	}

	if CalculateVWAP(nil) != 0 {
		t.Error("empty input should return 0")
	}
}

func TestBuildInsufficientKlines(t *testing.T) {
	snap := Build("BTCUSDT", "15m", makeKlines(flatSeries(MinKlines-1, 100), nil))
	if snap.OK {
		t.Error("snapshot must be marked not OK below MinKlines")
	}
}

func TestBuildSnapshot(t *testing.T) {
	// 250根缓慢上行的序列，足够热身所有指标
	closes := make([]float64, 250)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.5 + 2*math.Sin(float64(i)/5)
	}
	klines := makeKlines(closes, nil)

	snap := Build("ETHUSDT", "1h", klines)
	if !snap.OK {
		t.Fatal("expected OK snapshot")
	}
	if snap.Symbol != "ETHUSDT" || snap.Interval != "1h" {
		t.Errorf("identity fields wrong: %s %s", snap.Symbol, snap.Interval)
	}
	if snap.Close != closes[249] {
		t.Errorf("Close = %v, want %v", snap.Close, closes[249])
	}
	if snap.RSI <= 0 || snap.RSI > 100 {
		t.Errorf("RSI out of range: %v", snap.RSI)
	}
	if snap.BBUpper <= snap.BBMiddle || snap.BBMiddle <= snap.BBLower {
		t.Errorf("band ordering broken: %v %v %v", snap.BBUpper, snap.BBMiddle, snap.BBLower)
	}
	if snap.ATR <= 0 {
		t.Errorf("ATR should be positive, got %v", snap.ATR)
	}
	if snap.VWAP <= 0 {
		t.Errorf("VWAP should be positive, got %v", snap.VWAP)
	}
	if snap.RecentLow <= 0 || snap.RecentLow > snap.Close {
		t.Errorf("RecentLow suspicious: %v", snap.RecentLow)
	}
	// 250根上行序列里EMA200应该在价格下方
	if snap.EMATrend <= 0 || snap.EMATrend >= snap.Close {
		t.Errorf("EMATrend = %v, want positive and below close %v", snap.EMATrend, snap.Close)
	}
}

func TestBuildEMATrendNeedsFullHistory(t *testing.T) {
	snap := Build("BTCUSDT", "15m", makeKlines(flatSeries(60, 100), nil))
	if !snap.OK {
		t.Fatal("60 candles should still produce a snapshot")
	}
	if snap.EMATrend != 0 {
		t.Errorf("EMATrend = %v, want 0 below 200 candles", snap.EMATrend)
	}
}

func TestBuildAtMinimumHistory(t *testing.T) {
	// 刚好MinKlines根、波动很大的序列：压制窗口必须完全落在BB热身区之后，
	// 否则热身零值会把平均带宽拉低误判成盘整
	closes := make([]float64, MinKlines)
	for i := range closes {
		closes[i] = 100 + 5*math.Sin(float64(i))
	}
	snap := Build("BTCUSDT", "15m", makeKlines(closes, nil))
	if !snap.OK {
		t.Fatal("MinKlines candles must produce a snapshot")
	}
	if snap.Suppressed {
		t.Error("wide bands must not read as suppressed at minimum history")
	}
}

func TestTrendUp(t *testing.T) {
	rising := make([]float64, 220)
	for i := range rising {
		rising[i] = 100 + float64(i)
	}
	if !TrendUp(makeKlines(rising, nil)) {
		t.Error("rising series should be above EMA200")
	}

	falling := make([]float64, 220)
	for i := range falling {
		falling[i] = 400 - float64(i)
	}
	if TrendUp(makeKlines(falling, nil)) {
		t.Error("falling series should be below EMA200")
	}

	if TrendUp(makeKlines(rising[:100], nil)) {
		t.Error("short history must not confirm a trend")
	}
}
