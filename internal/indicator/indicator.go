package indicator

import (
	"math"

	"coinpulse/internal/model"

	"github.com/markcheno/go-talib"
)

// 各指标的默认周期，与策略脚本保持一致
const (
	RSIPeriod    = 14
	EMAFast      = 9
	EMASlow      = 21
	EMATrend     = 200
	ATRPeriod    = 14
	BBPeriod     = 20
	BBDev        = 2.0
	StochFastK   = 9
	StochSlowK   = 3
	StochSlowD   = 3
	VolumeWindow = 20
	SuppWindow   = 20
	DivWindow    = 15
	RecentLowWin = 5
)

func extractCloses(klines []model.Kline) []float64 {
	closes := make([]float64, len(klines))
	for i, k := range klines {
		closes[i] = k.Close
	}
	return closes
}

func extractHLC(klines []model.Kline) (highs, lows, closes []float64) {
	highs = make([]float64, len(klines))
	lows = make([]float64, len(klines))
	closes = make([]float64, len(klines))
	for i, k := range klines {
		highs[i] = k.High
		lows[i] = k.Low
		closes[i] = k.Close
	}
	return
}

// last 取序列最后一个值，空序列返回0
func last(arr []float64) float64 {
	if len(arr) == 0 {
		return 0
	}
	return arr[len(arr)-1]
}

// ========== 成交量异动 ==========
// VolumeSpike 最后一根成交量是否超过前window根的 mean + 1.5*std
func VolumeSpike(klines []model.Kline, window int) bool {
	if len(klines) < window+1 {
		return false
	}
	base := klines[len(klines)-1-window : len(klines)-1]
	var sum float64
	for _, k := range base {
		sum += k.Volume
	}
	mean := sum / float64(window)

	var varSum float64
	for _, k := range base {
		d := k.Volume - mean
		varSum += d * d
	}
	std := math.Sqrt(varSum / float64(window))

	return klines[len(klines)-1].Volume > mean+1.5*std
}

// ========== 波动压制 ==========
// Suppressed 布林带收口：最近window根的平均带宽小于最新收盘价的1%
// 带宽太窄说明在横盘蓄势，此时的突破信号不可信
func Suppressed(upper, lower []float64, lastClose float64, window int) bool {
	if len(upper) < window || len(lower) < window || lastClose <= 0 {
		return false
	}
	var sum float64
	for i := len(upper) - window; i < len(upper); i++ {
		sum += upper[i] - lower[i]
	}
	return sum/float64(window) < lastClose*0.01
}

// ========== RSI 底背离 ==========
// BullishDivergence 在最近window根里找两个最低点：
// 价格创新低(后低 < 前低)而RSI没有(后RSI > 前RSI)即构成底背离
func BullishDivergence(lows, rsi []float64, window int) bool {
	if len(lows) < window || len(rsi) < window || len(lows) != len(rsi) {
		return false
	}
	start := len(lows) - window

	// 找最低和次低两个点
	first, second := -1, -1
	for i := start; i < len(lows); i++ {
		if first == -1 || lows[i] < lows[first] {
			second = first
			first = i
		} else if second == -1 || lows[i] < lows[second] {
			second = i
		}
	}
	if first == -1 || second == -1 {
		return false
	}

	// 按时间排序
	early, late := first, second
	if early > late {
		early, late = late, early
	}

	return lows[late] < lows[early] && rsi[late] > rsi[early]
}

// ========== 大周期趋势 ==========
// TrendUp 确认周期的收盘价是否站上 EMA200
func TrendUp(klines []model.Kline) bool {
	closes := extractCloses(klines)
	if len(closes) < EMATrend {
		return false
	}
	ema := talib.Ema(closes, EMATrend)
	return last(closes) > last(ema)
}

// ========== VWAP ==========
// CalculateVWAP 本批K线的成交量加权均价（典型价 = (H+L+C)/3）
func CalculateVWAP(klines []model.Kline) float64 {
	var pv, vol float64
	for _, k := range klines {
		typical := (k.High + k.Low + k.Close) / 3
		pv += typical * k.Volume
		vol += k.Volume
	}
	if vol == 0 {
		return 0
	}
	return pv / vol
}

// recentLow 最近window根的最低价
func recentLow(klines []model.Kline, window int) float64 {
	if len(klines) == 0 {
		return 0
	}
	if len(klines) < window {
		window = len(klines)
	}
	low := math.Inf(1)
	for _, k := range klines[len(klines)-window:] {
		if k.Low < low {
			low = k.Low
		}
	}
	return low
}
