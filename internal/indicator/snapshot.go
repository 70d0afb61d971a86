package indicator

import (
	"coinpulse/internal/model"

	"github.com/markcheno/go-talib"
)

// 计算一组完整指标所需的最少K线数量
// 压制判定取最后SuppWindow个带宽，必须全部落在BBands热身区(BBPeriod-1)之后，
// 否则热身期的零值会把平均带宽拉低，凭空判出盘整
const MinKlines = BBPeriod + SuppWindow - 1

// Snapshot 某个 symbol+interval 在最新一根K线上的全部指标读数
// scanner 每轮对每个交易对构建一次，scoring 只读这里的字段
type Snapshot struct {
	Symbol   string
	Interval string

	Close  float64
	High   float64
	Low    float64
	Volume float64

	RSI      float64
	StochK   float64
	StochD   float64
	BBUpper  float64
	BBMiddle float64
	BBLower  float64
	MACD     float64
	Signal   float64
	Hist     float64
	EMAFast  float64
	EMASlow  float64
	// EMATrend 本周期自己的EMA200，K线不足200根时为0
	EMATrend float64
	ATR      float64
	VWAP     float64

	// 最近5根的最低价，算初始止损用
	RecentLow float64

	VolumeSpike bool
	Suppressed  bool
	Divergence  bool

	// OK=false 表示K线不足，指标没算，所有数值字段不可用
	OK bool
}

// Build 从时间升序的K线构建指标快照
func Build(symbol, interval string, klines []model.Kline) Snapshot {
	snap := Snapshot{Symbol: symbol, Interval: interval}
	if len(klines) < MinKlines {
		return snap
	}

	highs, lows, closes := extractHLC(klines)
	lastK := klines[len(klines)-1]

	rsi := talib.Rsi(closes, RSIPeriod)
	upper, middle, lower := talib.BBands(closes, BBPeriod, BBDev, BBDev, talib.SMA)
	macd, signal, hist := talib.Macd(closes, 12, 26, 9)
	k, d := talib.Stoch(highs, lows, closes, StochFastK, StochSlowK, talib.SMA, StochSlowD, talib.SMA)
	emaFast := talib.Ema(closes, EMAFast)
	emaSlow := talib.Ema(closes, EMASlow)
	atr := talib.Atr(highs, lows, closes, ATRPeriod)

	snap.Close = lastK.Close
	snap.High = lastK.High
	snap.Low = lastK.Low
	snap.Volume = lastK.Volume

	snap.RSI = last(rsi)
	snap.StochK = last(k)
	snap.StochD = last(d)
	snap.BBUpper = last(upper)
	snap.BBMiddle = last(middle)
	snap.BBLower = last(lower)
	snap.MACD = last(macd)
	snap.Signal = last(signal)
	snap.Hist = last(hist)
	snap.EMAFast = last(emaFast)
	snap.EMASlow = last(emaSlow)
	if len(closes) >= EMATrend {
		snap.EMATrend = last(talib.Ema(closes, EMATrend))
	}
	snap.ATR = last(atr)
	snap.VWAP = CalculateVWAP(klines)
	snap.RecentLow = recentLow(klines, RecentLowWin)

	snap.VolumeSpike = VolumeSpike(klines, VolumeWindow)
	snap.Suppressed = Suppressed(upper, lower, lastK.Close, SuppWindow)
	snap.Divergence = BullishDivergence(lows, rsi, DivWindow)

	snap.OK = true
	return snap
}
