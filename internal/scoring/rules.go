package scoring

import (
	"math"

	"coinpulse/conf"
	"coinpulse/internal/indicator"
)

// 打分引擎：把指标快照折算成0~100的置信度
// 每个周期一套权重表，权重从配置来

// Result 一次评估的产出
type Result struct {
	// 0~100
	Confidence int
	// 入场信号：置信度过线且量能确认
	Entry bool
	// 止盈信号：收盘触及上轨且KD同时超买
	TakeProfit bool
	// 止盈信号自己的置信度（4项各25分）
	TakeProfitConfidence int
	// 初始止损价
	InitialStop float64
	// 大周期趋势是否向上
	TrendOK bool
	// 各分项是否得分，进消息和日志
	Breakdown map[string]bool
}

// RuleSet 某个周期的打分规则
type RuleSet struct {
	cfg conf.ScoreConfig
}

func NewRuleSet(cfg conf.ScoreConfig) RuleSet {
	return RuleSet{cfg: cfg}
}

// normalizer 归一化分母
// 配置里 MaxScore 非正时退回权重之和，避免除零或比例失真
func (r RuleSet) normalizer() float64 {
	if r.cfg.MaxScore > 0 {
		return r.cfg.MaxScore
	}
	sum := r.cfg.VolumeSpikeWeight + r.cfg.TrendWeight + r.cfg.NoSuppressionWeight +
		r.cfg.DivergenceWeight + r.cfg.RSIWeight + r.cfg.StochWeight
	if sum <= 0 {
		return 100
	}
	return sum
}

// Evaluate 对一个快照打分
// trendOK 由确认周期（例如15m看1h）单独算好传进来
func (r RuleSet) Evaluate(snap indicator.Snapshot, trendOK bool) Result {
	res := Result{TrendOK: trendOK, Breakdown: make(map[string]bool, 6)}
	if !snap.OK {
		return res
	}

	var earned float64
	mark := func(name string, hit bool, weight float64) {
		res.Breakdown[name] = hit
		if hit {
			earned += weight
		}
	}

	mark("volume_spike", snap.VolumeSpike, r.cfg.VolumeSpikeWeight)
	mark("trend", trendOK, r.cfg.TrendWeight)
	mark("no_suppression", !snap.Suppressed, r.cfg.NoSuppressionWeight)
	mark("divergence", snap.Divergence, r.cfg.DivergenceWeight)
	mark("rsi_oversold", snap.RSI < r.cfg.RSIOversold, r.cfg.RSIWeight)
	mark("stoch_oversold", snap.StochK < r.cfg.StochOversold && snap.StochD < r.cfg.StochOversold, r.cfg.StochWeight)

	conf100 := math.Round(earned / r.normalizer() * 100)
	if conf100 < 0 {
		conf100 = 0
	}
	if conf100 > 100 {
		conf100 = 100
	}
	res.Confidence = int(conf100)

	res.Entry = res.Confidence >= r.cfg.EntryConfidence

	// 止盈：收盘站上上轨 + KD双超买
	res.TakeProfit = snap.Close >= snap.BBUpper &&
		snap.StochK > r.cfg.StochOverbought && snap.StochD > r.cfg.StochOverbought

	res.TakeProfitConfidence = r.takeProfitConfidence(snap)

	// 初始止损：近5根最低价和下轨取低，再留0.5个ATR的余量
	stopBase := snap.RecentLow
	if snap.BBLower < stopBase {
		stopBase = snap.BBLower
	}
	res.InitialStop = stopBase - 0.5*snap.ATR

	return res
}

// takeProfitConfidence 止盈信号强度，4个条件各25分
func (r RuleSet) takeProfitConfidence(snap indicator.Snapshot) int {
	score := 0
	if snap.RSI > r.cfg.RSIOverbought {
		score += 25
	}
	if snap.StochK > r.cfg.StochOverbought && snap.StochD > r.cfg.StochOverbought {
		score += 25
	}
	if snap.Close >= snap.BBUpper {
		score += 25
	}
	if !snap.Suppressed {
		score += 25
	}
	return score
}
