package alert

import (
	"fmt"
	"strings"
	"time"

	"coinpulse/internal/indicator"
	"coinpulse/internal/model"
	"coinpulse/internal/scoring"
	"coinpulse/pkg/logger"

	"github.com/spf13/cast"
)

// 告警文案，Telegram用Markdown，其他渠道复用同一段文本

// Formatter 渲染告警消息，时间统一按配置时区展示
type Formatter struct {
	loc *time.Location
}

func NewFormatter(timezone string) *Formatter {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		logger.Warn("formatter: bad timezone, falling back to UTC",
			logger.Pair("timezone", timezone), logger.Pair("error", err))
		loc = time.UTC
	}
	return &Formatter{loc: loc}
}

func (f *Formatter) now() string {
	return time.Now().In(f.loc).Format("2006-01-02 15:04:05")
}

// interpretConfidence 把分数翻译成仓位建议
func interpretConfidence(conf int) string {
	switch {
	case conf >= 85:
		return fmt.Sprintf("%d%% ✅ *Strong setup* — consider full position", conf)
	case conf >= 70:
		return fmt.Sprintf("%d%% ⚠️ *Decent setup* — consider half position", conf)
	case conf >= 50:
		return fmt.Sprintf("%d%% 🧪 *Weak setup* — small size or wait", conf)
	default:
		return fmt.Sprintf("%d%% ❌ *Low confidence* — better to skip", conf)
	}
}

func yesNo(b bool, yes, no string) string {
	if b {
		return yes
	}
	return no
}

// num 价格类数值的展示，去掉浮点尾巴
func num(v float64) string {
	return cast.ToString(float64(int64(v*10000)) / 10000)
}

// Entry 入场消息
// tslLevel/highest 为0时说明追踪还没建立，相关行省略
func (f *Formatter) Entry(snap indicator.Snapshot, res scoring.Result, tslLevel, highest float64, ticker model.Ticker24h) model.AlertEvent {
	var b strings.Builder
	fmt.Fprintf(&b, "🟢 *[ENTRY]* — %s (%s)\n", snap.Symbol, snap.Interval)
	fmt.Fprintf(&b, "*Confidence:* %s\n", interpretConfidence(res.Confidence))
	fmt.Fprintf(&b, "RSI: %s | Stoch %%K: %s / %%D: %s\n", num(snap.RSI), num(snap.StochK), num(snap.StochD))
	fmt.Fprintf(&b, "Price at Lower BB %s | Volume Spike %s | Trend: %s\n",
		yesNo(snap.Close <= snap.BBLower, "✅", "❌"),
		yesNo(snap.VolumeSpike, "✅", "❌"),
		yesNo(res.TrendOK, "Bullish ✅", "❌"))
	fmt.Fprintf(&b, "Suppression: %s | RSI Divergence: %s\n",
		yesNo(snap.Suppressed, "Yes ❌", "No ✅"),
		yesNo(snap.Divergence, "Yes ✅", "No ❌"))
	fmt.Fprintf(&b, "Initial SL: %s\n", num(res.InitialStop))
	if tslLevel > 0 && highest > 0 {
		pullback := (1 - tslLevel/highest) * 100
		fmt.Fprintf(&b, "TP Target: %s | TSL Level: %s (%.2f%%)\n", num(snap.BBUpper), num(tslLevel), pullback)
	} else {
		fmt.Fprintf(&b, "TP Target: %s\n", num(snap.BBUpper))
	}
	if ticker.LastPrice > 0 {
		fmt.Fprintf(&b, "24h: %s%% | Vol: %s\n", num(ticker.PriceChangePercent), num(ticker.QuoteVolume))
	}
	fmt.Fprintf(&b, "Price: %s | Time: %s", num(snap.Close), f.now())

	return f.event(model.AlertEntry, snap, res.Confidence, "Entry signal", b.String())
}

// TakeProfit 止盈消息
func (f *Formatter) TakeProfit(snap indicator.Snapshot, res scoring.Result) model.AlertEvent {
	var b strings.Builder
	fmt.Fprintf(&b, "🟡 *[TAKE PROFIT]* — %s (%s)\n", snap.Symbol, snap.Interval)
	fmt.Fprintf(&b, "*Confidence:* %s\n", interpretConfidence(res.TakeProfitConfidence))
	fmt.Fprintf(&b, "Price near Upper BB ✅ | RSI: %s | Stoch %%K: %s / %%D: %s\n",
		num(snap.RSI), num(snap.StochK), num(snap.StochD))
	fmt.Fprintf(&b, "Price: %s | Time: %s", num(snap.Close), f.now())

	return f.event(model.AlertTakeProfit, snap, res.TakeProfitConfidence, "Take profit", b.String())
}

// TrailStop 追踪止损消息
func (f *Formatter) TrailStop(snap indicator.Snapshot, tslLevel float64) model.AlertEvent {
	var b strings.Builder
	fmt.Fprintf(&b, "🔴 [TRAILING STOP HIT] — %s (%s)\n", snap.Symbol, snap.Interval)
	fmt.Fprintf(&b, "Price: %s fell below TSL level: %s\n", num(snap.Close), num(tslLevel))
	fmt.Fprintf(&b, "Time: %s", f.now())

	return f.event(model.AlertTrailStop, snap, 0, "Trailing stop hit", b.String())
}

// Test 手动触发的测试消息
func (f *Formatter) Test(symbol string) model.AlertEvent {
	text := fmt.Sprintf("🔧 *[TEST]* — %s\nAlert pipeline check | Time: %s", symbol, f.now())
	return model.AlertEvent{
		Kind:      model.AlertTest,
		Symbol:    symbol,
		Title:     "Test alert",
		Text:      text,
		CreatedAt: time.Now(),
	}
}

func (f *Formatter) event(kind model.AlertKind, snap indicator.Snapshot, confidence int, title, text string) model.AlertEvent {
	return model.AlertEvent{
		Kind:       kind,
		Symbol:     snap.Symbol,
		Interval:   snap.Interval,
		Price:      snap.Close,
		Confidence: confidence,
		Title:      title,
		Text:       text,
		CreatedAt:  time.Now(),
	}
}
