package scanner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"coinpulse/conf"
	"coinpulse/internal/alert"
	"coinpulse/internal/exchange"
	"coinpulse/internal/indicator"
	"coinpulse/internal/model"
	"coinpulse/internal/scoring"
	"coinpulse/internal/tracker"
	"coinpulse/pkg/logger"
	"coinpulse/pkg/utils"
)

// 扫描调度：对齐轮询间隔 -> 并发扫每个 symbol+interval -> 打分 -> 告警

// Alerter dispatcher的最小依赖，测试时替换
type Alerter interface {
	Dispatch(ctx context.Context, event *model.AlertEvent) error
}

// 确认周期趋势拉210根，EMA200热身够用
const trendKlineLimit = 210

type Scanner struct {
	ex        exchange.MarketSource
	rules     map[string]scoring.RuleSet // interval -> 规则
	tracker   *tracker.Tracker
	alerter   Alerter
	formatter *alert.Formatter
	cfg       conf.ScannerConfig
}

func New(ex exchange.MarketSource, rules map[string]scoring.RuleSet, tr *tracker.Tracker,
	alerter Alerter, formatter *alert.Formatter, cfg conf.ScannerConfig) *Scanner {
	return &Scanner{
		ex:        ex,
		rules:     rules,
		tracker:   tr,
		alerter:   alerter,
		formatter: formatter,
		cfg:       cfg,
	}
}

// Run 阻塞运行直到ctx取消
// 先跑一轮铺底，再等到下一个对齐点进入固定节奏
func (s *Scanner) Run(ctx context.Context) {
	logger.Info("scanner: warmup scan")
	s.scanAll(ctx)

	if !s.waitForAlignment(ctx) {
		return
	}
	s.scanAll(ctx)

	ticker := time.NewTicker(s.cfg.PollInterval.D())
	defer ticker.Stop()

	logger.Infof("scanner: scheduled every %s", s.cfg.PollInterval.D())
	for {
		select {
		case <-ctx.Done():
			logger.Info("scanner: stopped")
			return
		case t := <-ticker.C:
			logger.Infof("scanner: cycle at %s", t.Format("15:04:05"))
			s.scanAll(ctx)
		}
	}
}

// waitForAlignment 等到下一个轮询对齐点再加grace，确保交易所K线落地
// 返回false表示等待期间ctx被取消
func (s *Scanner) waitForAlignment(ctx context.Context) bool {
	now := time.Now()
	next := now.Truncate(s.cfg.PollInterval.D()).Add(s.cfg.PollInterval.D()).Add(s.cfg.AlignGrace.D())
	logger.Infof("scanner: waiting until %s", next.Format("15:04:05"))

	select {
	case <-ctx.Done():
		return false
	case <-time.After(time.Until(next)):
		return true
	}
}

// scanAll 一轮全量扫描，信号量控制并发
func (s *Scanner) scanAll(ctx context.Context) {
	start := time.Now()

	// 每轮一个共享缓存：大周期趋势和24h行情按需拉一次
	cycle := newCycleCache(s.ex)

	intervals := make([]string, 0, len(s.cfg.Intervals))
	for interval := range s.cfg.Intervals {
		intervals = append(intervals, interval)
	}
	sort.Strings(intervals)

	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup
	for _, symbol := range s.cfg.Symbols {
		for _, interval := range intervals {
			symbol, interval := symbol, interval
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				defer func() {
					if r := recover(); r != nil {
						logger.Error("scanner: pair panicked",
							logger.Pair("symbol", symbol),
							logger.Pair("interval", interval),
							logger.Pair("panic", fmt.Sprintf("%v", r)))
					}
				}()
				if err := s.scanPair(ctx, cycle, symbol, interval); err != nil {
					logger.Warn("scanner: pair failed",
						logger.Pair("symbol", symbol),
						logger.Pair("interval", interval),
						logger.Pair("error", err))
				}
			}()
		}
	}
	wg.Wait()

	logger.Infof("scanner: cycle done, %d symbols x %d intervals in %s",
		len(s.cfg.Symbols), len(intervals), time.Since(start).Round(time.Millisecond))
}

// scanPair 单个 symbol+interval 的完整决策链
func (s *Scanner) scanPair(ctx context.Context, cycle *cycleCache, symbol, interval string) error {
	rules, ok := s.rules[interval]
	if !ok {
		return fmt.Errorf("no rule set for interval %s", interval)
	}

	klines, err := s.ex.GetKlines(ctx, symbol, interval, s.cfg.KlineLimit)
	if err != nil {
		return fmt.Errorf("fetch klines: %w", err)
	}
	if len(klines) < s.cfg.MinHistory {
		logger.Debug("scanner: history too short",
			logger.Pair("symbol", symbol),
			logger.Pair("interval", interval),
			logger.Pair("got", len(klines)))
		return nil
	}

	snap := indicator.Build(symbol, interval, klines)
	if !snap.OK {
		return nil
	}

	trendOK := cycle.trendUp(ctx, symbol, s.confirmInterval(interval))
	res := rules.Evaluate(snap, trendOK)

	// 行情健康才允许开新的TSL追踪
	healthy := snap.VolumeSpike && trendOK && !snap.Suppressed
	key := utils.PairKey(symbol, interval)
	tslLevel, tslHit := s.tracker.Observe(key, snap.Close, s.cfg.Intervals[interval], healthy)

	// 发送失败就撤销边沿状态，条件未回落的话下一轮重试
	if s.tracker.ShouldFire(key, string(model.AlertEntry), res.Entry) {
		ticker := cycle.ticker24h(ctx, symbol)
		ev := s.formatter.Entry(snap, res, tslLevel, s.tracker.High(key), ticker)
		if !s.dispatch(ctx, &ev) {
			s.tracker.Disarm(key, string(model.AlertEntry))
		}
	}

	if s.tracker.ShouldFire(key, string(model.AlertTakeProfit), res.TakeProfit) {
		ev := s.formatter.TakeProfit(snap, res)
		if !s.dispatch(ctx, &ev) {
			s.tracker.Disarm(key, string(model.AlertTakeProfit))
		}
	}

	// TSL触发本身就是一次性的（水位清零），不走边沿状态
	if tslHit {
		ev := s.formatter.TrailStop(snap, tslLevel)
		s.dispatch(ctx, &ev)
	}
	return nil
}

// confirmInterval 大周期趋势确认映射，没配的直接看自己
func (s *Scanner) confirmInterval(interval string) string {
	if confirm, ok := s.cfg.ConfirmMap[interval]; ok {
		return confirm
	}
	return interval
}

func (s *Scanner) dispatch(ctx context.Context, ev *model.AlertEvent) bool {
	if err := s.alerter.Dispatch(ctx, ev); err != nil {
		logger.Error("scanner: dispatch failed",
			logger.Pair("symbol", ev.Symbol),
			logger.Pair("kind", ev.Kind),
			logger.Pair("error", err))
		return false
	}
	return true
}

// cycleCache 单轮内的去重缓存，避免同一symbol重复打交易所接口
type cycleCache struct {
	ex exchange.MarketSource

	mu      sync.Mutex
	trends  map[string]bool
	tickers map[string]model.Ticker24h
}

func newCycleCache(ex exchange.MarketSource) *cycleCache {
	return &cycleCache{
		ex:      ex,
		trends:  make(map[string]bool),
		tickers: make(map[string]model.Ticker24h),
	}
}

func (c *cycleCache) trendUp(ctx context.Context, symbol, confirmInterval string) bool {
	key := utils.PairKey(symbol, confirmInterval)

	c.mu.Lock()
	if v, ok := c.trends[key]; ok {
		c.mu.Unlock()
		return v
	}
	c.mu.Unlock()

	// 趋势拉不到按不确认处理
	up := false
	klines, err := c.ex.GetKlines(ctx, symbol, confirmInterval, trendKlineLimit)
	if err != nil {
		logger.Warn("scanner: trend fetch failed",
			logger.Pair("symbol", symbol),
			logger.Pair("interval", confirmInterval),
			logger.Pair("error", err))
	} else {
		up = indicator.TrendUp(klines)
	}

	c.mu.Lock()
	c.trends[key] = up
	c.mu.Unlock()
	return up
}

func (c *cycleCache) ticker24h(ctx context.Context, symbol string) model.Ticker24h {
	c.mu.Lock()
	if t, ok := c.tickers[symbol]; ok {
		c.mu.Unlock()
		return t
	}
	c.mu.Unlock()

	t, err := c.ex.GetTicker24h(ctx, symbol)
	if err != nil {
		logger.Debug("scanner: ticker fetch failed",
			logger.Pair("symbol", symbol), logger.Pair("error", err))
		t = model.Ticker24h{}
	}

	c.mu.Lock()
	c.tickers[symbol] = t
	c.mu.Unlock()
	return t
}
