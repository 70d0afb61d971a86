package tracker

import (
	"context"
	"sync"
	"time"

	"coinpulse/internal/dao"
	"coinpulse/pkg/logger"
)

// Tracker 维护两类跨轮次状态：
//  1. 每个 symbol+interval 的最高价水位（追踪止损）
//  2. 每个 symbol+interval+kind 的边沿触发标记（同一条件不重复告警）
//
// 内存是权威，DAO只做异步落库，进程重启后从库里恢复
type Tracker struct {
	mu     sync.RWMutex
	highs  map[string]float64
	states map[string]bool
	// 可为nil，测试和未配库时走纯内存
	dao dao.AlertDAO
}

func New(ctx context.Context, d dao.AlertDAO) *Tracker {
	t := &Tracker{
		highs:  make(map[string]float64),
		states: make(map[string]bool),
		dao:    d,
	}
	if d == nil {
		return t
	}

	// 恢复失败不致命，退化成冷启动
	if highs, err := d.LoadHighs(ctx); err != nil {
		logger.Error("tracker: load highs failed", logger.Pair("error", err))
	} else {
		t.highs = highs
	}
	if states, err := d.LoadStates(ctx); err != nil {
		logger.Error("tracker: load states failed", logger.Pair("error", err))
	} else {
		t.states = states
	}
	return t
}

// Observe 喂入一根收盘价，返回当前止损线和是否跌破
//
// 规则沿袭人工盯盘的习惯：
//   - 还没在追踪时，只有行情健康（有量、趋势向上、未盘整）才开仓位追踪
//   - 已在追踪时无条件抬高水位，价格回撤到 high*(1-pct) 即触发
//   - 触发后水位清零，等待下一轮健康行情重新开始
func (t *Tracker) Observe(key string, price, tslPercent float64, healthy bool) (level float64, hit bool) {
	if price <= 0 || tslPercent <= 0 || tslPercent >= 1 {
		return 0, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	high := t.highs[key]
	if high <= 0 {
		if healthy {
			t.highs[key] = price
			t.persistHigh(key, price)
		}
		return 0, false
	}

	if price > high {
		high = price
		t.highs[key] = high
		t.persistHigh(key, high)
	}

	level = high * (1 - tslPercent)
	if price < level {
		hit = true
		t.highs[key] = 0
		t.persistHigh(key, 0)
	}
	return level, hit
}

// High 当前水位，0表示未在追踪
func (t *Tracker) High(key string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.highs[key]
}

// ShouldFire 边沿触发：条件从false变true才发一次告警
// 条件回落(active=false)时复位，下次再满足会重新触发
func (t *Tracker) ShouldFire(key, kind string, active bool) bool {
	stateKey := key + ":" + kind

	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.states[stateKey]
	if prev == active {
		return false
	}
	t.states[stateKey] = active
	t.persistState(stateKey, active)
	return active
}

// Disarm 撤销一次边沿触发
// 发送失败时回滚状态，条件还在的话下一轮会重新触发
func (t *Tracker) Disarm(key, kind string) {
	stateKey := key + ":" + kind

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.states[stateKey] {
		return
	}
	t.states[stateKey] = false
	t.persistState(stateKey, false)
}

// 落库放后台，不拖慢扫描循环
func (t *Tracker) persistHigh(key string, high float64) {
	if t.dao == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.dao.UpsertHigh(ctx, key, high); err != nil {
			logger.Error("tracker: persist high failed",
				logger.Pair("key", key), logger.Pair("error", err))
		}
	}()
}

func (t *Tracker) persistState(stateKey string, active bool) {
	if t.dao == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := t.dao.UpsertState(ctx, stateKey, active); err != nil {
			logger.Error("tracker: persist state failed",
				logger.Pair("key", stateKey), logger.Pair("error", err))
		}
	}()
}
