package alert

import (
	"context"
	"fmt"
	"time"

	"coinpulse/internal/dao"
	"coinpulse/internal/model"
	"coinpulse/internal/model/entity"
	"coinpulse/pkg/kafka"
	"coinpulse/pkg/logger"
	"coinpulse/pkg/push/apns"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Dispatcher 告警扇出：Telegram / APNs / Kafka / WebSocket
// 渠道之间互不影响，单渠道失败只记日志，其余照发

// Broadcaster 对ws hub的最小依赖
type Broadcaster interface {
	Broadcast(event *model.AlertEvent)
}

type Dispatcher struct {
	tg       *TelegramClient
	push     *apns.Apns
	tokens   []string
	producer kafka.ProducerService
	hub      Broadcaster
	dao      dao.AlertDAO
	rdb      *redis.Client
	cooldown time.Duration
}

// 所有依赖都允许为nil（对应渠道未配置）
func NewDispatcher(tg *TelegramClient, push *apns.Apns, tokens []string,
	producer kafka.ProducerService, hub Broadcaster, d dao.AlertDAO,
	rdb *redis.Client, cooldown time.Duration) *Dispatcher {
	return &Dispatcher{
		tg:       tg,
		push:     push,
		tokens:   tokens,
		producer: producer,
		hub:      hub,
		dao:      d,
		rdb:      rdb,
		cooldown: cooldown,
	}
}

// HasChannel 是否配置了至少一个外发渠道
// ws广播不算：没人连着的时候消息直接蒸发，测试接口要的是能送达的通道
func (d *Dispatcher) HasChannel() bool {
	if d.tg != nil && d.tg.Enabled() {
		return true
	}
	if d.push != nil && len(d.tokens) > 0 {
		return true
	}
	return d.producer != nil
}

func cooldownKey(event *model.AlertEvent) string {
	return fmt.Sprintf("alert:cd:%s:%s:%s", event.Symbol, event.Interval, event.Kind)
}

// Dispatch 发出一条告警
// 冷却窗口内的重复告警直接丢弃（SetNX占坑），测试告警不受冷却限制
func (d *Dispatcher) Dispatch(ctx context.Context, event *model.AlertEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	if event.Kind != model.AlertTest && !d.passCooldown(ctx, event) {
		logger.Info("alert suppressed by cooldown",
			logger.Pair("symbol", event.Symbol),
			logger.Pair("interval", event.Interval),
			logger.Pair("kind", event.Kind))
		return nil
	}

	var errs error

	if d.tg != nil && d.tg.Enabled() {
		if err := d.tg.Send(ctx, event.Text); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("telegram: %w", err))
		}
	}

	if d.push != nil && len(d.tokens) > 0 {
		msg := &apns.PushMessage{
			Category: string(event.Kind),
			Title:    event.Title,
			Body:     fmt.Sprintf("%s (%s) @ %v", event.Symbol, event.Interval, event.Price),
			Sound:    "default",
			ExtParams: map[string]interface{}{
				"group":  event.Symbol,
				"symbol": event.Symbol,
				"kind":   string(event.Kind),
			},
		}
		for _, token := range d.tokens {
			if _, err := d.push.Push(msg, token); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("apns %s: %w", token, err))
			}
		}
	}

	if d.producer != nil {
		if err := d.producer.Produce(ctx, event.Symbol, event); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("kafka: %w", err))
		}
	}

	if d.hub != nil {
		d.hub.Broadcast(event)
	}

	// 历史记录不管渠道成败都要落
	d.saveHistory(ctx, event)

	if errs != nil {
		logger.Error("alert dispatch partially failed",
			logger.Pair("id", event.ID), logger.Pair("error", errs))
	}
	return errs
}

// passCooldown true表示可以发
func (d *Dispatcher) passCooldown(ctx context.Context, event *model.AlertEvent) bool {
	if d.rdb == nil || d.cooldown <= 0 {
		return true
	}
	ok, err := d.rdb.SetNX(ctx, cooldownKey(event), event.ID, d.cooldown).Result()
	if err != nil {
		// redis挂了宁可多发也不漏发
		logger.Warn("cooldown check failed, letting alert through", logger.Pair("error", err))
		return true
	}
	return ok
}

func (d *Dispatcher) saveHistory(ctx context.Context, event *model.AlertEvent) {
	if d.dao == nil {
		return
	}
	row := &entity.AlertHistory{
		ID:         event.ID,
		Symbol:     event.Symbol,
		Interval:   event.Interval,
		Kind:       string(event.Kind),
		Price:      event.Price,
		Confidence: event.Confidence,
		Content:    event.Text,
		CreatedAt:  event.CreatedAt,
	}
	if err := d.dao.SaveHistory(ctx, row); err != nil {
		logger.Error("save alert history failed",
			logger.Pair("id", event.ID), logger.Pair("error", err))
	}
}
