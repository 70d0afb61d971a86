package app

import (
	"context"

	"coinpulse/conf"
	alertsvc "coinpulse/internal/alert"
	"coinpulse/internal/dao"
	"coinpulse/internal/exchange"
	alerthandler "coinpulse/internal/handler/alert"
	"coinpulse/internal/handler/stream"
	"coinpulse/internal/model/entity"
	"coinpulse/internal/router"
	"coinpulse/internal/scanner"
	"coinpulse/internal/scoring"
	"coinpulse/internal/tracker"
	"coinpulse/pkg/cache"
	"coinpulse/pkg/db"
	"coinpulse/pkg/kafka"
	"coinpulse/pkg/logger"
	"coinpulse/pkg/push/apns"

	"github.com/go-redis/redis/v8"
)

// 组装整个服务：存储 -> 推送渠道 -> 扫描器 -> HTTP
// mysql/redis/kafka/apns 都是可选依赖，没配就跳过对应能力

func Run() {
	c := &conf.AppConfig

	// --- 存储 ---
	var alertDao dao.AlertDAO
	if c.Db.Host != "" {
		gdb := db.Init(db.NewConfig(c.Db.Username, c.Db.Password, c.Db.Host, c.Db.Port, c.Db.DbName))
		if err := gdb.AutoMigrate(&entity.AlertHistory{}, &entity.PairHigh{}, &entity.AlertState{}); err != nil {
			logger.Fatalf("auto migrate failed: %v", err)
		}
		alertDao = dao.NewAlertDao(gdb)
	} else {
		logger.Warn("database not configured, alert history and TSL state will not survive restarts")
	}

	var rdb *redis.Client
	if c.Redis.Addr != "" {
		cache.InitRedis(c.Redis)
		rdb = cache.GetRedisClient()
	} else {
		logger.Warn("redis not configured, alert cooldown disabled")
	}

	// --- 推送渠道 ---
	tg := alertsvc.NewTelegramClient(c.Telegram)
	if !tg.Enabled() {
		logger.Warn("telegram not configured")
	}

	var push *apns.Apns
	if c.Apns.KeyFile != "" {
		var err error
		push, err = apns.NewTokenApns(&c.Apns)
		if err != nil {
			logger.Fatalf("init apns failed: %v", err)
		}
	}

	var producer kafka.ProducerService
	if c.Kafka.Broker != "" {
		producer = kafka.NewKafkaProducer(c.Kafka.Broker, c.Kafka.Topic)
	}

	hub := stream.NewHub()
	formatter := alertsvc.NewFormatter(c.Scanner.Timezone)
	dispatcher := alertsvc.NewDispatcher(tg, push, c.Apns.DeviceTokens, producer, hub, alertDao, rdb, c.Scanner.Cooldown.D())

	// --- 扫描器 ---
	rules := make(map[string]scoring.RuleSet, len(c.Scores))
	for interval, sc := range c.Scores {
		rules[interval] = scoring.NewRuleSet(sc)
	}

	ctx, cancel := context.WithCancel(context.Background())
	tr := tracker.New(ctx, alertDao)
	ex := exchange.NewBinanceClient(c.Exchange)
	sc := scanner.New(ex, rules, tr, dispatcher, formatter, c.Scanner)
	go sc.Run(ctx)

	// --- HTTP ---
	ah := alerthandler.NewHandler(dispatcher, formatter, alertDao, c.TestKey)
	srv := NewServer(c)
	srv.RegisterOnShutdown(func() {
		cancel()
		if producer != nil {
			producer.Close()
		}
		cache.CloseRedis()
		logger.Sync()
	})
	srv.Run(router.New(ah, hub))
}
