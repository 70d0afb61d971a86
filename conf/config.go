package conf

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// 配置加载（交易对、阈值、推送渠道等）

// Duration 支持 "30s" "10m" 这类写法的时长配置
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// D 转回标准库类型
func (d Duration) D() time.Duration { return time.Duration(d) }

type Db struct {
	DbName   string `yaml:"dbname"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	FileName   string `yaml:"file-name"`
	TimeFormat string `yaml:"time-format"`
	MaxSize    int    `yaml:"max-size"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAge     int    `yaml:"max-age"`
	Compress   bool   `yaml:"compress"`
	LocalTime  bool   `yaml:"local-time"`
	Console    bool   `yaml:"console"`
}

// RedisConfig is used to configure redis
type RedisConfig struct {
	Addr         string `yaml:"address"`
	Password     string `yaml:"password"`
	Db           int    `yaml:"db"`
	PoolSize     int    `yaml:"pool-size"`
	MinIdleConns int    `yaml:"min-idle-conns"`
	IdleTimeout  int    `yaml:"idle-timeout"`
}

type KafkaConfig struct {
	Broker string `yaml:"broker"`
	Topic  string `yaml:"topic"`
}

type TelegramConfig struct {
	ApiBase  string `yaml:"api_base"` // 默认 https://api.telegram.org
	BotToken string `yaml:"bot_token"`
	ChatId   string `yaml:"chat_id"`
}

type ApnsConfig struct {
	Topic        string   `yaml:"topic"`
	KeyID        string   `yaml:"key_id"`
	TeamID       string   `yaml:"team_id"`
	KeyFile      string   `yaml:"key_file"` // p8密钥文件路径
	IsProd       bool     `yaml:"is_prod"`
	DeviceTokens []string `yaml:"device_tokens"`
}

// ExchangeConfig 行情数据源
type ExchangeConfig struct {
	BaseURL string   `yaml:"base_url"` // 默认 https://api.binance.com
	Timeout Duration `yaml:"timeout"`
}

// ScannerConfig 轮询调度配置
type ScannerConfig struct {
	Symbols []string `yaml:"symbols"`
	// interval -> 追踪止损回撤比例，例如 15m: 0.21
	Intervals map[string]float64 `yaml:"intervals"`
	// 趋势确认周期映射，例如 15m -> 1h
	ConfirmMap   map[string]string `yaml:"confirm-map"`
	PollInterval Duration          `yaml:"poll-interval"`
	AlignGrace   Duration          `yaml:"align-grace"` // 对齐后的等待，确保交易所K线落地
	KlineLimit   int               `yaml:"kline-limit"`
	MinHistory   int               `yaml:"min-history"`
	Concurrency  int               `yaml:"concurrency"`
	Cooldown     Duration          `yaml:"cooldown"` // 同一 symbol+interval+kind 的告警冷却
	Timezone     string            `yaml:"timezone"` // 告警消息里的时间所用时区
}

// ScoreConfig 单个周期的打分表
// 权重表是可调的，归一化分母 max-score 必须跟着权重一起维护
type ScoreConfig struct {
	VolumeSpikeWeight   float64 `yaml:"VolumeSpikeWeight"`
	TrendWeight         float64 `yaml:"TrendWeight"`
	NoSuppressionWeight float64 `yaml:"NoSuppressionWeight"`
	DivergenceWeight    float64 `yaml:"DivergenceWeight"`
	RSIWeight           float64 `yaml:"RSIWeight"`
	StochWeight         float64 `yaml:"StochWeight"`

	RSIOversold     float64 `yaml:"RSIOversold"`
	RSIOverbought   float64 `yaml:"RSIOverbought"`
	StochOversold   float64 `yaml:"StochOversold"`
	StochOverbought float64 `yaml:"StochOverbought"`

	EntryConfidence int     `yaml:"EntryConfidence"`
	MaxScore        float64 `yaml:"MaxScore"`
}

type Config struct {
	AppName      string `yaml:"app_name"`
	Listen       string `yaml:"listen"`
	Mode         string `yaml:"mode"`
	MaxPingCount int    `yaml:"max-ping-count"`
	// 手动触发测试告警的共享密钥
	TestKey string `yaml:"test_key"`

	Exchange ExchangeConfig         `yaml:"exchange"`
	Scanner  ScannerConfig          `yaml:"scanner"`
	Scores   map[string]ScoreConfig `yaml:"scores"` // key为周期，例如 15m/1h/1d
	Telegram TelegramConfig         `yaml:"telegram"`
	Apns     ApnsConfig             `yaml:"apns"`
	Db       `yaml:"database"`
	Log      LogConfig   `yaml:"log"`
	Redis    RedisConfig `yaml:"redis"`
	Kafka    KafkaConfig `yaml:"kafka"`
}

var AppConfig Config

func LoadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("Read config file error %w", err)
	}
	if err := yaml.Unmarshal(data, &AppConfig); err != nil {
		return fmt.Errorf("Unmarshal config yaml error: %w", err)
	}
	AppConfig.applyDefaults()
	return nil
}

// 配置文件里没给的字段补默认值，保证裸配置也能跑起来
func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.MaxPingCount == 0 {
		c.MaxPingCount = 10
	}
	if c.Exchange.BaseURL == "" {
		c.Exchange.BaseURL = "https://api.binance.com"
	}
	if c.Exchange.Timeout == 0 {
		c.Exchange.Timeout = Duration(10 * time.Second)
	}
	if c.Telegram.ApiBase == "" {
		c.Telegram.ApiBase = "https://api.telegram.org"
	}

	s := &c.Scanner
	if len(s.Symbols) == 0 {
		s.Symbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "DOGEUSDT", "INJUSDT"}
	}
	if len(s.Intervals) == 0 {
		s.Intervals = map[string]float64{"15m": 0.21, "1h": 0.25, "1d": 0.35}
	}
	if len(s.ConfirmMap) == 0 {
		s.ConfirmMap = map[string]string{"15m": "1h", "1h": "4h", "1d": "1w"}
	}
	if s.PollInterval == 0 {
		s.PollInterval = Duration(10 * time.Minute)
	}
	if s.AlignGrace == 0 {
		s.AlignGrace = Duration(30 * time.Second)
	}
	if s.KlineLimit == 0 {
		s.KlineLimit = 500
	}
	if s.MinHistory == 0 {
		s.MinHistory = 50
	}
	if s.Concurrency == 0 {
		s.Concurrency = 10
	}
	if s.Cooldown == 0 {
		s.Cooldown = Duration(30 * time.Minute)
	}
	if s.Timezone == "" {
		s.Timezone = "Asia/Kolkata"
	}

	if c.Scores == nil {
		c.Scores = make(map[string]ScoreConfig)
	}
	for interval := range s.Intervals {
		sc, ok := c.Scores[interval]
		if !ok {
			sc = DefaultScore()
		}
		c.Scores[interval] = sc
	}
}

// DefaultScore 默认打分表
// 权重沿用线上跑了最久的那一版：量20 趋势20 非盘整15 背离15 RSI15 KD15
func DefaultScore() ScoreConfig {
	return ScoreConfig{
		VolumeSpikeWeight:   20,
		TrendWeight:         20,
		NoSuppressionWeight: 15,
		DivergenceWeight:    15,
		RSIWeight:           15,
		StochWeight:         15,
		RSIOversold:         30,
		RSIOverbought:       70,
		StochOversold:       20,
		StochOverbought:     80,
		EntryConfidence:     70,
		MaxScore:            100,
	}
}
