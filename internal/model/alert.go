package model

import "time"

// AlertKind 告警类型
type AlertKind string

const (
	AlertEntry      AlertKind = "entry"
	AlertTakeProfit AlertKind = "take_profit"
	AlertTrailStop  AlertKind = "trailing_stop"
	AlertTest       AlertKind = "test"
)

// AlertEvent 一次已决定要发出的告警，各渠道共用
type AlertEvent struct {
	ID         string    `json:"id"`
	Kind       AlertKind `json:"kind"`
	Symbol     string    `json:"symbol"`
	Interval   string    `json:"interval"`
	Price      float64   `json:"price"`
	Confidence int       `json:"confidence"`
	Title      string    `json:"title"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}
