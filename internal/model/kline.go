package model

import "time"

// Kline 一根K线，时间升序存储
type Kline struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Ticker24h 24小时行情快照
type Ticker24h struct {
	Symbol             string  `json:"symbol"`
	LastPrice          float64 `json:"last_price"`
	PriceChangePercent float64 `json:"price_change_percent"`
	Volume             float64 `json:"volume"`       // 成交量（币）
	QuoteVolume        float64 `json:"quote_volume"` // 成交额（USDT）
}
