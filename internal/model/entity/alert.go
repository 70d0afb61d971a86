package entity

import "time"

// AlertHistory 告警历史记录
type AlertHistory struct {
	ID         string    `gorm:"primaryKey;size:36"`
	Symbol     string    `gorm:"size:32;index:idx_symbol_created"`
	Interval   string    `gorm:"size:8"`
	Kind       string    `gorm:"size:16"`
	Price      float64   `gorm:"type:double"`
	Confidence int       ``
	Content    string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"index:idx_symbol_created"`
}

func (AlertHistory) TableName() string {
	return "alert_history"
}

// PairHigh symbol+interval 的最高价水位，追踪止损用
// 落库是为了进程重启后TSL不丢上下文
type PairHigh struct {
	PairKey   string    `gorm:"primaryKey;size:48;column:pair_key"`
	High      float64   `gorm:"type:double"`
	UpdatedAt time.Time ``
}

func (PairHigh) TableName() string {
	return "pair_highs"
}

// AlertState 每个 symbol+interval+kind 的边沿触发状态
// Active=true 表示该条件当前已触发过，条件回落后重新置位
type AlertState struct {
	StateKey  string    `gorm:"primaryKey;size:64;column:state_key"`
	Active    bool      ``
	UpdatedAt time.Time ``
}

func (AlertState) TableName() string {
	return "alert_states"
}
