package dao

import (
	"context"

	"coinpulse/internal/model/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AlertDAO 告警相关的数据访问对象接口
type AlertDAO interface {
	// SaveHistory 保存告警历史
	SaveHistory(ctx context.Context, history *entity.AlertHistory) error
	// ListHistory 查询最近的告警历史，symbol为空时不过滤
	ListHistory(ctx context.Context, symbol string, limit int) ([]entity.AlertHistory, error)

	// 水位与边沿状态 (供 tracker 启动加载和增量落库)

	LoadHighs(ctx context.Context) (map[string]float64, error)
	UpsertHigh(ctx context.Context, pairKey string, high float64) error
	LoadStates(ctx context.Context) (map[string]bool, error)
	UpsertState(ctx context.Context, stateKey string, active bool) error
}

type alertDao struct {
	db *gorm.DB
}

func NewAlertDao(db *gorm.DB) AlertDAO {
	return &alertDao{db: db}
}

func (d *alertDao) SaveHistory(ctx context.Context, history *entity.AlertHistory) error {
	return d.db.WithContext(ctx).Create(history).Error
}

func (d *alertDao) ListHistory(ctx context.Context, symbol string, limit int) ([]entity.AlertHistory, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := d.db.WithContext(ctx).Model(&entity.AlertHistory{})
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}
	var rows []entity.AlertHistory
	err := q.Order("created_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (d *alertDao) LoadHighs(ctx context.Context) (map[string]float64, error) {
	var rows []entity.PairHigh
	if err := d.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	highs := make(map[string]float64, len(rows))
	for _, r := range rows {
		highs[r.PairKey] = r.High
	}
	return highs, nil
}

func (d *alertDao) UpsertHigh(ctx context.Context, pairKey string, high float64) error {
	row := entity.PairHigh{PairKey: pairKey, High: high}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pair_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"high", "updated_at"}),
	}).Create(&row).Error
}

func (d *alertDao) LoadStates(ctx context.Context) (map[string]bool, error) {
	var rows []entity.AlertState
	if err := d.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	states := make(map[string]bool, len(rows))
	for _, r := range rows {
		states[r.StateKey] = r.Active
	}
	return states, nil
}

func (d *alertDao) UpsertState(ctx context.Context, stateKey string, active bool) error {
	row := entity.AlertState{StateKey: stateKey, Active: active}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "state_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"active", "updated_at"}),
	}).Create(&row).Error
}
