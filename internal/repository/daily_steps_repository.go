package repository

import (
	"context"

	"github.com/pffigueiredo/daily-step-tracker/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DailyStepsRepository struct {
	DB *gorm.DB
}

// StepsFilter 列表查询条件，StartDate/EndDate 为空表示不限
type StepsFilter struct {
	UserID    string
	StartDate string
	EndDate   string
}

func NewDailyStepsRepository(db *gorm.DB) *DailyStepsRepository {
	return &DailyStepsRepository{DB: db}
}

// Upsert 按 (user_id, date) 插入，冲突时只更新 steps 和 updated_at
func (r *DailyStepsRepository) Upsert(ctx context.Context, record *model.DailyStepRecord) error {
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"steps", "updated_at"}),
	}).Create(record).Error
}

func (r *DailyStepsRepository) FindByUserAndDate(ctx context.Context, userID, date string) (*model.DailyStepRecord, error) {
	var record model.DailyStepRecord
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *DailyStepsRepository) FindByID(ctx context.Context, id uint) (*model.DailyStepRecord, error) {
	var record model.DailyStepRecord
	if err := r.DB.WithContext(ctx).First(&record, id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// List 按日期倒序返回用户记录，日期边界均为闭区间
func (r *DailyStepsRepository) List(ctx context.Context, filter StepsFilter) ([]model.DailyStepRecord, error) {
	query := r.DB.WithContext(ctx).Where("user_id = ?", filter.UserID)
	if filter.StartDate != "" {
		query = query.Where("date >= ?", filter.StartDate)
	}
	if filter.EndDate != "" {
		query = query.Where("date <= ?", filter.EndDate)
	}

	records := make([]model.DailyStepRecord, 0)
	if err := query.Order("date DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// UpdateSteps 只修改步数，updated_at 由 gorm 自动刷新
func (r *DailyStepsRepository) UpdateSteps(ctx context.Context, record *model.DailyStepRecord, steps int) error {
	return r.DB.WithContext(ctx).Model(record).Update("steps", steps).Error
}

// DeleteByID 返回实际删除的行数
func (r *DailyStepsRepository) DeleteByID(ctx context.Context, id uint) (int64, error) {
	result := r.DB.WithContext(ctx).Delete(&model.DailyStepRecord{}, id)
	return result.RowsAffected, result.Error
}
