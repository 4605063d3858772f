package model

import "time"

// DailyStepRecord 用户某一天的步数记录，(user_id, date) 唯一
// swagger:model
type DailyStepRecord struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"size:191;not null;uniqueIndex:idx_daily_steps_user_date,priority:1" json:"userId"`
	Date      string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_daily_steps_user_date,priority:2" json:"date"` // YYYY-MM-DD
	Steps     int       `gorm:"not null" json:"steps"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (DailyStepRecord) TableName() string {
	return "daily_steps"
}
