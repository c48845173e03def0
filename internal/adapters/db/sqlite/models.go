package sqlite

import "time"

type HabitModel struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"not null;uniqueIndex"`
	Description string `gorm:"not null;default:''"`
	Active      bool   `gorm:"not null;default:true"`
	ArchivedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (HabitModel) TableName() string { return "habits" }

type EventModel struct {
	ID        uint      `gorm:"primaryKey"`
	HabitID   uint      `gorm:"not null;index;index:idx_habit_logs_habit_ts"`
	EventType string    `gorm:"not null"`
	Timestamp time.Time `gorm:"not null;index;index:idx_habit_logs_habit_ts"`
	Source    string    `gorm:"not null;default:'manual'"`
	ClientTag string    `gorm:"not null;default:''"`
	UndoneAt  *time.Time
	CreatedAt time.Time
}

func (EventModel) TableName() string { return "habit_logs" }

type DailyAggregateModel struct {
	ID          uint   `gorm:"primaryKey"`
	HabitID     uint   `gorm:"not null;index:idx_daily_agg_habit_day,unique"`
	Day         string `gorm:"not null;index:idx_daily_agg_habit_day,unique"`
	Completions int    `gorm:"not null;default:0"`
	Skips       int    `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (DailyAggregateModel) TableName() string { return "daily_agg" }
