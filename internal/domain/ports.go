package domain

import (
	"context"
	"time"
)

type HabitRepository interface {
	CreateHabit(ctx context.Context, value Habit) (Habit, error)
	GetHabit(ctx context.Context, id uint) (Habit, error)
	FindHabitByName(ctx context.Context, name string) (Habit, error)
	ListHabits(ctx context.Context, includeArchived bool) ([]Habit, error)
	ListArchivedHabits(ctx context.Context) ([]Habit, error)
	UpdateHabit(ctx context.Context, value Habit) (Habit, error)
	SetHabitArchived(ctx context.Context, id uint, archivedAt *time.Time) (Habit, error)
	DeleteHabit(ctx context.Context, id uint) error

	AppendEvent(ctx context.Context, value Event) (Event, error)
	UndoEvent(ctx context.Context, habitID *uint, cutoff, now time.Time) (Event, error)
	ListEvents(ctx context.Context, habitID uint, includeUndone bool) ([]Event, error)
	LatestEventForDay(ctx context.Context, habitID uint, day string) (Event, error)
	LatestEventsForDay(ctx context.Context, day string) ([]Event, error)

	RebuildAggregates(ctx context.Context, habitID uint) error
	AggregateForDay(ctx context.Context, habitID uint, day string) (DailyAggregate, error)
	ListAggregates(ctx context.Context, habitID uint) ([]DailyAggregate, error)
}
