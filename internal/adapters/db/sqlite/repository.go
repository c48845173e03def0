package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/atvirokodosprendimai/habittrack/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

// HabitRepository persists habits, their event log and the derived daily
// aggregates. All mutations take the store-level write lock and run inside a
// single transaction, so an event is never recorded without its aggregate
// delta (and vice versa).
type HabitRepository struct {
	db *gorm.DB
	mu sync.Mutex
}

func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path,
	}, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	// reduce "database is locked" errors when readers overlap a write
	if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		return nil, err
	}
	return db, nil
}

func NewHabitRepository(db *gorm.DB) *HabitRepository {
	return &HabitRepository{db: db}
}

func (r *HabitRepository) CreateHabit(ctx context.Context, value domain.Habit) (domain.Habit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := HabitModel{Name: value.Name, Description: value.Description, Active: true}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Habit{}, err
	}
	return habitFromModel(m), nil
}

func (r *HabitRepository) GetHabit(ctx context.Context, id uint) (domain.Habit, error) {
	var m HabitModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Habit{}, fmt.Errorf("habit %d: %w", id, domain.ErrNotFound)
		}
		return domain.Habit{}, err
	}
	return habitFromModel(m), nil
}

func (r *HabitRepository) FindHabitByName(ctx context.Context, name string) (domain.Habit, error) {
	var m HabitModel
	err := r.db.WithContext(ctx).
		Where("lower(name) = ?", strings.ToLower(strings.TrimSpace(name))).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Habit{}, fmt.Errorf("habit %q: %w", name, domain.ErrNotFound)
		}
		return domain.Habit{}, err
	}
	return habitFromModel(m), nil
}

func (r *HabitRepository) ListHabits(ctx context.Context, includeArchived bool) ([]domain.Habit, error) {
	q := r.db.WithContext(ctx).Model(&HabitModel{})
	if !includeArchived {
		q = q.Where("active = ?", true)
	}
	rows := make([]HabitModel, 0)
	if err := q.Order("created_at DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Habit, 0, len(rows))
	for _, m := range rows {
		result = append(result, habitFromModel(m))
	}
	return result, nil
}

func (r *HabitRepository) ListArchivedHabits(ctx context.Context) ([]domain.Habit, error) {
	rows := make([]HabitModel, 0)
	err := r.db.WithContext(ctx).
		Where("active = ?", false).
		Order("archived_at DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]domain.Habit, 0, len(rows))
	for _, m := range rows {
		result = append(result, habitFromModel(m))
	}
	return result, nil
}

func (r *HabitRepository) UpdateHabit(ctx context.Context, value domain.Habit) (domain.Habit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	updates := map[string]any{"name": value.Name, "description": value.Description}
	res := r.db.WithContext(ctx).Model(&HabitModel{}).Where("id = ?", value.ID).Updates(updates)
	if res.Error != nil {
		return domain.Habit{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Habit{}, fmt.Errorf("habit %d: %w", value.ID, domain.ErrNotFound)
	}
	var m HabitModel
	if err := r.db.WithContext(ctx).First(&m, value.ID).Error; err != nil {
		return domain.Habit{}, err
	}
	return habitFromModel(m), nil
}

func (r *HabitRepository) SetHabitArchived(ctx context.Context, id uint, archivedAt *time.Time) (domain.Habit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	updates := map[string]any{"active": archivedAt == nil, "archived_at": archivedAt}
	res := r.db.WithContext(ctx).Model(&HabitModel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return domain.Habit{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Habit{}, fmt.Errorf("habit %d: %w", id, domain.ErrNotFound)
	}
	var m HabitModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return domain.Habit{}, err
	}
	return habitFromModel(m), nil
}

func (r *HabitRepository) DeleteHabit(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&HabitModel{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("habit %d: %w", id, domain.ErrNotFound)
		}
		if err := tx.Where("habit_id = ?", id).Delete(&EventModel{}).Error; err != nil {
			return err
		}
		return tx.Where("habit_id = ?", id).Delete(&DailyAggregateModel{}).Error
	})
}

// AppendEvent records the event and applies its +1 aggregate delta in one
// transaction. The caller validates the habit's existence and active state;
// the habit check here only guards the log against orphan rows.
func (r *HabitRepository) AppendEvent(ctx context.Context, value domain.Event) (domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := EventModel{
		HabitID:   value.HabitID,
		EventType: value.EventType,
		Timestamp: value.Timestamp.UTC(),
		Source:    value.Source,
		ClientTag: value.ClientTag,
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&HabitModel{}).Where("id = ?", value.HabitID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("event references missing habit %d: %w", value.HabitID, domain.ErrConsistencyFault)
		}
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		return applyDelta(tx, value.HabitID, domain.DayOf(m.Timestamp), value.EventType, +1)
	})
	if err != nil {
		return domain.Event{}, err
	}
	return eventFromModel(m), nil
}

// UndoEvent tombstones the most recent non-undone event no older than cutoff,
// optionally scoped to one habit, and applies the matching -1 delta. The
// tombstone keeps the audit trail intact; the row is never deleted.
func (r *HabitRepository) UndoEvent(ctx context.Context, habitID *uint, cutoff, now time.Time) (domain.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out domain.Event
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("undone_at IS NULL AND timestamp >= ?", cutoff.UTC())
		if habitID != nil {
			q = q.Where("habit_id = ?", *habitID)
		}
		var m EventModel
		if err := q.Order("timestamp DESC, id DESC").First(&m).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			// distinguish "already undone" from "no recent event at all"
			probe := tx.Model(&EventModel{}).Where("timestamp >= ?", cutoff.UTC())
			if habitID != nil {
				probe = probe.Where("habit_id = ?", *habitID)
			}
			var undone int64
			if err := probe.Where("undone_at IS NOT NULL").Count(&undone).Error; err != nil {
				return err
			}
			if undone > 0 {
				return domain.ErrAlreadyUndone
			}
			return domain.ErrNothingToUndo
		}

		res := tx.Model(&EventModel{}).
			Where("id = ? AND undone_at IS NULL", m.ID).
			Update("undone_at", now.UTC())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrAlreadyUndone
		}

		if err := applyDelta(tx, m.HabitID, domain.DayOf(m.Timestamp), m.EventType, -1); err != nil {
			return err
		}

		undoneAt := now.UTC()
		m.UndoneAt = &undoneAt
		out = eventFromModel(m)
		return nil
	})
	if err != nil {
		return domain.Event{}, err
	}
	return out, nil
}

// applyDelta locates or lazily creates the (habit, day) aggregate row and
// shifts the counter named by eventType. A decrement that would go negative
// aborts the transaction: the log and the aggregates have diverged.
func applyDelta(tx *gorm.DB, habitID uint, day, eventType string, direction int) error {
	var column string
	switch eventType {
	case domain.EventComplete:
		column = "completions"
	case domain.EventSkip:
		column = "skips"
	default:
		return fmt.Errorf("event type %q: %w", eventType, domain.ErrInvalidInput)
	}

	agg := DailyAggregateModel{HabitID: habitID, Day: day}
	if err := tx.Where("habit_id = ? AND day = ?", habitID, day).FirstOrCreate(&agg).Error; err != nil {
		return err
	}

	if direction < 0 {
		current := agg.Completions
		if column == "skips" {
			current = agg.Skips
		}
		if current <= 0 {
			return fmt.Errorf("%s for habit %d on %s would go negative: %w",
				column, habitID, day, domain.ErrConsistencyFault)
		}
	}

	return tx.Model(&DailyAggregateModel{}).
		Where("id = ?", agg.ID).
		UpdateColumn(column, gorm.Expr(column+" + ?", direction)).Error
}

func (r *HabitRepository) ListEvents(ctx context.Context, habitID uint, includeUndone bool) ([]domain.Event, error) {
	q := r.db.WithContext(ctx).Where("habit_id = ?", habitID)
	if !includeUndone {
		q = q.Where("undone_at IS NULL")
	}
	rows := make([]EventModel, 0)
	if err := q.Order("timestamp ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Event, 0, len(rows))
	for _, m := range rows {
		result = append(result, eventFromModel(m))
	}
	return result, nil
}

func (r *HabitRepository) LatestEventForDay(ctx context.Context, habitID uint, day string) (domain.Event, error) {
	start, end, err := dayBounds(day)
	if err != nil {
		return domain.Event{}, err
	}
	var m EventModel
	err = r.db.WithContext(ctx).
		Where("habit_id = ? AND undone_at IS NULL AND timestamp >= ? AND timestamp < ?", habitID, start, end).
		Order("timestamp DESC, id DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Event{}, fmt.Errorf("no event for habit %d on %s: %w", habitID, day, domain.ErrNotFound)
		}
		return domain.Event{}, err
	}
	return eventFromModel(m), nil
}

func (r *HabitRepository) LatestEventsForDay(ctx context.Context, day string) ([]domain.Event, error) {
	start, end, err := dayBounds(day)
	if err != nil {
		return nil, err
	}

	rows := make([]EventModel, 0)
	if err := r.db.WithContext(ctx).Raw(`
SELECT e.id,
       e.habit_id,
       e.event_type,
       e.timestamp,
       e.source,
       e.client_tag,
       e.created_at
FROM habit_logs e
WHERE e.undone_at IS NULL
  AND e.timestamp >= ?
  AND e.timestamp < ?
  AND e.id = (SELECT l.id
              FROM habit_logs l
              WHERE l.habit_id = e.habit_id
                AND l.undone_at IS NULL
                AND l.timestamp >= ?
                AND l.timestamp < ?
              ORDER BY l.timestamp DESC, l.id DESC
              LIMIT 1)
`, start, end, start, end).Scan(&rows).Error; err != nil {
		return nil, err
	}

	result := make([]domain.Event, 0, len(rows))
	for _, m := range rows {
		result = append(result, eventFromModel(m))
	}
	return result, nil
}

// RebuildAggregates recomputes the habit's aggregate rows by replaying its
// non-undone events. Incremental maintenance must always agree with this.
func (r *HabitRepository) RebuildAggregates(ctx context.Context, habitID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		events := make([]EventModel, 0)
		err := tx.Where("habit_id = ? AND undone_at IS NULL", habitID).
			Order("timestamp ASC, id ASC").
			Find(&events).Error
		if err != nil {
			return err
		}

		type counts struct{ completions, skips int }
		byDay := make(map[string]*counts)
		for _, e := range events {
			day := domain.DayOf(e.Timestamp)
			c, ok := byDay[day]
			if !ok {
				c = &counts{}
				byDay[day] = c
			}
			switch e.EventType {
			case domain.EventComplete:
				c.completions++
			case domain.EventSkip:
				c.skips++
			default:
				return fmt.Errorf("logged event %d has type %q: %w", e.ID, e.EventType, domain.ErrConsistencyFault)
			}
		}

		if err := tx.Where("habit_id = ?", habitID).Delete(&DailyAggregateModel{}).Error; err != nil {
			return err
		}

		days := make([]string, 0, len(byDay))
		for day := range byDay {
			days = append(days, day)
		}
		sort.Strings(days)
		for _, day := range days {
			c := byDay[day]
			row := DailyAggregateModel{HabitID: habitID, Day: day, Completions: c.completions, Skips: c.skips}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// AggregateForDay returns the cached counters for (habit, day). A missing row
// is the valid zero state, not an error.
func (r *HabitRepository) AggregateForDay(ctx context.Context, habitID uint, day string) (domain.DailyAggregate, error) {
	var m DailyAggregateModel
	err := r.db.WithContext(ctx).Where("habit_id = ? AND day = ?", habitID, day).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.DailyAggregate{HabitID: habitID, Day: day}, nil
		}
		return domain.DailyAggregate{}, err
	}
	return aggregateFromModel(m), nil
}

func (r *HabitRepository) ListAggregates(ctx context.Context, habitID uint) ([]domain.DailyAggregate, error) {
	rows := make([]DailyAggregateModel, 0)
	err := r.db.WithContext(ctx).
		Where("habit_id = ?", habitID).
		Order("day ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make([]domain.DailyAggregate, 0, len(rows))
	for _, m := range rows {
		result = append(result, aggregateFromModel(m))
	}
	return result, nil
}

func dayBounds(day string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(domain.DayLayout, day, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("day %q: %w", day, domain.ErrInvalidInput)
	}
	return start, start.Add(24 * time.Hour), nil
}

func habitFromModel(m HabitModel) domain.Habit {
	return domain.Habit{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Active:      m.Active,
		ArchivedAt:  m.ArchivedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func eventFromModel(m EventModel) domain.Event {
	return domain.Event{
		ID:        m.ID,
		HabitID:   m.HabitID,
		EventType: m.EventType,
		Timestamp: m.Timestamp,
		Source:    m.Source,
		ClientTag: m.ClientTag,
		UndoneAt:  m.UndoneAt,
		CreatedAt: m.CreatedAt,
	}
}

func aggregateFromModel(m DailyAggregateModel) domain.DailyAggregate {
	return domain.DailyAggregate{
		ID:          m.ID,
		HabitID:     m.HabitID,
		Day:         m.Day,
		Completions: m.Completions,
		Skips:       m.Skips,
	}
}
