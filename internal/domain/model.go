package domain

import "time"

const (
	EventComplete = "complete"
	EventSkip     = "skip"
)

const (
	TrendImproving        = "improving"
	TrendDeclining        = "declining"
	TrendStable           = "stable"
	TrendInsufficientData = "insufficient-data"
)

// DayLayout is the calendar-day key format used everywhere a day is a
// database column or a map key. Days are always derived in UTC.
const DayLayout = "2006-01-02"

// DayOf buckets an instant into its UTC calendar day.
func DayOf(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

type Habit struct {
	ID          uint
	Name        string
	Description string
	Active      bool
	ArchivedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Event struct {
	ID        uint
	HabitID   uint
	EventType string
	Timestamp time.Time
	Source    string
	ClientTag string
	UndoneAt  *time.Time
	CreatedAt time.Time
}

// Undone reports whether the event has been reverted. Undone events stay in
// the log as tombstones and no longer contribute to aggregates.
func (e Event) Undone() bool {
	return e.UndoneAt != nil
}

// DailyAggregate is the cached per-habit, per-day event summary. Events are
// the source of truth; every aggregate row must be reproducible by replaying
// the habit's non-undone events.
type DailyAggregate struct {
	ID          uint
	HabitID     uint
	Day         string
	Completions int
	Skips       int
}

type TodayStatus struct {
	Status   string
	LastTime *time.Time
	CanEdit  bool
}

type HabitAnalytics struct {
	HabitID       uint
	Name          string
	CurrentStreak int
	LongestStreak int
	Rate7d        *float64
	Rate30d       *float64
	Trend         string
}

type SummaryOverview struct {
	TotalHabits       int
	ArchivedHabits    int
	CompletionsToday  int
	Completions7d     int
	Completions30d    int
	CompletionRate30d *float64
}

type DailyCompletions struct {
	Day         string
	Completions int
}

type TopHabit struct {
	HabitID     uint
	Name        string
	Completions int
}

type SummaryReport struct {
	Overview         SummaryOverview
	Habits           []HabitAnalytics
	DailyBreakdown7d []DailyCompletions
	TopHabits30d     []TopHabit
	GeneratedAt      time.Time
	Timezone         string
}
