package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/habittrack/internal/domain"
)

func newTestRepo(t *testing.T) *HabitRepository {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "habittrack_test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return NewHabitRepository(db)
}

func mustCreateHabit(t *testing.T, repo *HabitRepository, name string) domain.Habit {
	t.Helper()
	habit, err := repo.CreateHabit(context.Background(), domain.Habit{Name: name})
	if err != nil {
		t.Fatalf("create habit %q: %v", name, err)
	}
	return habit
}

func mustAppendEvent(t *testing.T, repo *HabitRepository, habitID uint, eventType string, at time.Time) domain.Event {
	t.Helper()
	ev, err := repo.AppendEvent(context.Background(), domain.Event{
		HabitID:   habitID,
		EventType: eventType,
		Timestamp: at,
		Source:    "test",
	})
	if err != nil {
		t.Fatalf("append event: %v", err)
	}
	return ev
}

func TestAppendEventMaintainsDailyAggregates(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	habit := mustCreateHabit(t, repo, "Read")

	day1 := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 21, 22, 30, 0, 0, time.UTC)

	mustAppendEvent(t, repo, habit.ID, domain.EventComplete, day1)
	mustAppendEvent(t, repo, habit.ID, domain.EventComplete, day1.Add(2*time.Hour))
	mustAppendEvent(t, repo, habit.ID, domain.EventSkip, day2)

	agg, err := repo.AggregateForDay(ctx, habit.ID, "2026-08-20")
	if err != nil {
		t.Fatalf("aggregate for day: %v", err)
	}
	if agg.Completions != 2 || agg.Skips != 0 {
		t.Fatalf("day 2026-08-20: got %d completions %d skips, want 2/0", agg.Completions, agg.Skips)
	}

	agg, err = repo.AggregateForDay(ctx, habit.ID, "2026-08-21")
	if err != nil {
		t.Fatalf("aggregate for day: %v", err)
	}
	if agg.Completions != 0 || agg.Skips != 1 {
		t.Fatalf("day 2026-08-21: got %d completions %d skips, want 0/1", agg.Completions, agg.Skips)
	}

	// a day without events reads as zero, not as an error
	agg, err = repo.AggregateForDay(ctx, habit.ID, "2026-08-22")
	if err != nil {
		t.Fatalf("aggregate for empty day: %v", err)
	}
	if agg.Completions != 0 || agg.Skips != 0 {
		t.Fatalf("empty day should be zero, got %+v", agg)
	}
}

func TestRebuildMatchesIncrementalAggregates(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	habit := mustCreateHabit(t, repo, "Exercise")

	base := time.Date(2026, 8, 1, 7, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		eventType := domain.EventComplete
		if i%3 == 0 {
			eventType = domain.EventSkip
		}
		mustAppendEvent(t, repo, habit.ID, eventType, base.AddDate(0, 0, i))
	}
	// undo one to make sure tombstones are excluded from the replay too
	now := base.AddDate(0, 0, 9).Add(time.Minute)
	if _, err := repo.UndoEvent(ctx, &habit.ID, now.Add(-2*time.Minute), now); err != nil {
		t.Fatalf("undo: %v", err)
	}

	incremental, err := repo.ListAggregates(ctx, habit.ID)
	if err != nil {
		t.Fatalf("list aggregates: %v", err)
	}

	if err := repo.RebuildAggregates(ctx, habit.ID); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	rebuilt, err := repo.ListAggregates(ctx, habit.ID)
	if err != nil {
		t.Fatalf("list aggregates after rebuild: %v", err)
	}

	toCounts := func(aggs []domain.DailyAggregate) map[string][2]int {
		out := make(map[string][2]int, len(aggs))
		for _, agg := range aggs {
			out[agg.Day] = [2]int{agg.Completions, agg.Skips}
		}
		return out
	}
	before, after := toCounts(incremental), toCounts(rebuilt)
	for day, counts := range before {
		if counts == [2]int{0, 0} {
			continue // rebuild drops empty rows, incremental keeps them
		}
		if after[day] != counts {
			t.Fatalf("day %s: incremental %v, rebuilt %v", day, counts, after[day])
		}
	}
	for day, counts := range after {
		if before[day] != counts {
			t.Fatalf("day %s: rebuilt %v not present incrementally", day, counts)
		}
	}
}

func TestUndoTombstonesEventAndDecrementsAggregate(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	habit := mustCreateHabit(t, repo, "Meditate")

	at := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	logged := mustAppendEvent(t, repo, habit.ID, domain.EventComplete, at)

	now := at.Add(30 * time.Second)
	undone, err := repo.UndoEvent(ctx, &habit.ID, now.Add(-60*time.Second), now)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if undone.ID != logged.ID {
		t.Fatalf("undid event %d, want %d", undone.ID, logged.ID)
	}
	if !undone.Undone() {
		t.Fatalf("returned event should carry its tombstone")
	}

	// the row stays in the log as a tombstone
	events, err := repo.ListEvents(ctx, habit.ID, true)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 || !events[0].Undone() {
		t.Fatalf("expected one tombstoned event, got %+v", events)
	}
	visible, err := repo.ListEvents(ctx, habit.ID, false)
	if err != nil {
		t.Fatalf("list visible events: %v", err)
	}
	if len(visible) != 0 {
		t.Fatalf("tombstoned event still visible: %+v", visible)
	}

	// the aggregate returns to zero but the row survives
	agg, err := repo.AggregateForDay(ctx, habit.ID, "2026-08-25")
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if agg.Completions != 0 || agg.Skips != 0 {
		t.Fatalf("aggregate not restored: %+v", agg)
	}

	// a second undo of the same event is a distinct failure
	_, err = repo.UndoEvent(ctx, &habit.ID, now.Add(-60*time.Second), now)
	if !errors.Is(err, domain.ErrAlreadyUndone) {
		t.Fatalf("second undo: got %v, want ErrAlreadyUndone", err)
	}
}

func TestUndoWithNoRecentEvent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	habit := mustCreateHabit(t, repo, "Journal")

	old := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	mustAppendEvent(t, repo, habit.ID, domain.EventComplete, old)

	// event is outside the window
	now := old.Add(10 * time.Minute)
	_, err := repo.UndoEvent(ctx, &habit.ID, now.Add(-60*time.Second), now)
	if !errors.Is(err, domain.ErrNothingToUndo) {
		t.Fatalf("got %v, want ErrNothingToUndo", err)
	}
}

func TestUndoGlobalPicksMostRecentAcrossHabits(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	first := mustCreateHabit(t, repo, "Read")
	second := mustCreateHabit(t, repo, "Run")

	at := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	mustAppendEvent(t, repo, first.ID, domain.EventComplete, at)
	latest := mustAppendEvent(t, repo, second.ID, domain.EventSkip, at.Add(5*time.Second))

	now := at.Add(20 * time.Second)
	undone, err := repo.UndoEvent(ctx, nil, now.Add(-60*time.Second), now)
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if undone.ID != latest.ID || undone.HabitID != second.ID {
		t.Fatalf("global undo hit event %d of habit %d, want %d of %d", undone.ID, undone.HabitID, latest.ID, second.ID)
	}
}

func TestFindHabitByNameIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	habit := mustCreateHabit(t, repo, "Morning Run")

	found, err := repo.FindHabitByName(ctx, "  MORNING run ")
	if err != nil {
		t.Fatalf("find by name: %v", err)
	}
	if found.ID != habit.ID {
		t.Fatalf("found habit %d, want %d", found.ID, habit.ID)
	}

	// archived habits still occupy their name
	archivedAt := time.Now().UTC()
	if _, err := repo.SetHabitArchived(ctx, habit.ID, &archivedAt); err != nil {
		t.Fatalf("archive: %v", err)
	}
	found, err = repo.FindHabitByName(ctx, "morning run")
	if err != nil {
		t.Fatalf("find archived by name: %v", err)
	}
	if found.ID != habit.ID || found.Active {
		t.Fatalf("expected archived habit %d, got %+v", habit.ID, found)
	}

	if _, err := repo.FindHabitByName(ctx, "unknown"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestDeleteHabitRemovesEventsAndAggregates(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	habit := mustCreateHabit(t, repo, "Stretch")
	keeper := mustCreateHabit(t, repo, "Walk")

	at := time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC)
	mustAppendEvent(t, repo, habit.ID, domain.EventComplete, at)
	mustAppendEvent(t, repo, keeper.ID, domain.EventComplete, at)

	if err := repo.DeleteHabit(ctx, habit.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := repo.GetHabit(ctx, habit.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("habit still readable after delete: %v", err)
	}
	events, err := repo.ListEvents(ctx, habit.ID, true)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events survived delete: %+v", events)
	}
	aggs, err := repo.ListAggregates(ctx, habit.ID)
	if err != nil {
		t.Fatalf("list aggregates: %v", err)
	}
	if len(aggs) != 0 {
		t.Fatalf("aggregates survived delete: %+v", aggs)
	}

	// the other habit's history is untouched
	keeperEvents, err := repo.ListEvents(ctx, keeper.ID, true)
	if err != nil {
		t.Fatalf("list keeper events: %v", err)
	}
	if len(keeperEvents) != 1 {
		t.Fatalf("keeper history changed: %+v", keeperEvents)
	}

	if err := repo.DeleteHabit(ctx, habit.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second delete: got %v, want ErrNotFound", err)
	}
}

func TestAppendEventRejectsMissingHabit(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.AppendEvent(ctx, domain.Event{
		HabitID:   999,
		EventType: domain.EventComplete,
		Timestamp: time.Now().UTC(),
	})
	if !errors.Is(err, domain.ErrConsistencyFault) {
		t.Fatalf("got %v, want ErrConsistencyFault", err)
	}

	// the failed append must leave no trace
	events, listErr := repo.ListEvents(ctx, 999, true)
	if listErr != nil {
		t.Fatalf("list events: %v", listErr)
	}
	if len(events) != 0 {
		t.Fatalf("orphan event written: %+v", events)
	}
}

func TestUndoAbortsWhenCounterWouldGoNegative(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	habit := mustCreateHabit(t, repo, "Read")

	now := time.Now().UTC()
	ev := mustAppendEvent(t, repo, habit.ID, domain.EventComplete, now)

	// zero the counter behind the repository's back so the log and the
	// aggregates disagree
	if err := repo.db.Exec("UPDATE daily_agg SET completions = 0 WHERE habit_id = ?", habit.ID).Error; err != nil {
		t.Fatalf("corrupt aggregate: %v", err)
	}

	_, err := repo.UndoEvent(ctx, &habit.ID, now.Add(-60*time.Second), now)
	if !errors.Is(err, domain.ErrConsistencyFault) {
		t.Fatalf("got %v, want ErrConsistencyFault", err)
	}

	// the transaction rolled back: the event must not be tombstoned
	events, listErr := repo.ListEvents(ctx, habit.ID, false)
	if listErr != nil {
		t.Fatalf("list events: %v", listErr)
	}
	if len(events) != 1 || events[0].ID != ev.ID {
		t.Fatalf("expected the event to survive, got %+v", events)
	}
	if events[0].UndoneAt != nil {
		t.Fatalf("event tombstoned despite rollback: %+v", events[0])
	}
}

func TestLatestEventsForDayPicksLastPerHabit(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	first := mustCreateHabit(t, repo, "Read")
	second := mustCreateHabit(t, repo, "Run")

	at := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	mustAppendEvent(t, repo, first.ID, domain.EventSkip, at)
	mustAppendEvent(t, repo, first.ID, domain.EventComplete, at.Add(3*time.Hour))
	mustAppendEvent(t, repo, second.ID, domain.EventComplete, at.Add(time.Hour))
	// next day, must not bleed into the queried one
	mustAppendEvent(t, repo, second.ID, domain.EventSkip, at.AddDate(0, 0, 1))

	latest, err := repo.LatestEventsForDay(ctx, "2026-08-25")
	if err != nil {
		t.Fatalf("latest events: %v", err)
	}
	byHabit := make(map[uint]domain.Event, len(latest))
	for _, ev := range latest {
		byHabit[ev.HabitID] = ev
	}
	if byHabit[first.ID].EventType != domain.EventComplete {
		t.Fatalf("habit %d: got %q, want latest complete", first.ID, byHabit[first.ID].EventType)
	}
	if byHabit[second.ID].EventType != domain.EventComplete {
		t.Fatalf("habit %d: got %q, want complete from queried day", second.ID, byHabit[second.ID].EventType)
	}
}
