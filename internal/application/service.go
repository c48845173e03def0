package application

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/habittrack/internal/domain"
	"github.com/google/uuid"
)

const (
	maxNameLen        = 120
	maxDescriptionLen = 2000

	// DefaultUndoWindow bounds how far back an undo may reach when the
	// caller does not pass an explicit window.
	DefaultUndoWindow = 60 * time.Second
)

// HabitService owns habit lifecycle, event logging with undo, and the
// analytics built on the daily aggregates. It validates and normalizes
// input, then delegates persistence to the repository.
type HabitService struct {
	repo domain.HabitRepository
	now  func() time.Time
}

func NewHabitService(repo domain.HabitRepository) *HabitService {
	return &HabitService{repo: repo, now: time.Now}
}

func (s *HabitService) CreateHabit(ctx context.Context, name, description string) (domain.Habit, error) {
	name, description, err := normalizeHabitFields(name, description)
	if err != nil {
		return domain.Habit{}, err
	}
	if err := s.checkNameFree(ctx, name, 0); err != nil {
		return domain.Habit{}, err
	}

	return s.repo.CreateHabit(ctx, domain.Habit{
		Name:        name,
		Description: description,
	})
}

func (s *HabitService) GetHabit(ctx context.Context, id uint) (domain.Habit, error) {
	return s.repo.GetHabit(ctx, id)
}

func (s *HabitService) ListHabits(ctx context.Context, includeArchived bool) ([]domain.Habit, error) {
	return s.repo.ListHabits(ctx, includeArchived)
}

func (s *HabitService) ListArchivedHabits(ctx context.Context) ([]domain.Habit, error) {
	return s.repo.ListArchivedHabits(ctx)
}

// UpdateHabit applies a partial update; nil fields keep their current value.
func (s *HabitService) UpdateHabit(ctx context.Context, id uint, name, description *string) (domain.Habit, error) {
	current, err := s.repo.GetHabit(ctx, id)
	if err != nil {
		return domain.Habit{}, err
	}

	nextName, nextDescription := current.Name, current.Description
	if name != nil {
		nextName = *name
	}
	if description != nil {
		nextDescription = *description
	}
	nextName, nextDescription, err = normalizeHabitFields(nextName, nextDescription)
	if err != nil {
		return domain.Habit{}, err
	}
	if name != nil {
		if err := s.checkNameFree(ctx, nextName, id); err != nil {
			return domain.Habit{}, err
		}
	}

	return s.repo.UpdateHabit(ctx, domain.Habit{
		ID:          id,
		Name:        nextName,
		Description: nextDescription,
	})
}

// ArchiveHabit retires the habit from active tracking. Archiving an already
// archived habit is a no-op; the original archive time is kept.
func (s *HabitService) ArchiveHabit(ctx context.Context, id uint) (domain.Habit, error) {
	habit, err := s.repo.GetHabit(ctx, id)
	if err != nil {
		return domain.Habit{}, err
	}
	if !habit.Active {
		return habit, nil
	}
	at := s.now().UTC()
	return s.repo.SetHabitArchived(ctx, id, &at)
}

func (s *HabitService) UnarchiveHabit(ctx context.Context, id uint) (domain.Habit, error) {
	habit, err := s.repo.GetHabit(ctx, id)
	if err != nil {
		return domain.Habit{}, err
	}
	if habit.Active {
		return habit, nil
	}
	return s.repo.SetHabitArchived(ctx, id, nil)
}

// DeleteHabit removes the habit together with its events and aggregates.
// Archiving is the reversible path; this one is not.
func (s *HabitService) DeleteHabit(ctx context.Context, id uint) error {
	return s.repo.DeleteHabit(ctx, id)
}

// LogEvent appends a completion or skip for the habit. Timestamp defaults to
// now, source to "manual"; a fresh client tag is minted when none is given.
func (s *HabitService) LogEvent(ctx context.Context, habitID uint, eventType string, at *time.Time, source, clientTag string) (domain.Event, error) {
	if eventType != domain.EventComplete && eventType != domain.EventSkip {
		return domain.Event{}, fmt.Errorf("event type must be %q or %q: %w",
			domain.EventComplete, domain.EventSkip, domain.ErrInvalidInput)
	}

	habit, err := s.repo.GetHabit(ctx, habitID)
	if err != nil {
		return domain.Event{}, err
	}
	if !habit.Active {
		return domain.Event{}, fmt.Errorf("habit %d: %w", habitID, domain.ErrHabitArchived)
	}

	ts := s.now().UTC()
	if at != nil {
		ts = at.UTC()
	}
	if source = strings.TrimSpace(source); source == "" {
		source = "manual"
	}
	if clientTag = strings.TrimSpace(clientTag); clientTag == "" {
		clientTag = uuid.NewString()
	}

	return s.repo.AppendEvent(ctx, domain.Event{
		HabitID:   habitID,
		EventType: eventType,
		Timestamp: ts,
		Source:    source,
		ClientTag: clientTag,
	})
}

// UndoLastEvent tombstones the most recent event still inside the undo
// window. A nil habitID undoes across all habits; within <= 0 falls back to
// DefaultUndoWindow.
func (s *HabitService) UndoLastEvent(ctx context.Context, habitID *uint, within time.Duration) (domain.Event, error) {
	if habitID != nil {
		if _, err := s.repo.GetHabit(ctx, *habitID); err != nil {
			return domain.Event{}, err
		}
	}
	if within <= 0 {
		within = DefaultUndoWindow
	}
	now := s.now().UTC()
	return s.repo.UndoEvent(ctx, habitID, now.Add(-within), now)
}

func (s *HabitService) ListEvents(ctx context.Context, habitID uint, includeUndone bool) ([]domain.Event, error) {
	if _, err := s.repo.GetHabit(ctx, habitID); err != nil {
		return nil, err
	}
	return s.repo.ListEvents(ctx, habitID, includeUndone)
}

// RebuildAggregates drops and recomputes the habit's daily rows from the
// event log. Normal operation never needs it; it repairs a store whose
// aggregates were damaged out of band.
func (s *HabitService) RebuildAggregates(ctx context.Context, habitID uint) error {
	if _, err := s.repo.GetHabit(ctx, habitID); err != nil {
		return err
	}
	return s.repo.RebuildAggregates(ctx, habitID)
}

// AggregateForDay reports the (completions, skips) pair for one habit-day.
// A missing row is the valid zero state.
func (s *HabitService) AggregateForDay(ctx context.Context, habitID uint, day string) (domain.DailyAggregate, error) {
	if _, err := s.repo.GetHabit(ctx, habitID); err != nil {
		return domain.DailyAggregate{}, err
	}
	if _, err := time.ParseInLocation(domain.DayLayout, day, time.UTC); err != nil {
		return domain.DailyAggregate{}, fmt.Errorf("day %q: %w", day, domain.ErrInvalidInput)
	}
	return s.repo.AggregateForDay(ctx, habitID, day)
}

// ListAggregates returns the habit's full daily history, oldest first.
func (s *HabitService) ListAggregates(ctx context.Context, habitID uint) ([]domain.DailyAggregate, error) {
	if _, err := s.repo.GetHabit(ctx, habitID); err != nil {
		return nil, err
	}
	return s.repo.ListAggregates(ctx, habitID)
}

// StatusToday reports the habit's effective state for the current day: the
// type of its latest non-undone event, or "none".
func (s *HabitService) StatusToday(ctx context.Context, habitID uint) (domain.TodayStatus, error) {
	return s.StatusForDay(ctx, habitID, domain.DayOf(s.now()))
}

func (s *HabitService) StatusForDay(ctx context.Context, habitID uint, day string) (domain.TodayStatus, error) {
	habit, err := s.repo.GetHabit(ctx, habitID)
	if err != nil {
		return domain.TodayStatus{}, err
	}

	ev, err := s.repo.LatestEventForDay(ctx, habitID, day)
	if err != nil {
		if isNotFound(err) {
			return domain.TodayStatus{Status: "none", CanEdit: habit.Active}, nil
		}
		return domain.TodayStatus{}, err
	}
	ts := ev.Timestamp
	return domain.TodayStatus{Status: ev.EventType, LastTime: &ts, CanEdit: habit.Active}, nil
}

// StatusAllToday returns today's status for every active habit in one pass.
func (s *HabitService) StatusAllToday(ctx context.Context) (map[uint]domain.TodayStatus, error) {
	habits, err := s.repo.ListHabits(ctx, false)
	if err != nil {
		return nil, err
	}
	latest, err := s.repo.LatestEventsForDay(ctx, domain.DayOf(s.now()))
	if err != nil {
		return nil, err
	}

	byHabit := make(map[uint]domain.Event, len(latest))
	for _, ev := range latest {
		byHabit[ev.HabitID] = ev
	}

	out := make(map[uint]domain.TodayStatus, len(habits))
	for _, h := range habits {
		status := domain.TodayStatus{Status: "none", CanEdit: true}
		if ev, ok := byHabit[h.ID]; ok {
			ts := ev.Timestamp
			status.Status = ev.EventType
			status.LastTime = &ts
		}
		out[h.ID] = status
	}
	return out, nil
}

// HabitAnalytics computes streaks, completion rates and the trend label for
// one habit from its daily aggregates.
func (s *HabitService) HabitAnalytics(ctx context.Context, habitID uint) (domain.HabitAnalytics, error) {
	habit, err := s.repo.GetHabit(ctx, habitID)
	if err != nil {
		return domain.HabitAnalytics{}, err
	}
	aggs, err := s.repo.ListAggregates(ctx, habitID)
	if err != nil {
		return domain.HabitAnalytics{}, err
	}
	return s.analyticsFor(habit, aggs), nil
}

func (s *HabitService) analyticsFor(habit domain.Habit, aggs []domain.DailyAggregate) domain.HabitAnalytics {
	today := s.now().UTC()
	return domain.HabitAnalytics{
		HabitID:       habit.ID,
		Name:          habit.Name,
		CurrentStreak: currentStreak(aggs, today),
		LongestStreak: longestStreak(aggs),
		Rate7d:        completionRate(aggs, today, 7),
		Rate30d:       completionRate(aggs, today, 30),
		Trend:         trendLabel(aggs, today),
	}
}

// Summary assembles the whole-system report: overview counters, per-habit
// analytics for active habits, the 7-day completion breakdown and the 30-day
// top habits. Archived habits count in the overview but are excluded from
// the per-habit sections.
func (s *HabitService) Summary(ctx context.Context) (domain.SummaryReport, error) {
	all, err := s.repo.ListHabits(ctx, true)
	if err != nil {
		return domain.SummaryReport{}, err
	}

	now := s.now().UTC()
	report := domain.SummaryReport{
		GeneratedAt: now,
		Timezone:    "UTC",
	}

	type habitAggs struct {
		habit domain.Habit
		aggs  []domain.DailyAggregate
	}
	active := make([]habitAggs, 0, len(all))
	for _, h := range all {
		if !h.Active {
			report.Overview.ArchivedHabits++
			continue
		}
		aggs, err := s.repo.ListAggregates(ctx, h.ID)
		if err != nil {
			return domain.SummaryReport{}, err
		}
		active = append(active, habitAggs{habit: h, aggs: aggs})
	}
	report.Overview.TotalHabits = len(active)

	today := domain.DayOf(now)
	last7 := dayWindow(now, 7)
	last30 := dayWindow(now, 30)

	dailyTotals := make(map[string]int, 7)
	var skips30 int
	type ranked struct {
		habit       domain.Habit
		completions int
	}
	ranking := make([]ranked, 0, len(active))

	for _, ha := range active {
		report.Habits = append(report.Habits, s.analyticsFor(ha.habit, ha.aggs))

		var completions30 int
		for _, agg := range ha.aggs {
			if agg.Day == today {
				report.Overview.CompletionsToday += agg.Completions
			}
			if last7[agg.Day] {
				report.Overview.Completions7d += agg.Completions
				dailyTotals[agg.Day] += agg.Completions
			}
			if last30[agg.Day] {
				report.Overview.Completions30d += agg.Completions
				completions30 += agg.Completions
				skips30 += agg.Skips
			}
		}
		ranking = append(ranking, ranked{habit: ha.habit, completions: completions30})
	}

	if total := report.Overview.Completions30d + skips30; total > 0 {
		rate := float64(report.Overview.Completions30d) / float64(total)
		report.Overview.CompletionRate30d = &rate
	}

	for i := 6; i >= 0; i-- {
		day := domain.DayOf(now.AddDate(0, 0, -i))
		report.DailyBreakdown7d = append(report.DailyBreakdown7d, domain.DailyCompletions{
			Day:         day,
			Completions: dailyTotals[day],
		})
	}

	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].completions > ranking[j].completions
	})
	for i, r := range ranking {
		if i == 5 || r.completions == 0 {
			break
		}
		report.TopHabits30d = append(report.TopHabits30d, domain.TopHabit{
			HabitID:     r.habit.ID,
			Name:        r.habit.Name,
			Completions: r.completions,
		})
	}

	return report, nil
}

// checkNameFree enforces case-insensitive name uniqueness across every
// habit, archived ones included. self is excluded so renames keeping the
// same name succeed.
func (s *HabitService) checkNameFree(ctx context.Context, name string, self uint) error {
	existing, err := s.repo.FindHabitByName(ctx, name)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	if existing.ID == self {
		return nil
	}
	return fmt.Errorf("habit %q: %w", name, domain.ErrDuplicateName)
}

func normalizeHabitFields(name, description string) (string, string, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if name == "" {
		return "", "", fmt.Errorf("name is required: %w", domain.ErrInvalidInput)
	}
	if len(name) > maxNameLen {
		return "", "", fmt.Errorf("name exceeds %d characters: %w", maxNameLen, domain.ErrInvalidInput)
	}
	if len(description) > maxDescriptionLen {
		return "", "", fmt.Errorf("description exceeds %d characters: %w", maxDescriptionLen, domain.ErrInvalidInput)
	}
	return name, description, nil
}

// dayWindow returns the set of day keys for the n days ending today.
func dayWindow(now time.Time, n int) map[string]bool {
	days := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		days[domain.DayOf(now.AddDate(0, 0, -i))] = true
	}
	return days
}
