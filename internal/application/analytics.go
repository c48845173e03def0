package application

import (
	"errors"
	"time"

	"github.com/atvirokodosprendimai/habittrack/internal/domain"
)

// trendThreshold is the minimum rate shift between the trailing and the
// preceding 7-day window before the trend leaves "stable".
const trendThreshold = 0.10

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

// completedDays extracts the set of days with at least one completion.
// Skip-only days do not count toward streaks or rates.
func completedDays(aggs []domain.DailyAggregate) map[string]bool {
	days := make(map[string]bool, len(aggs))
	for _, agg := range aggs {
		if agg.Completions > 0 {
			days[agg.Day] = true
		}
	}
	return days
}

// currentStreak counts consecutive completed days ending today or, when
// today has no completion yet, ending yesterday. A miss yesterday (and
// today) means the streak is 0 regardless of history.
func currentStreak(aggs []domain.DailyAggregate, now time.Time) int {
	days := completedDays(aggs)
	if len(days) == 0 {
		return 0
	}

	cursor := now.UTC()
	if !days[domain.DayOf(cursor)] {
		cursor = cursor.AddDate(0, 0, -1)
	}

	streak := 0
	for days[domain.DayOf(cursor)] {
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return streak
}

// longestStreak finds the longest run of consecutive completed days anywhere
// in the habit's history.
func longestStreak(aggs []domain.DailyAggregate) int {
	days := completedDays(aggs)

	best := 0
	for day := range days {
		start, err := time.ParseInLocation(domain.DayLayout, day, time.UTC)
		if err != nil {
			continue
		}
		// only start counting at the beginning of a run
		if days[domain.DayOf(start.AddDate(0, 0, -1))] {
			continue
		}
		run := 0
		for cursor := start; days[domain.DayOf(cursor)]; cursor = cursor.AddDate(0, 0, 1) {
			run++
		}
		if run > best {
			best = run
		}
	}
	return best
}

// completionRate is completions / (completions + skips) over the last n
// days. It returns nil when the window holds no events at all, so callers
// can tell "no data" apart from a true zero.
func completionRate(aggs []domain.DailyAggregate, now time.Time, n int) *float64 {
	window := dayWindow(now.UTC(), n)

	var completions, skips int
	for _, agg := range aggs {
		if !window[agg.Day] {
			continue
		}
		completions += agg.Completions
		skips += agg.Skips
	}
	total := completions + skips
	if total == 0 {
		return nil
	}
	rate := float64(completions) / float64(total)
	return &rate
}

// trendLabel compares the trailing 7-day completion rate to the 7 days
// before it. Both windows need at least one event, otherwise the data is
// insufficient to call a direction.
func trendLabel(aggs []domain.DailyAggregate, now time.Time) string {
	now = now.UTC()
	recent := completionRate(aggs, now, 7)
	prior := completionRate(aggs, now.AddDate(0, 0, -7), 7)
	if recent == nil || prior == nil {
		return domain.TrendInsufficientData
	}

	delta := *recent - *prior
	switch {
	case delta >= trendThreshold:
		return domain.TrendImproving
	case delta <= -trendThreshold:
		return domain.TrendDeclining
	default:
		return domain.TrendStable
	}
}
