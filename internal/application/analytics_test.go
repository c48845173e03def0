package application

import (
	"testing"
	"time"

	"github.com/atvirokodosprendimai/habittrack/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(now time.Time, offset int) string {
	return domain.DayOf(now.AddDate(0, 0, offset))
}

func aggsFromOffsets(now time.Time, completions map[int]int, skips map[int]int) []domain.DailyAggregate {
	byDay := make(map[string]*domain.DailyAggregate)
	get := func(offset int) *domain.DailyAggregate {
		key := day(now, offset)
		if agg, ok := byDay[key]; ok {
			return agg
		}
		agg := &domain.DailyAggregate{Day: key}
		byDay[key] = agg
		return agg
	}
	for offset, n := range completions {
		get(offset).Completions = n
	}
	for offset, n := range skips {
		get(offset).Skips = n
	}
	out := make([]domain.DailyAggregate, 0, len(byDay))
	for _, agg := range byDay {
		out = append(out, *agg)
	}
	return out
}

func TestCurrentStreak(t *testing.T) {
	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)

	t.Run("counts back from today", func(t *testing.T) {
		aggs := aggsFromOffsets(now, map[int]int{0: 1, -1: 1, -2: 2, -3: 1, -4: 1}, nil)
		assert.Equal(t, 5, currentStreak(aggs, now))
	})

	t.Run("today not yet done falls back to yesterday", func(t *testing.T) {
		aggs := aggsFromOffsets(now, map[int]int{-1: 1, -2: 1, -3: 1}, nil)
		assert.Equal(t, 3, currentStreak(aggs, now))
	})

	t.Run("gap yesterday resets to today only", func(t *testing.T) {
		aggs := aggsFromOffsets(now, map[int]int{0: 1, -2: 1, -3: 1}, nil)
		assert.Equal(t, 1, currentStreak(aggs, now))
	})

	t.Run("gap both today and yesterday is zero", func(t *testing.T) {
		aggs := aggsFromOffsets(now, map[int]int{-2: 1, -3: 1}, nil)
		assert.Equal(t, 0, currentStreak(aggs, now))
	})

	t.Run("skips do not extend a streak", func(t *testing.T) {
		aggs := aggsFromOffsets(now, map[int]int{0: 1}, map[int]int{-1: 1})
		assert.Equal(t, 1, currentStreak(aggs, now))
	})

	t.Run("no data", func(t *testing.T) {
		assert.Equal(t, 0, currentStreak(nil, now))
	})
}

func TestStreakBrokenByMissedDay(t *testing.T) {
	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)

	// five completed days, a missed day, then today completed
	aggs := aggsFromOffsets(now, map[int]int{
		0:  1,
		-2: 1, -3: 1, -4: 1, -5: 1, -6: 1,
	}, nil)
	assert.Equal(t, 1, currentStreak(aggs, now))
	assert.Equal(t, 5, longestStreak(aggs))
}

func TestLongestStreak(t *testing.T) {
	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)

	aggs := aggsFromOffsets(now, map[int]int{
		0: 1, -1: 1, // current run of 2
		-5: 1, -6: 1, -7: 1, -8: 1, // historical run of 4
		-20: 1,
	}, nil)
	assert.Equal(t, 4, longestStreak(aggs))
	assert.Equal(t, 2, currentStreak(aggs, now))

	assert.Equal(t, 0, longestStreak(nil))
}

func TestCompletionRate(t *testing.T) {
	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)

	t.Run("completions over completions plus skips", func(t *testing.T) {
		aggs := aggsFromOffsets(now, map[int]int{0: 2, -1: 1}, map[int]int{-2: 1})
		rate := completionRate(aggs, now, 7)
		require.NotNil(t, rate)
		assert.InDelta(t, 3.0/4.0, *rate, 1e-9)
	})

	t.Run("events outside the window are ignored", func(t *testing.T) {
		aggs := aggsFromOffsets(now, map[int]int{0: 1}, map[int]int{-8: 5})
		rate := completionRate(aggs, now, 7)
		require.NotNil(t, rate)
		assert.InDelta(t, 1.0, *rate, 1e-9)
	})

	t.Run("nil when the window has no events at all", func(t *testing.T) {
		aggs := aggsFromOffsets(now, map[int]int{-10: 1}, nil)
		assert.Nil(t, completionRate(aggs, now, 7))
	})

	t.Run("zero when only skips were logged", func(t *testing.T) {
		aggs := aggsFromOffsets(now, nil, map[int]int{0: 1, -1: 1})
		rate := completionRate(aggs, now, 7)
		require.NotNil(t, rate)
		assert.Zero(t, *rate)
	})
}

func TestTrendLabel(t *testing.T) {
	now := time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC)

	t.Run("improving", func(t *testing.T) {
		// recent 5/5 = 1.0 vs prior 2/3 = 0.67
		aggs := aggsFromOffsets(now, map[int]int{
			0: 1, -1: 1, -2: 1, -3: 1, -4: 1,
			-8: 1, -9: 1,
		}, map[int]int{-10: 1})
		assert.Equal(t, domain.TrendImproving, trendLabel(aggs, now))
	})

	t.Run("declining", func(t *testing.T) {
		// recent 1/4 = 0.25 vs prior 3/3 = 1.0
		aggs := aggsFromOffsets(now,
			map[int]int{0: 1, -7: 1, -8: 1, -9: 1},
			map[int]int{-1: 3})
		assert.Equal(t, domain.TrendDeclining, trendLabel(aggs, now))
	})

	t.Run("stable within threshold", func(t *testing.T) {
		// 1/2 = 0.5 in both windows
		aggs := aggsFromOffsets(now,
			map[int]int{0: 1, -7: 1},
			map[int]int{-1: 1, -8: 1})
		assert.Equal(t, domain.TrendStable, trendLabel(aggs, now))
	})

	t.Run("insufficient when prior window is empty", func(t *testing.T) {
		aggs := aggsFromOffsets(now, map[int]int{0: 1, -1: 1}, nil)
		assert.Equal(t, domain.TrendInsufficientData, trendLabel(aggs, now))
	})

	t.Run("insufficient when recent window is empty", func(t *testing.T) {
		aggs := aggsFromOffsets(now, map[int]int{-8: 1, -9: 1}, nil)
		assert.Equal(t, domain.TrendInsufficientData, trendLabel(aggs, now))
	})

	t.Run("insufficient with no data", func(t *testing.T) {
		assert.Equal(t, domain.TrendInsufficientData, trendLabel(nil, now))
	})
}
