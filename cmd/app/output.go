package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/atvirokodosprendimai/habittrack/internal/domain"
)

func printJSON(v any) error {
	b, err := jsonMarshal(v)
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func printKV(rows [][2]string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	_ = w.Flush()
}

func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Println("no results")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatMaybeTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}

func formatRate(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", *v*100)
}

func printHabits(items []domain.Habit) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		state := "active"
		if !item.Active {
			state = "archived"
		}
		rows = append(rows, []string{
			strconv.FormatUint(uint64(item.ID), 10),
			item.Name,
			state,
			item.Description,
			formatTime(item.CreatedAt),
		})
	}
	printTable([]string{"ID", "NAME", "STATE", "DESCRIPTION", "CREATED_AT"}, rows)
}

func printHabit(item domain.Habit) {
	state := "active"
	if !item.Active {
		state = "archived"
	}
	printKV([][2]string{
		{"id", strconv.FormatUint(uint64(item.ID), 10)},
		{"name", item.Name},
		{"state", state},
		{"description", item.Description},
		{"archived_at", formatMaybeTime(item.ArchivedAt)},
		{"created_at", formatTime(item.CreatedAt)},
	})
}

func printEvents(items []domain.Event) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		undone := "-"
		if item.Undone() {
			undone = formatTime(*item.UndoneAt)
		}
		rows = append(rows, []string{
			strconv.FormatUint(uint64(item.ID), 10),
			strconv.FormatUint(uint64(item.HabitID), 10),
			item.EventType,
			formatTime(item.Timestamp),
			item.Source,
			undone,
		})
	}
	printTable([]string{"ID", "HABIT_ID", "TYPE", "AT", "SOURCE", "UNDONE_AT"}, rows)
}

func printEvent(item domain.Event) {
	printKV([][2]string{
		{"id", strconv.FormatUint(uint64(item.ID), 10)},
		{"habit_id", strconv.FormatUint(uint64(item.HabitID), 10)},
		{"type", item.EventType},
		{"at", formatTime(item.Timestamp)},
		{"source", item.Source},
		{"undone_at", formatMaybeTime(item.UndoneAt)},
	})
}

func printAggregates(items []domain.DailyAggregate) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.Day,
			strconv.Itoa(item.Completions),
			strconv.Itoa(item.Skips),
		})
	}
	printTable([]string{"DAY", "COMPLETIONS", "SKIPS"}, rows)
}

func printStatus(item domain.TodayStatus) {
	printKV([][2]string{
		{"status", item.Status},
		{"last_time", formatMaybeTime(item.LastTime)},
		{"can_edit", strconv.FormatBool(item.CanEdit)},
	})
}

func printStatusAll(statuses map[string]domain.TodayStatus) {
	ids := make([]string, 0, len(statuses))
	for id := range statuses {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, _ := strconv.Atoi(ids[i])
		b, _ := strconv.Atoi(ids[j])
		return a < b
	})
	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		s := statuses[id]
		rows = append(rows, []string{id, s.Status, formatMaybeTime(s.LastTime)})
	}
	printTable([]string{"HABIT_ID", "STATUS", "LAST_TIME"}, rows)
}

func printAnalytics(item domain.HabitAnalytics) {
	printKV([][2]string{
		{"habit_id", strconv.FormatUint(uint64(item.HabitID), 10)},
		{"name", item.Name},
		{"current_streak", strconv.Itoa(item.CurrentStreak)},
		{"longest_streak", strconv.Itoa(item.LongestStreak)},
		{"rate_7d", formatRate(item.Rate7d)},
		{"rate_30d", formatRate(item.Rate30d)},
		{"trend", item.Trend},
	})
}

func printSummary(report domain.SummaryReport) {
	printKV([][2]string{
		{"habits", strconv.Itoa(report.Overview.TotalHabits)},
		{"archived", strconv.Itoa(report.Overview.ArchivedHabits)},
		{"completions_today", strconv.Itoa(report.Overview.CompletionsToday)},
		{"completions_7d", strconv.Itoa(report.Overview.Completions7d)},
		{"completions_30d", strconv.Itoa(report.Overview.Completions30d)},
		{"rate_30d", formatRate(report.Overview.CompletionRate30d)},
	})

	if len(report.Habits) > 0 {
		fmt.Println()
		rows := make([][]string, 0, len(report.Habits))
		for _, item := range report.Habits {
			rows = append(rows, []string{
				strconv.FormatUint(uint64(item.HabitID), 10),
				item.Name,
				strconv.Itoa(item.CurrentStreak),
				strconv.Itoa(item.LongestStreak),
				formatRate(item.Rate7d),
				formatRate(item.Rate30d),
				item.Trend,
			})
		}
		printTable([]string{"ID", "NAME", "STREAK", "LONGEST", "RATE_7D", "RATE_30D", "TREND"}, rows)
	}

	if len(report.DailyBreakdown7d) > 0 {
		fmt.Println()
		rows := make([][]string, 0, len(report.DailyBreakdown7d))
		for _, day := range report.DailyBreakdown7d {
			rows = append(rows, []string{day.Day, strconv.Itoa(day.Completions)})
		}
		printTable([]string{"DAY", "COMPLETIONS"}, rows)
	}

	if len(report.TopHabits30d) > 0 {
		fmt.Println()
		rows := make([][]string, 0, len(report.TopHabits30d))
		for _, top := range report.TopHabits30d {
			rows = append(rows, []string{
				strconv.FormatUint(uint64(top.HabitID), 10),
				top.Name,
				strconv.Itoa(top.Completions),
			})
		}
		printTable([]string{"ID", "NAME", "COMPLETIONS_30D"}, rows)
	}
}
