package main

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

func doHabitsCreate(ctx context.Context, cfg cliConfig, name, description string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "habits.create", map[string]any{"name": name, "description": description}, out)
	}
	client := newAPIClient(cfg.Server)
	return client.request(ctx, http.MethodPost, "/api/habits", map[string]any{"name": name, "description": description}, out)
}

func doHabitsList(ctx context.Context, cfg cliConfig, includeArchived bool, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "habits.list", map[string]any{"include_archived": includeArchived}, out)
	}
	client := newAPIClient(cfg.Server)
	path := "/api/habits"
	if includeArchived {
		path += "?include_archived=true"
	}
	return client.request(ctx, http.MethodGet, path, nil, out)
}

func doHabitsArchivedList(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "habits.archived.list", map[string]any{}, out)
	}
	client := newAPIClient(cfg.Server)
	return client.request(ctx, http.MethodGet, "/api/habits/archived", nil, out)
}

func doHabitsGet(ctx context.Context, cfg cliConfig, habitID uint, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "habits.get", map[string]any{"habit_id": habitID}, out)
	}
	client := newAPIClient(cfg.Server)
	return client.request(ctx, http.MethodGet, "/api/habits/"+uintToString(habitID), nil, out)
}

func doHabitsUpdate(ctx context.Context, cfg cliConfig, habitID uint, name, description *string, out any) error {
	payload := map[string]any{}
	if name != nil {
		payload["name"] = *name
	}
	if description != nil {
		payload["description"] = *description
	}
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		payload["habit_id"] = habitID
		return client.call(ctx, "habits.update", payload, out)
	}
	client := newAPIClient(cfg.Server)
	return client.request(ctx, http.MethodPut, "/api/habits/"+uintToString(habitID), payload, out)
}

func doHabitsArchive(ctx context.Context, cfg cliConfig, habitID uint, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "habits.archive", map[string]any{"habit_id": habitID}, out)
	}
	client := newAPIClient(cfg.Server)
	return client.request(ctx, http.MethodPost, "/api/habits/"+uintToString(habitID)+"/archive", nil, out)
}

func doHabitsUnarchive(ctx context.Context, cfg cliConfig, habitID uint, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "habits.unarchive", map[string]any{"habit_id": habitID}, out)
	}
	client := newAPIClient(cfg.Server)
	return client.request(ctx, http.MethodPost, "/api/habits/"+uintToString(habitID)+"/unarchive", nil, out)
}

func doHabitsDelete(ctx context.Context, cfg cliConfig, habitID uint) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "habits.delete", map[string]any{"habit_id": habitID}, nil)
	}
	client := newAPIClient(cfg.Server)
	return client.request(ctx, http.MethodDelete, "/api/habits/"+uintToString(habitID), nil, nil)
}

func doHabitsRebuild(ctx context.Context, cfg cliConfig, habitID uint) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "habits.rebuild", map[string]any{"habit_id": habitID}, nil)
	}
	client := newAPIClient(cfg.Server)
	return client.request(ctx, http.MethodPost, "/api/habits/"+uintToString(habitID)+"/rebuild", nil, nil)
}

func doEventsLog(ctx context.Context, cfg cliConfig, habitID uint, eventType string, at *time.Time, source string, out any) error {
	payload := map[string]any{"habit_id": habitID, "event_type": eventType, "source": source}
	if at != nil {
		payload["timestamp"] = at
	}
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "events.log", payload, out)
	}
	client := newAPIClient(cfg.Server)
	return client.request(ctx, http.MethodPost, "/api/events", payload, out)
}

func doEventsUndo(ctx context.Context, cfg cliConfig, habitID *uint, withinSeconds int, out any) error {
	payload := map[string]any{"within_seconds": withinSeconds}
	if habitID != nil {
		payload["habit_id"] = *habitID
	}
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "events.undo", payload, out)
	}
	client := newAPIClient(cfg.Server)
	return client.request(ctx, http.MethodPost, "/api/events/undo", payload, out)
}

func doEventsList(ctx context.Context, cfg cliConfig, habitID uint, includeUndone bool, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "events.list", map[string]any{"habit_id": habitID, "include_undone": includeUndone}, out)
	}
	client := newAPIClient(cfg.Server)
	path := "/api/habits/" + uintToString(habitID) + "/events"
	if includeUndone {
		path += "?include_undone=true"
	}
	return client.request(ctx, http.MethodGet, path, nil, out)
}

func doAggregatesList(ctx context.Context, cfg cliConfig, habitID uint, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "aggregates.list", map[string]any{"habit_id": habitID}, out)
	}
	client := newAPIClient(cfg.Server)
	return client.request(ctx, http.MethodGet, "/api/habits/"+uintToString(habitID)+"/aggregates", nil, out)
}

func doAggregateForDay(ctx context.Context, cfg cliConfig, habitID uint, day string, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "aggregates.day", map[string]any{"habit_id": habitID, "day": day}, out)
	}
	client := newAPIClient(cfg.Server)
	return client.request(ctx, http.MethodGet, "/api/habits/"+uintToString(habitID)+"/aggregates/"+day, nil, out)
}

func doStatusToday(ctx context.Context, cfg cliConfig, habitID uint, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "status.today", map[string]any{"habit_id": habitID}, out)
	}
	client := newAPIClient(cfg.Server)
	return client.request(ctx, http.MethodGet, "/api/habits/"+uintToString(habitID)+"/status/today", nil, out)
}

func doStatusAll(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "status.all", map[string]any{}, out)
	}
	client := newAPIClient(cfg.Server)
	return client.request(ctx, http.MethodGet, "/api/status/today", nil, out)
}

func doAnalyticsHabit(ctx context.Context, cfg cliConfig, habitID uint, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "analytics.habit", map[string]any{"habit_id": habitID}, out)
	}
	client := newAPIClient(cfg.Server)
	return client.request(ctx, http.MethodGet, "/api/habits/"+uintToString(habitID)+"/analytics", nil, out)
}

func doAnalyticsSummary(ctx context.Context, cfg cliConfig, out any) error {
	if cfg.Transport == "uds" {
		client := newRPCClient(cfg.Socket)
		return client.call(ctx, "analytics.summary", map[string]any{}, out)
	}
	client := newAPIClient(cfg.Server)
	return client.request(ctx, http.MethodGet, "/api/analytics/summary", nil, out)
}

func uintToString(v uint) string {
	return fmt.Sprintf("%d", v)
}
