package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/atvirokodosprendimai/habittrack/internal/application"
	"github.com/atvirokodosprendimai/habittrack/internal/domain"
	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service *application.HabitService
}

func NewRouter(service *application.HabitService) http.Handler {
	h := &Handler{service: service}
	r := chi.NewRouter()

	r.Route("/api", func(api chi.Router) {
		api.Get("/habits", h.handleListHabits)
		api.Post("/habits", h.handleCreateHabit)
		api.Get("/habits/archived", h.handleListArchivedHabits)
		api.Get("/habits/{id}", h.handleGetHabit)
		api.Put("/habits/{id}", h.handleUpdateHabit)
		api.Delete("/habits/{id}", h.handleDeleteHabit)
		api.Post("/habits/{id}/archive", h.handleArchiveHabit)
		api.Post("/habits/{id}/unarchive", h.handleUnarchiveHabit)
		api.Post("/habits/{id}/rebuild", h.handleRebuildAggregates)
		api.Get("/habits/{id}/events", h.handleListEvents)
		api.Get("/habits/{id}/aggregates", h.handleListAggregates)
		api.Get("/habits/{id}/aggregates/{day}", h.handleAggregateForDay)
		api.Get("/habits/{id}/status/today", h.handleStatusToday)
		api.Get("/habits/{id}/analytics", h.handleHabitAnalytics)

		api.Post("/events", h.handleLogEvent)
		api.Post("/events/undo", h.handleUndoEvent)

		api.Get("/status/today", h.handleStatusAllToday)
		api.Get("/analytics/summary", h.handleSummary)
	})

	return r
}

type habitRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// absent fields stay untouched on update
type updateHabitRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type logEventRequest struct {
	HabitID   uint       `json:"habit_id"`
	EventType string     `json:"event_type"`
	Timestamp *time.Time `json:"timestamp"`
	Source    string     `json:"source"`
	ClientTag string     `json:"client_tag"`
}

type undoEventRequest struct {
	HabitID       *uint `json:"habit_id"`
	WithinSeconds int   `json:"within_seconds"`
}

func (h *Handler) handleCreateHabit(w http.ResponseWriter, r *http.Request) {
	var req habitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	v, err := h.service.CreateHabit(r.Context(), req.Name, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) handleListHabits(w http.ResponseWriter, r *http.Request) {
	includeArchived := r.URL.Query().Get("include_archived") == "true"
	items, err := h.service.ListHabits(r.Context(), includeArchived)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleListArchivedHabits(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListArchivedHabits(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleGetHabit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := h.service.GetHabit(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleUpdateHabit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateHabitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	v, err := h.service.UpdateHabit(r.Context(), id, req.Name, req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleDeleteHabit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteHabit(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleArchiveHabit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := h.service.ArchiveHabit(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleUnarchiveHabit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := h.service.UnarchiveHabit(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleRebuildAggregates(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.RebuildAggregates(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	includeUndone := r.URL.Query().Get("include_undone") == "true"
	items, err := h.service.ListEvents(r.Context(), id, includeUndone)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleListAggregates(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	items, err := h.service.ListAggregates(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleAggregateForDay(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := h.service.AggregateForDay(r.Context(), id, chi.URLParam(r, "day"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleLogEvent(w http.ResponseWriter, r *http.Request) {
	var req logEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	v, err := h.service.LogEvent(r.Context(), req.HabitID, req.EventType, req.Timestamp, req.Source, req.ClientTag)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *Handler) handleUndoEvent(w http.ResponseWriter, r *http.Request) {
	var req undoEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	within := time.Duration(req.WithinSeconds) * time.Second
	v, err := h.service.UndoLastEvent(r.Context(), req.HabitID, within)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleStatusToday(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := h.service.StatusToday(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleStatusAllToday(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.service.StatusAllToday(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	// JSON object keys are strings; render the habit IDs explicitly
	out := make(map[string]domain.TodayStatus, len(statuses))
	for id, status := range statuses {
		out[strconv.FormatUint(uint64(id), 10)] = status
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleHabitAnalytics(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	v, err := h.service.HabitAnalytics(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.Summary(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid habit id"})
		return 0, false
	}
	return uint(id), true
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusForError(err), map[string]any{"error": err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNothingToUndo):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateName),
		errors.Is(err, domain.ErrHabitArchived),
		errors.Is(err, domain.ErrAlreadyUndone):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
