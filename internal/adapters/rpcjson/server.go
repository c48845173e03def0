package rpcjson

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/habittrack/internal/application"
	"github.com/atvirokodosprendimai/habittrack/internal/domain"
)

// Server exposes the habit service as JSON-RPC 2.0 over a unix socket, one
// JSON document per request, for local tooling that bypasses HTTP.
type Server struct {
	service  *application.HabitService
	listener net.Listener
	path     string
}

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      any             `json:"id"`
}

type response struct {
	JSONRPC string    `json:"jsonrpc"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
	ID      any       `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func Start(path string, service *application.HabitService) (*Server, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("rpc socket path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		_ = os.Remove(path)
		return nil, err
	}

	s := &Server{service: service, listener: ln, path: path}
	go s.serve()
	return s, nil
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConn(conn)
	}
}

func (s *Server) Close() error {
	err := s.listener.Close()
	_ = os.Remove(s.path)
	return err
}

func (s *Server) handleConn(conn net.Conn) {
	defer func() { _ = conn.Close() }()
	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			_ = enc.Encode(response{JSONRPC: "2.0", Error: &rpcError{Code: -32700, Message: "parse error"}, ID: nil})
			return
		}

		resp := s.dispatch(context.Background(), req)
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req request) response {
	if req.JSONRPC != "2.0" || strings.TrimSpace(req.Method) == "" {
		return response{JSONRPC: "2.0", Error: &rpcError{Code: -32600, Message: "invalid request"}, ID: req.ID}
	}

	switch req.Method {
	case "habits.create":
		var p struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		if !decodeParams(req.Params, &p) {
			return invalidParams(req.ID)
		}
		out, err := s.service.CreateHabit(ctx, p.Name, p.Description)
		if err != nil {
			return appError(req.ID, err)
		}
		return result(req.ID, out)
	case "habits.list":
		var p struct {
			IncludeArchived bool `json:"include_archived"`
		}
		_ = decodeParams(req.Params, &p)
		out, err := s.service.ListHabits(ctx, p.IncludeArchived)
		if err != nil {
			return internalError(req.ID, err)
		}
		return result(req.ID, out)
	case "habits.archived.list":
		out, err := s.service.ListArchivedHabits(ctx)
		if err != nil {
			return internalError(req.ID, err)
		}
		return result(req.ID, out)
	case "habits.get":
		p, ok := habitParams(req.Params)
		if !ok {
			return invalidParams(req.ID)
		}
		out, err := s.service.GetHabit(ctx, p.HabitID)
		if err != nil {
			return appError(req.ID, err)
		}
		return result(req.ID, out)
	case "habits.update":
		var p struct {
			HabitID     uint    `json:"habit_id"`
			Name        *string `json:"name"`
			Description *string `json:"description"`
		}
		if !decodeParams(req.Params, &p) || p.HabitID == 0 {
			return invalidParams(req.ID)
		}
		out, err := s.service.UpdateHabit(ctx, p.HabitID, p.Name, p.Description)
		if err != nil {
			return appError(req.ID, err)
		}
		return result(req.ID, out)
	case "habits.archive":
		p, ok := habitParams(req.Params)
		if !ok {
			return invalidParams(req.ID)
		}
		out, err := s.service.ArchiveHabit(ctx, p.HabitID)
		if err != nil {
			return appError(req.ID, err)
		}
		return result(req.ID, out)
	case "habits.unarchive":
		p, ok := habitParams(req.Params)
		if !ok {
			return invalidParams(req.ID)
		}
		out, err := s.service.UnarchiveHabit(ctx, p.HabitID)
		if err != nil {
			return appError(req.ID, err)
		}
		return result(req.ID, out)
	case "habits.delete":
		p, ok := habitParams(req.Params)
		if !ok {
			return invalidParams(req.ID)
		}
		if err := s.service.DeleteHabit(ctx, p.HabitID); err != nil {
			return appError(req.ID, err)
		}
		return result(req.ID, map[string]any{"ok": true})
	case "habits.rebuild":
		p, ok := habitParams(req.Params)
		if !ok {
			return invalidParams(req.ID)
		}
		if err := s.service.RebuildAggregates(ctx, p.HabitID); err != nil {
			return appError(req.ID, err)
		}
		return result(req.ID, map[string]any{"ok": true})
	case "aggregates.list":
		p, ok := habitParams(req.Params)
		if !ok {
			return invalidParams(req.ID)
		}
		out, err := s.service.ListAggregates(ctx, p.HabitID)
		if err != nil {
			return appError(req.ID, err)
		}
		return result(req.ID, out)
	case "aggregates.day":
		var p struct {
			HabitID uint   `json:"habit_id"`
			Day     string `json:"day"`
		}
		if !decodeParams(req.Params, &p) || p.HabitID == 0 || p.Day == "" {
			return invalidParams(req.ID)
		}
		out, err := s.service.AggregateForDay(ctx, p.HabitID, p.Day)
		if err != nil {
			return appError(req.ID, err)
		}
		return result(req.ID, out)
	case "events.log":
		var p struct {
			HabitID   uint       `json:"habit_id"`
			EventType string     `json:"event_type"`
			Timestamp *time.Time `json:"timestamp"`
			Source    string     `json:"source"`
			ClientTag string     `json:"client_tag"`
		}
		if !decodeParams(req.Params, &p) || p.HabitID == 0 {
			return invalidParams(req.ID)
		}
		out, err := s.service.LogEvent(ctx, p.HabitID, p.EventType, p.Timestamp, p.Source, p.ClientTag)
		if err != nil {
			return appError(req.ID, err)
		}
		return result(req.ID, out)
	case "events.undo":
		var p struct {
			HabitID       *uint `json:"habit_id"`
			WithinSeconds int   `json:"within_seconds"`
		}
		_ = decodeParams(req.Params, &p)
		out, err := s.service.UndoLastEvent(ctx, p.HabitID, time.Duration(p.WithinSeconds)*time.Second)
		if err != nil {
			return appError(req.ID, err)
		}
		return result(req.ID, out)
	case "events.list":
		var p struct {
			HabitID       uint `json:"habit_id"`
			IncludeUndone bool `json:"include_undone"`
		}
		if !decodeParams(req.Params, &p) || p.HabitID == 0 {
			return invalidParams(req.ID)
		}
		out, err := s.service.ListEvents(ctx, p.HabitID, p.IncludeUndone)
		if err != nil {
			return appError(req.ID, err)
		}
		return result(req.ID, out)
	case "status.today":
		p, ok := habitParams(req.Params)
		if !ok {
			return invalidParams(req.ID)
		}
		out, err := s.service.StatusToday(ctx, p.HabitID)
		if err != nil {
			return appError(req.ID, err)
		}
		return result(req.ID, out)
	case "status.all":
		statuses, err := s.service.StatusAllToday(ctx)
		if err != nil {
			return internalError(req.ID, err)
		}
		out := make(map[string]domain.TodayStatus, len(statuses))
		for id, status := range statuses {
			out[strconv.FormatUint(uint64(id), 10)] = status
		}
		return result(req.ID, out)
	case "analytics.habit":
		p, ok := habitParams(req.Params)
		if !ok {
			return invalidParams(req.ID)
		}
		out, err := s.service.HabitAnalytics(ctx, p.HabitID)
		if err != nil {
			return appError(req.ID, err)
		}
		return result(req.ID, out)
	case "analytics.summary":
		out, err := s.service.Summary(ctx)
		if err != nil {
			return internalError(req.ID, err)
		}
		return result(req.ID, out)
	default:
		return response{JSONRPC: "2.0", Error: &rpcError{Code: -32601, Message: "method not found"}, ID: req.ID}
	}
}

type habitIDParams struct {
	HabitID uint `json:"habit_id"`
}

func habitParams(raw json.RawMessage) (habitIDParams, bool) {
	var p habitIDParams
	if !decodeParams(raw, &p) || p.HabitID == 0 {
		return habitIDParams{}, false
	}
	return p, true
}

func decodeParams(raw json.RawMessage, out any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func result(id any, payload any) response {
	return response{JSONRPC: "2.0", Result: payload, ID: id}
}

func invalidParams(id any) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: -32602, Message: "invalid params"}, ID: id}
}

// appError maps the service failure taxonomy onto application-level codes so
// clients can branch without parsing messages.
func appError(id any, err error) response {
	code := 40000
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNothingToUndo):
		code = 40400
	case errors.Is(err, domain.ErrDuplicateName),
		errors.Is(err, domain.ErrHabitArchived),
		errors.Is(err, domain.ErrAlreadyUndone):
		code = 40900
	case errors.Is(err, domain.ErrInvalidInput):
		code = 40000
	case errors.Is(err, domain.ErrConsistencyFault):
		code = 50000
	}
	return response{JSONRPC: "2.0", Error: &rpcError{Code: code, Message: err.Error()}, ID: id}
}

func internalError(id any, err error) response {
	return response{JSONRPC: "2.0", Error: &rpcError{Code: 50000, Message: fmt.Sprintf("internal error: %v", err)}, ID: id}
}
