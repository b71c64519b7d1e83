package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"lockcycled/internal/core"
	"lockcycled/internal/store"

	"github.com/go-chi/chi/v5"
)

type sessionResponse struct {
	ID        string  `json:"id"`
	Mode      string  `json:"mode"`
	Status    string  `json:"status"`
	StartedAt string  `json:"started_at"`
	EndedAt   *string `json:"ended_at,omitempty"`
	Cycles    int     `json:"cycles"`
}

type cycleResponse struct {
	ID         string  `json:"id"`
	SessionID  string  `json:"session_id"`
	Seq        int     `json:"seq"`
	LockHoldMs int64   `json:"lock_hold_ms"`
	Status     string  `json:"status"`
	StartedAt  string  `json:"started_at"`
	EndedAt    *string `json:"ended_at,omitempty"`
	Error      *string `json:"error,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	err := s.engine.Start(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, s.engine.Status())
	case errors.Is(err, core.ErrNoSecret):
		writeError(w, http.StatusConflict, "no_secret", err.Error())
	case errors.Is(err, core.ErrMissingBinaries):
		writeError(w, http.StatusConflict, "missing_binaries", err.Error())
	case errors.Is(err, core.ErrMinIntervalTooLarge),
		errors.Is(err, core.ErrMaxIntervalTooLarge),
		errors.Is(err, core.ErrMinAboveMax):
		writeError(w, http.StatusUnprocessableEntity, "invalid_interval", err.Error())
	default:
		s.logger.Error("start cycling", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to start cycling")
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.engine.Stop()
	writeJSON(w, http.StatusAccepted, s.engine.Status())
}

type secretRequest struct {
	Value string `json:"value"`
}

func (s *Server) handleSetSecret(w http.ResponseWriter, r *http.Request) {
	var req secretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON payload")
		return
	}
	if err := s.engine.SetSecret(r.Context(), req.Value); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleClearSecret(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ClearSecret(r.Context()); err != nil {
		s.logger.Error("clear secret", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to clear secret")
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

type intervalPreviewRequest struct {
	Min     string `json:"min"`
	Max     string `json:"max"`
	Samples int    `json:"samples,omitempty"`
}

type intervalPreviewResponse struct {
	Valid   bool    `json:"valid"`
	Message string  `json:"message,omitempty"`
	Draws   []int64 `json:"draws_ms,omitempty"`
}

func (s *Server) handleIntervalPreview(w http.ResponseWriter, r *http.Request) {
	var req intervalPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, intervalPreviewResponse{Valid: false, Message: "invalid JSON payload"})
		return
	}
	min, err := core.ParseSpan(req.Min)
	if err != nil {
		writeJSON(w, http.StatusOK, intervalPreviewResponse{Valid: false, Message: err.Error()})
		return
	}
	max, err := core.ParseSpan(req.Max)
	if err != nil {
		writeJSON(w, http.StatusOK, intervalPreviewResponse{Valid: false, Message: err.Error()})
		return
	}
	if err := core.ValidateInterval(min, max); err != nil {
		writeJSON(w, http.StatusOK, intervalPreviewResponse{Valid: false, Message: err.Error()})
		return
	}
	count := req.Samples
	if count <= 0 || count > 10 {
		count = 5
	}
	draws := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		draws = append(draws, core.DrawInterval(min, max).Milliseconds())
	}
	writeJSON(w, http.StatusOK, intervalPreviewResponse{Valid: true, Draws: draws})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 20)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)
	sessions, err := s.store.ListSessions(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list sessions", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list sessions")
		return
	}
	out := make([]sessionResponse, 0, len(sessions))
	for _, session := range sessions {
		out = append(out, sessionToResponse(session))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := s.store.GetSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "session not found")
		} else {
			s.logger.Error("get session", "session_id", sessionID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to load session")
		}
		return
	}
	writeJSON(w, http.StatusOK, sessionToResponse(session))
}

func (s *Server) handleListCycles(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)
	cycles, err := s.store.ListCycles(r.Context(), sessionID, limit, offset)
	if err != nil {
		s.logger.Error("list cycles", "session_id", sessionID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list cycles")
		return
	}
	out := make([]cycleResponse, 0, len(cycles))
	for _, cycle := range cycles {
		out = append(out, cycleToResponse(cycle))
	}
	writeJSON(w, http.StatusOK, out)
}

func sessionToResponse(session *core.Session) sessionResponse {
	resp := sessionResponse{
		ID:        session.ID,
		Mode:      string(session.Mode),
		Status:    string(session.Status),
		StartedAt: session.StartedAt.UTC().Format(time.RFC3339),
		Cycles:    session.Cycles,
	}
	if session.EndedAt != nil {
		formatted := session.EndedAt.UTC().Format(time.RFC3339)
		resp.EndedAt = &formatted
	}
	return resp
}

func cycleToResponse(cycle *core.Cycle) cycleResponse {
	resp := cycleResponse{
		ID:         cycle.ID,
		SessionID:  cycle.SessionID,
		Seq:        cycle.Seq,
		LockHoldMs: cycle.LockHold.Milliseconds(),
		Status:     string(cycle.Status),
		StartedAt:  cycle.StartedAt.UTC().Format(time.RFC3339),
		Error:      cycle.Error,
	}
	if cycle.EndedAt != nil {
		formatted := cycle.EndedAt.UTC().Format(time.RFC3339)
		resp.EndedAt = &formatted
	}
	return resp
}

func parseIntDefault(value string, def int) int {
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	payload := map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	}
	writeJSON(w, status, payload)
}
