package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alignify/formcoach/internal/pose"
	"github.com/alignify/formcoach/internal/store"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// SessionHandler handles HTTP requests for session history.
type SessionHandler struct {
	store  *store.Store
	logger *slog.Logger
}

// NewSessionHandler creates a SessionHandler backed by s.
func NewSessionHandler(s *store.Store, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{store: s, logger: logger}
}

// ServeHTTP routes:
//
//	GET    /api/sessions[?exercise=&since=&limit=]
//	GET    /api/sessions/totals
//	GET    /api/sessions/chart[?exercise=&limit=]
//	GET    /api/sessions/{id}
//	DELETE /api/sessions/{id}
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.Trim(path, "/")

	switch path {
	case "":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.list(w, r)
	case "totals":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.totals(w, r)
	case "chart":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.chart(w, r)
	default:
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, path)
		case http.MethodDelete:
			h.delete(w, r, path)
		default:
			writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

type listSessionsResponse struct {
	Sessions []*store.Session `json:"sessions"`
	Total    int              `json:"total"`
}

type totalsResponse struct {
	Totals []store.ExerciseTotals `json:"totals"`
}

// parseFilter reads exercise, since (RFC 3339) and limit from the query string.
func parseFilter(r *http.Request) (store.ListFilter, error) {
	q := r.URL.Query()
	f := store.ListFilter{Limit: defaultListLimit}

	if v := q.Get("exercise"); v != "" {
		kind, err := pose.ParseKind(v)
		if err != nil {
			return f, err
		}
		f.Exercise = kind
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errors.New("since must be an RFC 3339 timestamp")
		}
		f.Since = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return f, errors.New("limit must be a positive integer")
		}
		f.Limit = min(n, maxListLimit)
	}
	return f, nil
}

// list handles GET /api/sessions.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessions, err := h.store.Sessions().List(f)
	if err != nil {
		h.logger.Error("list sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*store.Session{}
	}

	writeJSON(w, http.StatusOK, listSessionsResponse{Sessions: sessions, Total: len(sessions)})
}

// totals handles GET /api/sessions/totals.
func (h *SessionHandler) totals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.store.Sessions().Totals()
	if err != nil {
		h.logger.Error("session totals", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to compute totals")
		return
	}
	if totals == nil {
		totals = []store.ExerciseTotals{}
	}

	writeJSON(w, http.StatusOK, totalsResponse{Totals: totals})
}

// get handles GET /api/sessions/{id}.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	session, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		h.logger.Error("get session", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// delete handles DELETE /api/sessions/{id}.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Sessions().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		h.logger.Error("delete session", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
