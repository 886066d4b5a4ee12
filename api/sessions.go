package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/cvswarm/cvswarm/internal/log"
	"github.com/cvswarm/cvswarm/internal/responder"
	"github.com/cvswarm/cvswarm/internal/session"
)

// Pagination bounds.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
	MaxListOffset    = 100000
)

// SessionReader is the slice of the session store the handler needs.
type SessionReader interface {
	List(ctx context.Context, limit, offset int) ([]session.Session, error)
	Turns(ctx context.Context, id string, limit, offset int) ([]session.Turn, error)
}

// SessionHandler serves read-only session endpoints.
type SessionHandler struct {
	store  SessionReader
	logger log.Logger
}

// NewSessionHandler creates the session handler.
func NewSessionHandler(store SessionReader, logger log.Logger) *SessionHandler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &SessionHandler{store: store, logger: logger}
}

func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sessions", h.list)
	mux.HandleFunc("GET /api/sessions/{id}/turns", h.turns)
}

// sessionJSON is the wire shape of a session summary.
type sessionJSON struct {
	ID         string `json:"id"`
	ActiveRole string `json:"active_role"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// turnJSON is the wire shape of one completed turn.
type turnJSON struct {
	Sequence int      `json:"sequence"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Agent    string   `json:"agent"`
	Role     string   `json:"role"`
	Chain    []string `json:"chain,omitempty"`
	At       string   `json:"at"`
}

func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", DefaultListLimit, 1, MaxListLimit)
	offset := parseIntParam(r, "offset", 0, 0, MaxListOffset)

	sessions, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list sessions", "error", err)
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "")
		return
	}

	out := make([]sessionJSON, len(sessions))
	for i, s := range sessions {
		out[i] = sessionJSON{
			ID:         s.ID,
			ActiveRole: s.ActiveRole,
			CreatedAt:  s.CreatedAt.UTC().Format(time.RFC3339),
			UpdatedAt:  s.UpdatedAt.UTC().Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": out,
		"total":    len(out),
		"limit":    limit,
		"offset":   offset,
	})
}

func (h *SessionHandler) turns(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "session id is required")
		return
	}
	limit := parseIntParam(r, "limit", DefaultListLimit, 1, MaxListLimit)
	offset := parseIntParam(r, "offset", 0, 0, MaxListOffset)

	turns, err := h.store.Turns(r.Context(), id, limit, offset)
	if err != nil {
		h.logger.Error("failed to list turns", "session_id", id, "error", err)
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "")
		return
	}

	out := make([]turnJSON, len(turns))
	for i, t := range turns {
		out[i] = turnJSON{
			Sequence: t.Sequence,
			Question: t.Question,
			Answer:   t.Answer,
			Agent:    responder.DisplayName(t.Role),
			Role:     t.Role,
			Chain:    t.Chain,
			At:       t.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"turns":      out,
		"total":      len(out),
	})
}

// parseIntParam parses an integer query parameter with bounds checking.
// Out-of-range or malformed values fall back to the default.
func parseIntParam(r *http.Request, name string, defaultVal, minVal, maxVal int) int {
	str := r.URL.Query().Get(name)
	if str == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(str)
	if err != nil || val < minVal || val > maxVal {
		return defaultVal
	}
	return val
}
