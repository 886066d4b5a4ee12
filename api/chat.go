package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/cvswarm/cvswarm/internal/log"
	"github.com/cvswarm/cvswarm/internal/swarm"
)

// maxChatBodySize caps request bodies well above the question limit.
const maxChatBodySize = 64 * 1024

// ChatService is the slice of the swarm service the handler needs.
type ChatService interface {
	Process(ctx context.Context, sessionID, question string) (swarm.Reply, error)
}

// ChatRequest is the POST /api/chat request body. SessionID is optional;
// when absent a new session is created and its id returned.
type ChatRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the POST /api/chat response body. Agent is the display
// name of the responder that produced the answer.
type ChatResponse struct {
	Agent     string `json:"agent"`
	Content   string `json:"content"`
	SessionID string `json:"session_id"`
}

// ChatHandler serves the conversation endpoint.
type ChatHandler struct {
	service ChatService
	logger  log.Logger
}

// NewChatHandler creates the chat handler.
func NewChatHandler(service ChatService, logger log.Logger) *ChatHandler {
	if logger == nil {
		logger = log.NewNop()
	}
	return &ChatHandler{service: service, logger: logger}
}

func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat", h.chat)
}

func (h *ChatHandler) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	body := io.LimitReader(r.Body, maxChatBodySize)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	reply, err := h.service.Process(r.Context(), req.SessionID, req.Question)
	if err != nil {
		h.writeProcessError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Agent:     reply.Agent,
		Content:   reply.Content,
		SessionID: reply.SessionID,
	})
}

// writeProcessError maps service error kinds onto HTTP statuses: bad input
// is the client's fault, a store outage is 503, a failing capability
// (model, search, retrieval) is a bad gateway.
func (h *ChatHandler) writeProcessError(w http.ResponseWriter, r *http.Request, err error) {
	kind, ok := swarm.KindOf(err)
	if !ok {
		if errors.Is(err, context.Canceled) {
			// Client went away; nothing useful to write.
			return
		}
		h.logger.Error("chat request failed", "error", err, "path", r.URL.Path)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
		return
	}

	switch kind {
	case swarm.KindInput:
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case swarm.KindStore:
		h.logger.Error("session store unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "store_unavailable",
			"session storage is temporarily unavailable")
	case swarm.KindCapability:
		h.logger.Error("responder capability failed", "error", err)
		writeError(w, http.StatusBadGateway, "capability_failed",
			"a backing capability failed to answer")
	default:
		h.logger.Error("chat request failed", "error", err, "kind", kind)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}
