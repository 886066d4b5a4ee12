package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvswarm/cvswarm/internal/log"
	"github.com/cvswarm/cvswarm/internal/swarm"
)

// fakeChatService returns a canned reply or error.
type fakeChatService struct {
	reply swarm.Reply
	err   error

	gotSessionID string
	gotQuestion  string
}

func (f *fakeChatService) Process(_ context.Context, sessionID, question string) (swarm.Reply, error) {
	f.gotSessionID = sessionID
	f.gotQuestion = question
	if f.err != nil {
		return swarm.Reply{}, f.err
	}
	return f.reply, nil
}

func postChat(t *testing.T, svc ChatService, body string) *httptest.ResponseRecorder {
	t.Helper()
	handler := NewChatHandler(svc, log.NewNop())
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestChat_Success(t *testing.T) {
	svc := &fakeChatService{reply: swarm.Reply{
		SessionID: "s1",
		Role:      "curriculum",
		Agent:     "CurriculumVitaeAgent",
		Content:   "He worked with Go.",
	}}

	rec := postChat(t, svc, `{"question":"skills?","session_id":"s1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "CurriculumVitaeAgent", resp.Agent)
	assert.Equal(t, "He worked with Go.", resp.Content)
	assert.Equal(t, "s1", resp.SessionID)
	assert.Equal(t, "skills?", svc.gotQuestion)
	assert.Equal(t, "s1", svc.gotSessionID)
}

func TestChat_OmittedSessionID(t *testing.T) {
	svc := &fakeChatService{reply: swarm.Reply{SessionID: "generated", Agent: "SearchAgent", Content: "x"}}

	rec := postChat(t, svc, `{"question":"weather?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, svc.gotSessionID)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "generated", resp.SessionID)
}

func TestChat_MalformedBody(t *testing.T) {
	rec := postChat(t, &fakeChatService{}, `{"question":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "input error",
			err:        &swarm.Error{Kind: swarm.KindInput, Err: errors.New("question must not be empty")},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_request",
		},
		{
			name:       "store error",
			err:        &swarm.Error{Kind: swarm.KindStore, Err: errors.New("connection refused")},
			wantStatus: http.StatusServiceUnavailable,
			wantError:  "store_unavailable",
		},
		{
			name:       "capability error",
			err:        &swarm.Error{Kind: swarm.KindCapability, Err: errors.New("model down")},
			wantStatus: http.StatusBadGateway,
			wantError:  "capability_failed",
		},
		{
			name:       "unclassified error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal_error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postChat(t, &fakeChatService{err: tt.err}, `{"question":"q"}`)
			require.Equal(t, tt.wantStatus, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantError, resp.Error)
		})
	}
}

func TestChat_StoreErrorDoesNotLeakDetails(t *testing.T) {
	svc := &fakeChatService{err: &swarm.Error{
		Kind: swarm.KindStore,
		Err:  errors.New("pgx: password authentication failed for user"),
	}}

	rec := postChat(t, svc, `{"question":"q"}`)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestChat_MethodNotAllowed(t *testing.T) {
	handler := NewChatHandler(&fakeChatService{}, log.NewNop())
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
