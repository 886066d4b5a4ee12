package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvswarm/cvswarm/internal/log"
	"github.com/cvswarm/cvswarm/internal/swarm"
)

func newTestServer(svc ChatService, ui http.Handler) *Server {
	logger := log.NewNop()
	return NewServer(
		NewChatHandler(svc, logger),
		NewSessionHandler(&fakeSessionReader{}, logger),
		NewHealthHandler(nil, logger),
		ui,
		logger,
	)
}

func TestServer_RoutesRegistered(t *testing.T) {
	srv := newTestServer(&fakeChatService{reply: swarm.Reply{Agent: "SearchAgent", Content: "x", SessionID: "s"}}, nil)
	handler := srv.Handler()

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/ready", "", http.StatusServiceUnavailable}, // nil pool
		{http.MethodPost, "/api/chat", `{"question":"q"}`, http.StatusOK},
		{http.MethodGet, "/api/sessions", "", http.StatusOK},
		{http.MethodGet, "/api/sessions/s1/turns", "", http.StatusOK},
		{http.MethodGet, "/nonexistent", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		var req *http.Request
		if tt.body != "" {
			req = httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
		} else {
			req = httptest.NewRequest(tt.method, tt.path, nil)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, tt.want, rec.Code, "%s %s", tt.method, tt.path)
	}
}

func TestServer_UIMounted(t *testing.T) {
	ui := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>chat</html>"))
	})
	srv := newTestServer(&fakeChatService{}, ui)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chat")
}

func TestRecoveryMiddleware(t *testing.T) {
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	handler := chain(panicking, recoveryMiddleware(log.NewNop()), loggingMiddleware(log.NewNop()))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealth_Liveness(t *testing.T) {
	mux := http.NewServeMux()
	NewHealthHandler(nil, log.NewNop()).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
