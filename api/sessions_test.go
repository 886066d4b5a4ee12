package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvswarm/cvswarm/internal/log"
	"github.com/cvswarm/cvswarm/internal/session"
)

type fakeSessionReader struct {
	sessions []session.Session
	turns    []session.Turn
	err      error

	gotID     string
	gotLimit  int
	gotOffset int
}

func (f *fakeSessionReader) List(_ context.Context, limit, offset int) ([]session.Session, error) {
	f.gotLimit, f.gotOffset = limit, offset
	return f.sessions, f.err
}

func (f *fakeSessionReader) Turns(_ context.Context, id string, limit, offset int) ([]session.Turn, error) {
	f.gotID, f.gotLimit, f.gotOffset = id, limit, offset
	return f.turns, f.err
}

func getSessions(t *testing.T, store SessionReader, path string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	NewSessionHandler(store, log.NewNop()).RegisterRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestSessions_List(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &fakeSessionReader{sessions: []session.Session{
		{ID: "s1", ActiveRole: "search", CreatedAt: now, UpdatedAt: now},
	}}

	rec := getSessions(t, store, "/api/sessions")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Sessions []sessionJSON `json:"sessions"`
		Total    int           `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Sessions, 1)
	assert.Equal(t, "s1", resp.Sessions[0].ID)
	assert.Equal(t, "search", resp.Sessions[0].ActiveRole)
	assert.Equal(t, "2025-06-01T12:00:00Z", resp.Sessions[0].CreatedAt)
	assert.Equal(t, DefaultListLimit, store.gotLimit)
}

func TestSessions_ListPagination(t *testing.T) {
	store := &fakeSessionReader{}
	rec := getSessions(t, store, "/api/sessions?limit=5&offset=10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, store.gotLimit)
	assert.Equal(t, 10, store.gotOffset)

	// Out-of-range values fall back to defaults.
	getSessions(t, store, "/api/sessions?limit=99999&offset=-3")
	assert.Equal(t, DefaultListLimit, store.gotLimit)
	assert.Equal(t, 0, store.gotOffset)
}

func TestSessions_ListStoreFailure(t *testing.T) {
	store := &fakeSessionReader{err: errors.New("connection refused")}
	rec := getSessions(t, store, "/api/sessions")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSessions_Turns(t *testing.T) {
	store := &fakeSessionReader{turns: []session.Turn{
		{Sequence: 1, Question: "skills?", Answer: "Go", Role: "curriculum",
			Chain: []string{"curriculum"}, CreatedAt: time.Now()},
		{Sequence: 2, Question: "weather?", Answer: "sunny", Role: "search",
			Chain: []string{"curriculum", "search"}, CreatedAt: time.Now()},
	}}

	rec := getSessions(t, store, "/api/sessions/s1/turns")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s1", store.gotID)

	var resp struct {
		SessionID string     `json:"session_id"`
		Turns     []turnJSON `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "s1", resp.SessionID)
	require.Len(t, resp.Turns, 2)
	assert.Equal(t, "CurriculumVitaeAgent", resp.Turns[0].Agent)
	assert.Equal(t, "SearchAgent", resp.Turns[1].Agent)
	assert.Equal(t, []string{"curriculum", "search"}, resp.Turns[1].Chain)
}
