package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvswarm/cvswarm/internal/config"
	"github.com/cvswarm/cvswarm/internal/log"
)

func newSearxServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(baseURL string, maxResults int) *Client {
	return NewClient(config.SearXNGConfig{BaseURL: baseURL, MaxResults: maxResults}, nil, log.NewNop())
}

func TestClient_Search(t *testing.T) {
	srv := newSearxServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "weather taipei", r.URL.Query().Get("q"))
		fmt.Fprint(w, `{"results":[
			{"title":"Taipei Weather","url":"https://example.com/w","content":"<b>Sunny</b>, 31C","engine":"ddg"},
			{"title":"Forecast","url":"https://example.com/f","content":"rain tomorrow","engine":"ddg"}
		]}`)
	})

	results, err := newTestClient(srv.URL, 5).Search(context.Background(), "weather taipei")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Taipei Weather", results[0].Title)
	assert.Equal(t, "Sunny , 31C", results[0].Snippet)
	assert.Empty(t, results[0].Page)
}

func TestClient_Search_CapsResults(t *testing.T) {
	srv := newSearxServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"results":[
			{"title":"a","url":"u1","content":"c"},
			{"title":"b","url":"u2","content":"c"},
			{"title":"c","url":"u3","content":"c"}
		]}`)
	})

	results, err := newTestClient(srv.URL, 2).Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestClient_Search_ServerError(t *testing.T) {
	srv := newSearxServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	})

	_, err := newTestClient(srv.URL, 5).Search(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 429")
}

func TestClient_Search_MalformedJSON(t *testing.T) {
	srv := newSearxServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"results": [`)
	})

	_, err := newTestClient(srv.URL, 5).Search(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse response")
}

func TestClient_Search_Unreachable(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:1", 5).Search(context.Background(), "q")
	require.Error(t, err)
}

func TestStripTags(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "already plain", "already plain"},
		{"bold markup", "<b>Sunny</b> skies", "Sunny skies"},
		{"nested tags", "<p>one <em>two</em> three</p>", "one two three"},
		{"entity", "fish &amp; chips", "fish & chips"},
		{"whitespace collapsed", "a\n  b\t c", "a b c"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripTags(tt.in))
		})
	}
}

func TestFormatResults(t *testing.T) {
	out := FormatResults([]Result{
		{Title: "Taipei Weather", URL: "https://example.com/w", Snippet: "sunny"},
		{Title: "Forecast", URL: "https://example.com/f", Snippet: "rain", Page: "long article text"},
	})
	assert.Contains(t, out, "[1] Taipei Weather")
	assert.Contains(t, out, "[2] Forecast")
	assert.Contains(t, out, "long article text")

	assert.Empty(t, FormatResults(nil))
}
