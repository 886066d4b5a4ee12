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

func enabledFetcher() *Fetcher {
	f := NewFetcher(config.FetcherConfig{
		Enabled:     true,
		Parallelism: 2,
		DelayMs:     0,
		TimeoutMs:   5000,
	}, log.NewNop())
	// Test servers listen on loopback, which the URL check rejects.
	f.urlCheck = nil
	return f
}

func TestNewFetcher_DisabledReturnsNil(t *testing.T) {
	assert.Nil(t, NewFetcher(config.FetcherConfig{Enabled: false}, log.NewNop()))
}

func TestFetcher_Enrich(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><head><title>Article</title></head><body>
			<article><h1>Heading</h1>
			<p>The quick brown fox jumps over the lazy dog. This paragraph is long
			enough for the readability extractor to treat it as real content rather
			than boilerplate navigation text.</p></article></body></html>`)
	}))
	t.Cleanup(srv.Close)

	results := []Result{{Title: "t", URL: srv.URL, Snippet: "s"}}
	enabledFetcher().Enrich(context.Background(), results)

	require.NotEmpty(t, results[0].Page)
	assert.Contains(t, results[0].Page, "quick brown fox")
}

func TestFetcher_Enrich_FailuresLeaveSnippetOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	t.Cleanup(srv.Close)

	results := []Result{
		{Title: "broken", URL: srv.URL, Snippet: "s"},
		{Title: "no url", Snippet: "s2"},
	}
	enabledFetcher().Enrich(context.Background(), results)

	assert.Empty(t, results[0].Page)
	assert.Empty(t, results[1].Page)
	assert.Equal(t, "s", results[0].Snippet)
}

func TestFetcher_Enrich_BlocksPrivateTargets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body><p>internal page</p></body></html>")
	}))
	t.Cleanup(srv.Close)

	f := NewFetcher(config.FetcherConfig{
		Enabled:     true,
		Parallelism: 2,
		TimeoutMs:   5000,
	}, log.NewNop())

	results := []Result{{Title: "t", URL: srv.URL, Snippet: "s"}}
	f.Enrich(context.Background(), results)

	assert.Empty(t, results[0].Page)
}

func TestFetcher_Enrich_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := []Result{{Title: "t", URL: "http://127.0.0.1:1", Snippet: "s"}}
	enabledFetcher().Enrich(ctx, results)
	assert.Empty(t, results[0].Page)
}
