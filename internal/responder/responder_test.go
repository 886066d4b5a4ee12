package responder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvswarm/cvswarm/internal/knowledge"
	"github.com/cvswarm/cvswarm/internal/log"
	"github.com/cvswarm/cvswarm/internal/search"
)

// fakeGenerator returns canned results and records the requests it saw.
type fakeGenerator struct {
	result   GenerateResult
	err      error
	requests []GenerateRequest
}

func (f *fakeGenerator) Generate(_ context.Context, req GenerateRequest) (GenerateResult, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return GenerateResult{}, f.err
	}
	return f.result, nil
}

type fakeRetriever struct {
	context string
	err     error
}

func (f *fakeRetriever) RetrieveContext(_ context.Context, _ string, _ ...knowledge.SearchOption) (string, error) {
	return f.context, f.err
}

type fakeSearcher struct {
	results []search.Result
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string) ([]search.Result, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

func testTimeouts() Timeouts {
	return Timeouts{Generate: time.Second, Search: time.Second, Retrieve: time.Second}
}

func searchPeer() []Descriptor {
	return []Descriptor{{Role: RoleSearch, DisplayName: "SearchAgent"}}
}

func TestCurriculum_AnswersFromGrounding(t *testing.T) {
	gen := &fakeGenerator{result: GenerateResult{Text: "He worked with Go for five years."}}
	c := NewCurriculum(gen, &fakeRetriever{context: "five years of Go experience"},
		searchPeer(), testTimeouts(), log.NewNop())

	res, err := c.Respond(context.Background(), Request{Question: "what languages?"})
	require.NoError(t, err)
	assert.Equal(t, Answered, res.Outcome)
	assert.Equal(t, "He worked with Go for five years.", res.Answer)

	require.Len(t, gen.requests, 1)
	assert.Contains(t, gen.requests[0].Prompt, "five years of Go experience")
	assert.Contains(t, gen.requests[0].Prompt, "what languages?")
	assert.Equal(t, searchPeer(), gen.requests[0].Handoffs)
}

func TestCurriculum_EmptyGroundingStillGenerates(t *testing.T) {
	gen := &fakeGenerator{result: GenerateResult{Text: "I did not find information about that subject in the curriculum."}}
	c := NewCurriculum(gen, &fakeRetriever{}, searchPeer(), testTimeouts(), log.NewNop())

	res, err := c.Respond(context.Background(), Request{Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, Answered, res.Outcome)
	assert.Contains(t, gen.requests[0].Prompt, "No curriculum passages matched")
}

func TestCurriculum_RetrieverFailure(t *testing.T) {
	c := NewCurriculum(&fakeGenerator{}, &fakeRetriever{err: errors.New("pool closed")},
		searchPeer(), testTimeouts(), log.NewNop())

	_, err := c.Respond(context.Background(), Request{Question: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retrieve curriculum context")
}

func TestCurriculum_HandoffRequested(t *testing.T) {
	gen := &fakeGenerator{result: GenerateResult{Target: RoleSearch}}
	c := NewCurriculum(gen, &fakeRetriever{context: "x"}, searchPeer(), testTimeouts(), log.NewNop())

	res, err := c.Respond(context.Background(), Request{Question: "who won the election?"})
	require.NoError(t, err)
	assert.Equal(t, HandoffRequested, res.Outcome)
	assert.Equal(t, RoleSearch, res.Target)
	assert.Empty(t, res.Answer)
}

func TestCurriculum_EmptyModelResponseFallsBack(t *testing.T) {
	gen := &fakeGenerator{}
	c := NewCurriculum(gen, &fakeRetriever{context: "x"}, searchPeer(), testTimeouts(), log.NewNop())

	res, err := c.Respond(context.Background(), Request{Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, FallbackAnswer, res.Answer)
}

func TestCurriculum_HistoryPassedThrough(t *testing.T) {
	gen := &fakeGenerator{result: GenerateResult{Text: "a"}}
	c := NewCurriculum(gen, &fakeRetriever{context: "x"}, searchPeer(), testTimeouts(), log.NewNop())

	history := []Exchange{{Question: "q1", Answer: "a1", Role: RoleCurriculum}}
	_, err := c.Respond(context.Background(), Request{Question: "q2", History: history})
	require.NoError(t, err)
	assert.Equal(t, history, gen.requests[0].History)
}

func TestWebSearch_SearchesBeforeAnswering(t *testing.T) {
	gen := &fakeGenerator{result: GenerateResult{Text: "It is sunny in Taipei."}}
	searcher := &fakeSearcher{results: []search.Result{
		{Title: "Weather", URL: "https://example.com", Snippet: "sunny, 31C"},
	}}
	w := NewWebSearch(gen, searcher, nil, testTimeouts(), log.NewNop())

	res, err := w.Respond(context.Background(), Request{Question: "weather in Taipei?"})
	require.NoError(t, err)
	assert.Equal(t, Answered, res.Outcome)
	assert.Equal(t, []string{"weather in Taipei?"}, searcher.queries)
	assert.Contains(t, gen.requests[0].Prompt, "sunny, 31C")
}

func TestWebSearch_SearchFailure(t *testing.T) {
	w := NewWebSearch(&fakeGenerator{}, &fakeSearcher{err: errors.New("connection refused")},
		nil, testTimeouts(), log.NewNop())

	_, err := w.Respond(context.Background(), Request{Question: "q"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "web search")
}

func TestWebSearch_NoResults(t *testing.T) {
	gen := &fakeGenerator{result: GenerateResult{Text: "I could not find current information."}}
	w := NewWebSearch(gen, &fakeSearcher{}, nil, testTimeouts(), log.NewNop())

	res, err := w.Respond(context.Background(), Request{Question: "q"})
	require.NoError(t, err)
	assert.Equal(t, Answered, res.Outcome)
	assert.Contains(t, gen.requests[0].Prompt, "No search results were returned")
}

func TestWebSearch_HandoffToCurriculum(t *testing.T) {
	gen := &fakeGenerator{result: GenerateResult{Target: RoleCurriculum}}
	w := NewWebSearch(gen, &fakeSearcher{}, nil, testTimeouts(), log.NewNop())

	res, err := w.Respond(context.Background(), Request{Question: "what is his experience?"})
	require.NoError(t, err)
	assert.Equal(t, HandoffRequested, res.Outcome)
	assert.Equal(t, RoleCurriculum, res.Target)
}

func TestRoleForTool(t *testing.T) {
	tests := []struct {
		tool string
		role string
		ok   bool
	}{
		{"transfer_to_search", "search", true},
		{"transfer_to_curriculum", "curriculum", true},
		{"transfer_to_", "", false},
		{"some_other_tool", "", false},
	}
	for _, tt := range tests {
		role, ok := roleForTool(tt.tool)
		assert.Equal(t, tt.ok, ok, tt.tool)
		assert.Equal(t, tt.role, role, tt.tool)
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "CurriculumVitaeAgent", DisplayName(RoleCurriculum))
	assert.Equal(t, "SearchAgent", DisplayName(RoleSearch))
	assert.Equal(t, "other", DisplayName("other"))
}
