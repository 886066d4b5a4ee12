package responder

import (
	"context"
	"fmt"

	"github.com/cvswarm/cvswarm/internal/log"
	"github.com/cvswarm/cvswarm/internal/search"
)

// webSearchSystemPrompt forces answers to be grounded in the supplied
// search evidence rather than model memory.
const webSearchSystemPrompt = `You are the SearchAgent, an assistant that answers using web search results.

REQUIRED RULE. Answer only from the search results below. Never answer
from your internal knowledge. When the results do not contain the answer,
say you could not find current information about the question.

Cite no URLs unless the user asks for sources. Summarize what the results
say in plain language.

TRANSFER. Use the transfer tool when the user asks about the professional
curriculum: experience, skills, academic formation, projects.

Always respond in English.`

// Searcher is the slice of the web search client the responder needs.
type Searcher interface {
	Search(ctx context.Context, query string) ([]search.Result, error)
}

// WebSearch answers questions from live web search evidence. The search
// always runs before generation so answers never come from model memory
// alone.
type WebSearch struct {
	generator Generator
	searcher  Searcher
	peers     []Descriptor
	timeouts  Timeouts
	logger    log.Logger
}

// NewWebSearch creates the search responder.
func NewWebSearch(generator Generator, searcher Searcher, peers []Descriptor, timeouts Timeouts, logger log.Logger) *WebSearch {
	if logger == nil {
		logger = log.NewNop()
	}
	return &WebSearch{
		generator: generator,
		searcher:  searcher,
		peers:     peers,
		timeouts:  timeouts,
		logger:    logger,
	}
}

func (w *WebSearch) Describe() Descriptor {
	return Descriptor{
		Role:        RoleSearch,
		DisplayName: DisplayName(RoleSearch),
		Purpose: "Questions needing current information from the internet: " +
			"news, politics, technologies, products, companies.",
	}
}

func (w *WebSearch) Respond(ctx context.Context, req Request) (Result, error) {
	searchCtx, cancel := context.WithTimeout(ctx, w.timeouts.Search)
	results, err := w.searcher.Search(searchCtx, req.Question)
	cancel()
	if err != nil {
		return Result{}, fmt.Errorf("web search: %w", err)
	}

	evidence := search.FormatResults(results)
	if evidence == "" {
		evidence = "No search results were returned for this question."
	}
	w.logger.Debug("web search evidence gathered", "results", len(results))

	prompt := fmt.Sprintf("Search results:\n%s\n\nQuestion: %s", evidence, req.Question)

	generateCtx, cancel := context.WithTimeout(ctx, w.timeouts.Generate)
	defer cancel()
	gen, err := w.generator.Generate(generateCtx, GenerateRequest{
		System:   webSearchSystemPrompt,
		Prompt:   prompt,
		History:  req.History,
		Handoffs: w.peers,
	})
	if err != nil {
		return Result{}, fmt.Errorf("search generate: %w", err)
	}

	if gen.Target != "" {
		w.logger.Debug("search responder handing off", "target", gen.Target)
		return Result{Outcome: HandoffRequested, Target: gen.Target}, nil
	}
	answer := gen.Text
	if answer == "" {
		w.logger.Warn("model returned empty search response")
		answer = FallbackAnswer
	}
	return Result{Outcome: Answered, Answer: answer}, nil
}
