package responder

import (
	"context"
	"fmt"
	"time"

	"github.com/cvswarm/cvswarm/internal/knowledge"
	"github.com/cvswarm/cvswarm/internal/log"
)

// FallbackAnswer is returned when the model produces an empty response.
const FallbackAnswer = "I apologize, but I couldn't generate a response. Please try rephrasing your question."

// curriculumSystemPrompt keeps answers grounded in the retrieved passages
// and phrased like a colleague, not a database lookup.
const curriculumSystemPrompt = `You are an assistant specialized in analyzing a professional curriculum.

SCOPE. You respond only about the curriculum: professional experience,
technical and soft skills, academic formation, projects, certifications
and courses, languages.

NATURAL RESPONSES. Respond as a person who knows the professional's
curriculum well. Never mention where you found the information: no
"according to the document", "in the experience section" or similar. Be
conversational and direct. If the curriculum passages below do not cover
the question, say: "I did not find information about that subject in the
curriculum."

TRANSFER. Use the transfer tool immediately when the question is about
politics, news, current events, technologies, products, companies, or
anything else that is not in the professional curriculum.

Always respond in English.`

// Retriever is the slice of the knowledge store the responder needs.
type Retriever interface {
	RetrieveContext(ctx context.Context, query string, opts ...knowledge.SearchOption) (string, error)
}

// Timeouts bound the capability and model calls of a responder.
type Timeouts struct {
	Generate time.Duration
	Search   time.Duration
	Retrieve time.Duration
}

// Curriculum answers questions about the professional curriculum, grounded
// in passages retrieved from the knowledge base.
type Curriculum struct {
	generator Generator
	retriever Retriever
	peers     []Descriptor
	timeouts  Timeouts
	logger    log.Logger
}

// NewCurriculum creates the curriculum responder. peers are the handoff
// targets offered to the model.
func NewCurriculum(generator Generator, retriever Retriever, peers []Descriptor, timeouts Timeouts, logger log.Logger) *Curriculum {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Curriculum{
		generator: generator,
		retriever: retriever,
		peers:     peers,
		timeouts:  timeouts,
		logger:    logger,
	}
}

func (c *Curriculum) Describe() Descriptor {
	return Descriptor{
		Role:        RoleCurriculum,
		DisplayName: DisplayName(RoleCurriculum),
		Purpose: "Questions about the professional curriculum: experience, " +
			"skills, academic formation, projects, certifications, languages.",
	}
}

func (c *Curriculum) Respond(ctx context.Context, req Request) (Result, error) {
	retrieveCtx, cancel := context.WithTimeout(ctx, c.timeouts.Retrieve)
	grounding, err := c.retriever.RetrieveContext(retrieveCtx, req.Question)
	cancel()
	if err != nil {
		return Result{}, fmt.Errorf("retrieve curriculum context: %w", err)
	}
	if grounding == "" {
		grounding = "No curriculum passages matched this question."
	}

	prompt := fmt.Sprintf("Curriculum passages:\n%s\n\nQuestion: %s", grounding, req.Question)

	generateCtx, cancel := context.WithTimeout(ctx, c.timeouts.Generate)
	defer cancel()
	gen, err := c.generator.Generate(generateCtx, GenerateRequest{
		System:   curriculumSystemPrompt,
		Prompt:   prompt,
		History:  req.History,
		Handoffs: c.peers,
	})
	if err != nil {
		return Result{}, fmt.Errorf("curriculum generate: %w", err)
	}

	if gen.Target != "" {
		c.logger.Debug("curriculum responder handing off", "target", gen.Target)
		return Result{Outcome: HandoffRequested, Target: gen.Target}, nil
	}
	answer := gen.Text
	if answer == "" {
		c.logger.Warn("model returned empty curriculum response")
		answer = FallbackAnswer
	}
	return Result{Outcome: Answered, Answer: answer}, nil
}
