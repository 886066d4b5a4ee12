package responder

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/cvswarm/cvswarm/internal/log"
)

// GenerateRequest is one model invocation. Handoffs lists the peers the
// model may transfer the question to; when empty the model must answer.
type GenerateRequest struct {
	System   string
	Prompt   string
	History  []Exchange
	Handoffs []Descriptor
}

// GenerateResult carries either answer text or a requested handoff target
// (a role key). Exactly one is set.
type GenerateResult struct {
	Text   string
	Target string
}

// Generator abstracts the model call so responders can be tested with a
// deterministic implementation.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
}

// GenkitGenerator generates responses through Genkit. Handoffs are
// expressed as tools the model can call; tool requests are returned to
// the caller instead of executed, and mapped back to role keys.
//
// A shared rate limiter smooths bursts across all responders so provider
// quota errors surface less often.
type GenkitGenerator struct {
	g         *genkit.Genkit
	modelName string
	limiter   *rate.Limiter
	logger    log.Logger
}

// NewGenkitGenerator creates the production Generator and registers one
// handoff tool per known role. limiter may be nil for a default of
// 10 requests/sec with a burst of 30.
func NewGenkitGenerator(g *genkit.Genkit, modelName string, roles []Descriptor, limiter *rate.Limiter, logger log.Logger) *GenkitGenerator {
	if limiter == nil {
		limiter = rate.NewLimiter(10, 30)
	}
	if logger == nil {
		logger = log.NewNop()
	}
	for _, role := range roles {
		genkit.DefineTool(g, handoffToolName(role.Role),
			"Transfer the conversation to "+role.DisplayName+". "+role.Purpose,
			func(_ *ai.ToolContext, _ struct{}) (string, error) {
				// Never executed: tool requests are returned, not run.
				return "transferring to " + role.DisplayName, nil
			})
	}
	return &GenkitGenerator{g: g, modelName: modelName, limiter: limiter, logger: logger}
}

func (gg *GenkitGenerator) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	if err := gg.limiter.Wait(ctx); err != nil {
		return GenerateResult{}, fmt.Errorf("rate limit wait: %w", err)
	}

	messages := make([]*ai.Message, 0, len(req.History)*2+1)
	for _, ex := range req.History {
		messages = append(messages,
			ai.NewUserMessage(ai.NewTextPart(ex.Question)),
			ai.NewModelMessage(ai.NewTextPart(ex.Answer)))
	}
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(req.Prompt)))

	opts := []ai.GenerateOption{
		ai.WithModelName(gg.modelName),
		ai.WithSystem(req.System),
		ai.WithMessages(messages...),
	}
	if len(req.Handoffs) > 0 {
		refs := make([]ai.ToolRef, 0, len(req.Handoffs))
		for _, peer := range req.Handoffs {
			if tool := genkit.LookupTool(gg.g, handoffToolName(peer.Role)); tool != nil {
				refs = append(refs, tool)
			}
		}
		opts = append(opts, ai.WithTools(refs...), ai.WithReturnToolRequests(true))
	}

	resp, err := genkit.Generate(ctx, gg.g, opts...)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("generate: %w", err)
	}

	for _, tr := range resp.ToolRequests() {
		if role, ok := roleForTool(tr.Name); ok {
			gg.logger.Debug("model requested handoff", "tool", tr.Name, "target", role)
			return GenerateResult{Target: role}, nil
		}
		gg.logger.Warn("model requested unknown tool", "tool", tr.Name)
	}
	return GenerateResult{Text: resp.Text()}, nil
}

const handoffToolPrefix = "transfer_to_"

func handoffToolName(role string) string {
	return handoffToolPrefix + role
}

// roleForTool maps a handoff tool name back to its role key.
func roleForTool(tool string) (string, bool) {
	role, ok := strings.CutPrefix(tool, handoffToolPrefix)
	if !ok || role == "" {
		return "", false
	}
	return role, true
}
