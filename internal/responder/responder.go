// Package responder defines the conversational responders that answer
// questions or hand them off to a better-suited peer. Two responders
// exist: one grounded in the curriculum knowledge base, one grounded in
// live web search.
package responder

import "context"

// Role keys. Keys are stable identifiers used in storage and over the
// wire; display names are what users see.
const (
	RoleCurriculum = "curriculum"
	RoleSearch     = "search"
)

// Descriptor identifies a responder to the router and to its peers.
type Descriptor struct {
	Role        string // stable role key
	DisplayName string // user-facing name, e.g. "CurriculumVitaeAgent"
	Purpose     string // when a peer should route a question here
}

// Outcome is what a single responder invocation produced.
type Outcome int

const (
	// Answered means the responder produced a final answer.
	Answered Outcome = iota
	// HandoffRequested means the responder declined and named a peer.
	HandoffRequested
)

// Result is the outcome of one responder invocation. Target is the role
// key of the requested peer and is only set for HandoffRequested.
type Result struct {
	Outcome Outcome
	Answer  string
	Target  string
}

// Exchange is one completed question/answer pair from the session history.
type Exchange struct {
	Question string
	Answer   string
	Role     string
}

// Request carries the question plus the conversational history that came
// before it.
type Request struct {
	Question string
	History  []Exchange
}

// Responder answers a question or requests a handoff. Implementations are
// safe for concurrent use.
type Responder interface {
	Describe() Descriptor
	Respond(ctx context.Context, req Request) (Result, error)
}

// DisplayName returns the user-facing name for a role key, falling back
// to the key itself for unknown roles.
func DisplayName(role string) string {
	switch role {
	case RoleCurriculum:
		return "CurriculumVitaeAgent"
	case RoleSearch:
		return "SearchAgent"
	default:
		return role
	}
}
