// Package swarm routes questions through a small set of responders,
// following bounded handoffs, and persists each completed turn to the
// session store.
package swarm

import (
	"context"
	"fmt"

	"github.com/cvswarm/cvswarm/internal/log"
	"github.com/cvswarm/cvswarm/internal/responder"
)

// DefaultMaxHandoffs bounds how many times a question may be transferred
// between responders within one turn. With two responders one transfer
// each way is all a well-behaved turn can need.
const DefaultMaxHandoffs = 2

// BoundFallback is the deterministic answer returned when routing stops
// without any responder producing an answer.
const BoundFallback = "I wasn't able to settle on an answer to that question. Could you rephrase it or be more specific?"

// Routing is the result of routing one question to a final responder.
type Routing struct {
	Role   string   // role key that produced the answer
	Answer string   // final answer text
	Chain  []string // every role visited, in order
}

// Router walks a question through responders until one answers or the
// handoff bound is reached.
//
// Protocol violations (handoff to an unknown role, revisiting a role
// already in the chain) stop routing immediately with the fallback answer
// rather than failing the turn.
type Router struct {
	responders  map[string]responder.Responder
	defaultRole string
	maxHandoffs int
	logger      log.Logger
}

// NewRouter creates a Router over the given responders. defaultRole is
// used when a session references a role that no longer exists.
func NewRouter(responders []responder.Responder, defaultRole string, maxHandoffs int, logger log.Logger) (*Router, error) {
	if len(responders) == 0 {
		return nil, fmt.Errorf("at least one responder is required")
	}
	if maxHandoffs < 1 {
		maxHandoffs = DefaultMaxHandoffs
	}
	if logger == nil {
		logger = log.NewNop()
	}

	byRole := make(map[string]responder.Responder, len(responders))
	for _, r := range responders {
		role := r.Describe().Role
		if _, dup := byRole[role]; dup {
			return nil, fmt.Errorf("duplicate responder role %q", role)
		}
		byRole[role] = r
	}
	if _, ok := byRole[defaultRole]; !ok {
		return nil, fmt.Errorf("default role %q has no responder", defaultRole)
	}

	return &Router{
		responders:  byRole,
		defaultRole: defaultRole,
		maxHandoffs: maxHandoffs,
		logger:      logger,
	}, nil
}

// DefaultRole returns the role new sessions start with.
func (r *Router) DefaultRole() string { return r.defaultRole }

// Route sends the request to startRole and follows handoffs until a
// responder answers, the bound is hit, or the protocol is violated. The
// two latter cases produce the fallback answer attributed to the last
// visited role.
func (r *Router) Route(ctx context.Context, startRole string, req responder.Request) (Routing, error) {
	role := startRole
	if _, ok := r.responders[role]; !ok {
		r.logger.Warn("session references unknown role, using default",
			"role", role, "default", r.defaultRole)
		role = r.defaultRole
	}

	visited := make(map[string]bool, len(r.responders))
	chain := make([]string, 0, r.maxHandoffs+1)

	for hop := 0; ; hop++ {
		visited[role] = true
		chain = append(chain, role)

		result, err := r.responders[role].Respond(ctx, req)
		if err != nil {
			return Routing{}, capabilityError(fmt.Errorf("responder %q: %w", role, err))
		}

		if result.Outcome == responder.Answered {
			return Routing{Role: role, Answer: result.Answer, Chain: chain}, nil
		}

		target := result.Target
		switch {
		case hop >= r.maxHandoffs:
			r.logger.Warn("handoff bound reached, stopping",
				"chain", chain, "target", target, "max_handoffs", r.maxHandoffs)
		case target == "":
			r.logger.Warn("responder requested handoff without a target", "role", role)
		case visited[target]:
			r.logger.Warn("responder requested handoff to visited role",
				"role", role, "target", target, "chain", chain)
		default:
			if _, ok := r.responders[target]; !ok {
				r.logger.Warn("responder requested handoff to unknown role",
					"role", role, "target", target)
				break
			}
			role = target
			continue
		}
		return Routing{Role: role, Answer: BoundFallback, Chain: chain}, nil
	}
}
