package swarm

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/cvswarm/cvswarm/internal/log"
	"github.com/cvswarm/cvswarm/internal/responder"
	"github.com/cvswarm/cvswarm/internal/session"
)

// Input limits. Questions longer than a few thousand runes are almost
// always paste accidents; session ids are caller-chosen opaque keys.
const (
	MaxQuestionRunes = 4000
	MaxSessionIDLen  = 128
)

// Store is the slice of the session store the service needs.
type Store interface {
	Load(ctx context.Context, id string) (*session.Session, error)
	AppendTurn(ctx context.Context, id string, turn session.Turn) (session.Turn, error)
}

// Reply is one completed conversational turn.
type Reply struct {
	SessionID string
	Role      string // role key that answered
	Agent     string // display name of that role
	Content   string
	Chain     []string
}

// Service processes questions end to end: load session, route through
// responders, persist the turn. Turns within one session are serialized;
// different sessions proceed concurrently.
type Service struct {
	store  Store
	router *Router
	locks  *keyedMutex
	logger log.Logger
}

// NewService creates the conversation service.
func NewService(store Store, router *Router, logger log.Logger) *Service {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{
		store:  store,
		router: router,
		locks:  newKeyedMutex(),
		logger: logger,
	}
}

// Process answers one question within a session. An empty session id
// starts a fresh session with a generated id.
//
// The turn is committed to the store exactly once, after routing
// succeeds. A store failure after routing loses the answer and reports
// KindStore; no partial turn is ever persisted.
func (s *Service) Process(ctx context.Context, sessionID, question string) (Reply, error) {
	question = strings.TrimSpace(question)
	switch {
	case question == "":
		return Reply{}, inputErrorf("question must not be empty")
	case utf8.RuneCountInString(question) > MaxQuestionRunes:
		return Reply{}, inputErrorf("question exceeds %d characters", MaxQuestionRunes)
	case len(sessionID) > MaxSessionIDLen:
		return Reply{}, inputErrorf("session id exceeds %d characters", MaxSessionIDLen)
	}
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return Reply{}, storeError(err)
	}

	history := make([]responder.Exchange, len(sess.Turns))
	for i, turn := range sess.Turns {
		history[i] = responder.Exchange{
			Question: turn.Question,
			Answer:   turn.Answer,
			Role:     turn.Role,
		}
	}

	routing, err := s.router.Route(ctx, sess.ActiveRole, responder.Request{
		Question: question,
		History:  history,
	})
	if err != nil {
		return Reply{}, err
	}

	turn, err := s.store.AppendTurn(ctx, sessionID, session.Turn{
		Question: question,
		Answer:   routing.Answer,
		Role:     routing.Role,
		Chain:    routing.Chain,
	})
	if err != nil {
		return Reply{}, storeError(err)
	}

	s.logger.Info("turn completed",
		"session_id", sessionID,
		"sequence", turn.Sequence,
		"role", routing.Role,
		"chain", routing.Chain)

	return Reply{
		SessionID: sessionID,
		Role:      routing.Role,
		Agent:     responder.DisplayName(routing.Role),
		Content:   routing.Answer,
		Chain:     routing.Chain,
	}, nil
}
