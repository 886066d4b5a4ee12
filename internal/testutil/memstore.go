package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cvswarm/cvswarm/internal/session"
)

// MemoryStore is an in-memory session store with the same semantics as
// the PostgreSQL store: load creates on miss, append assigns sequence
// numbers and makes the turn's role the active role.
//
// Safe for concurrent use.
type MemoryStore struct {
	mu          sync.Mutex
	DefaultRole string
	sessions    map[string]*session.Session

	// Failure injection.
	LoadErr   error
	AppendErr error

	// AppendCalls counts AppendTurn invocations, including failed ones.
	AppendCalls int
}

// NewMemoryStore creates an empty store whose fresh sessions start with
// defaultRole.
func NewMemoryStore(defaultRole string) *MemoryStore {
	return &MemoryStore{
		DefaultRole: defaultRole,
		sessions:    make(map[string]*session.Session),
	}
}

func (m *MemoryStore) Load(_ context.Context, id string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, fmt.Errorf("%w: %w", session.ErrUnavailable, m.LoadErr)
	}
	sess, ok := m.sessions[id]
	if !ok {
		now := time.Now()
		sess = &session.Session{ID: id, ActiveRole: m.DefaultRole, CreatedAt: now, UpdatedAt: now}
		m.sessions[id] = sess
	}
	copied := *sess
	copied.Turns = append([]session.Turn(nil), sess.Turns...)
	return &copied, nil
}

func (m *MemoryStore) AppendTurn(_ context.Context, id string, turn session.Turn) (session.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendCalls++
	if m.AppendErr != nil {
		return session.Turn{}, fmt.Errorf("%w: %w", session.ErrUnavailable, m.AppendErr)
	}
	sess, ok := m.sessions[id]
	if !ok {
		return session.Turn{}, fmt.Errorf("%w: session %q not found", session.ErrUnavailable, id)
	}
	turn.ID = uuid.New()
	turn.SessionID = id
	turn.Sequence = len(sess.Turns) + 1
	turn.CreatedAt = time.Now()
	sess.Turns = append(sess.Turns, turn)
	sess.ActiveRole = turn.Role
	sess.UpdatedAt = turn.CreatedAt
	return turn, nil
}

func (m *MemoryStore) SetActiveRole(_ context.Context, id, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return fmt.Errorf("%w: session %q not found", session.ErrUnavailable, id)
	}
	sess.ActiveRole = role
	return nil
}

// Session returns the stored session state, or nil when absent.
func (m *MemoryStore) Session(id string) *session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil
	}
	copied := *sess
	copied.Turns = append([]session.Turn(nil), sess.Turns...)
	return &copied
}
