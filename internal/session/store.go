package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cvswarm/cvswarm/internal/log"
)

// historyLimit caps the number of turns loaded with a session.
const historyLimit = 1000

// Store persists sessions and turns in PostgreSQL.
//
// Store is safe for concurrent use. Operations on the same session id are
// serialized at the row level (AppendTurn locks the session row), but
// callers that read-modify-write a session across calls must hold their
// own per-session lock; the swarm service does.
type Store struct {
	pool        *pgxpool.Pool
	defaultRole string
	logger      log.Logger
}

// New creates a Store. defaultRole is the active role assigned to sessions
// created on first reference.
func New(pool *pgxpool.Pool, defaultRole string, logger log.Logger) *Store {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{pool: pool, defaultRole: defaultRole, logger: logger}
}

// Load returns the session with the given id, creating it with the default
// active role if it does not exist. The returned session includes the turn
// history in ascending sequence order.
func (s *Store) Load(ctx context.Context, id string) (*Session, error) {
	// Create-on-miss; a concurrent creator wins harmlessly.
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, active_role) VALUES ($1, $2)
		 ON CONFLICT (id) DO NOTHING`,
		id, s.defaultRole)
	if err != nil {
		return nil, storeErr("create session", err)
	}

	var sess Session
	err = s.pool.QueryRow(ctx,
		`SELECT id, active_role, created_at, updated_at FROM sessions WHERE id = $1`,
		id).Scan(&sess.ID, &sess.ActiveRole, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, storeErr("load session", err)
	}

	sess.Turns, err = s.Turns(ctx, id, historyLimit, 0)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("loaded session", "id", id, "active_role", sess.ActiveRole, "turns", len(sess.Turns))
	return &sess, nil
}

// AppendTurn appends a turn to the session and makes the turn's role the
// session's active role, in a single transaction. The sequence number is
// assigned here; the populated turn is returned.
//
// The session row is locked for the duration of the transaction so that
// concurrent appends to the same session serialize instead of racing on
// sequence numbers.
func (s *Store) AppendTurn(ctx context.Context, id string, turn Turn) (Turn, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Turn{}, storeErr("begin append", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Debug("append rollback", "session_id", id, "error", err)
		}
	}()

	var activeRole string
	err = tx.QueryRow(ctx,
		`SELECT active_role FROM sessions WHERE id = $1 FOR UPDATE`, id).Scan(&activeRole)
	if err != nil {
		return Turn{}, storeErr("lock session", err)
	}

	var maxSeq int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence_number), 0) FROM turns WHERE session_id = $1`, id).Scan(&maxSeq)
	if err != nil {
		return Turn{}, storeErr("read sequence", err)
	}

	turn.ID = uuid.New()
	turn.SessionID = id
	turn.Sequence = maxSeq + 1

	chainJSON, err := json.Marshal(turn.Chain)
	if err != nil {
		return Turn{}, fmt.Errorf("marshal handoff chain: %w", err)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO turns (id, session_id, sequence_number, question, answer, role, handoff_chain)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		turn.ID, id, turn.Sequence, turn.Question, turn.Answer, turn.Role, chainJSON).
		Scan(&turn.CreatedAt)
	if err != nil {
		return Turn{}, storeErr("insert turn", err)
	}

	// Sticky routing: the next turn starts from the role that answered.
	_, err = tx.Exec(ctx,
		`UPDATE sessions SET active_role = $2, updated_at = now() WHERE id = $1`,
		id, turn.Role)
	if err != nil {
		return Turn{}, storeErr("update active role", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Turn{}, storeErr("commit append", err)
	}

	s.logger.Debug("appended turn",
		"session_id", id, "sequence", turn.Sequence, "role", turn.Role, "chain", turn.Chain)
	return turn, nil
}

// SetActiveRole updates the session's active role without appending a turn.
func (s *Store) SetActiveRole(ctx context.Context, id, role string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET active_role = $2, updated_at = now() WHERE id = $1`,
		id, role)
	if err != nil {
		return storeErr("set active role", err)
	}
	if tag.RowsAffected() == 0 {
		return storeErr("set active role", pgx.ErrNoRows)
	}
	return nil
}

// Turns returns the session's turns in ascending sequence order.
func (s *Store) Turns(ctx context.Context, id string, limit, offset int) ([]Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, sequence_number, question, answer, role, handoff_chain, created_at
		 FROM turns WHERE session_id = $1
		 ORDER BY sequence_number ASC
		 LIMIT $2 OFFSET $3`,
		id, limit, offset)
	if err != nil {
		return nil, storeErr("list turns", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var chainJSON []byte
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Sequence, &t.Question, &t.Answer,
			&t.Role, &chainJSON, &t.CreatedAt); err != nil {
			return nil, storeErr("scan turn", err)
		}
		if err := json.Unmarshal(chainJSON, &t.Chain); err != nil {
			s.logger.Warn("malformed handoff chain", "turn_id", t.ID, "error", err)
			t.Chain = nil
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list turns", err)
	}
	return turns, nil
}

// List returns sessions ordered by most recent activity, without history.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, active_role, created_at, updated_at FROM sessions
		 ORDER BY updated_at DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, storeErr("list sessions", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.ActiveRole, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, storeErr("scan session", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list sessions", err)
	}
	return sessions, nil
}

// storeErr wraps a backing-store failure so callers can detect it with
// errors.Is(err, ErrUnavailable). Any store failure aborts the current
// turn; committed state is never touched.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
