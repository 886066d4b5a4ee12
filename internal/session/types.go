// Package session persists per-conversation state: the append-only turn
// history and the currently active responder role.
//
// Session identifiers are opaque caller-supplied strings; a session is
// created on first reference. Turns are never edited or removed.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrUnavailable indicates the backing store could not serve the request.
// The current request fails; previously committed state is unaffected.
var ErrUnavailable = errors.New("session store unavailable")

// Turn is one question/answer exchange. Immutable once appended.
type Turn struct {
	ID        uuid.UUID
	SessionID string
	Sequence  int
	Question  string
	Answer    string
	// Role is the responder that produced the answer.
	Role string
	// Chain lists the roles consulted before settling, in order.
	Chain     []string
	CreatedAt time.Time
}

// Session is the durable state of one conversation.
type Session struct {
	ID         string
	ActiveRole string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	// Turns is the loaded history in ascending sequence order.
	Turns []Turn
}
