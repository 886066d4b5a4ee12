package swarm

import (
	"errors"
	"fmt"
)

// Kind classifies a processing failure so transports can map it to their
// own surface (HTTP status, REPL message) without string matching.
type Kind int

const (
	// KindInput rejects a malformed request before any work happens.
	KindInput Kind = iota
	// KindCapability means a responder's capability (model, retrieval,
	// web search) failed.
	KindCapability
	// KindStore means the session store failed; committed state is
	// untouched.
	KindStore
	// KindProtocol means a responder violated the handoff protocol.
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindCapability:
		return "capability"
	case KindStore:
		return "store"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Error is a classified processing failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func inputErrorf(format string, args ...any) error {
	return &Error{Kind: KindInput, Err: fmt.Errorf(format, args...)}
}

func capabilityError(err error) error {
	return &Error{Kind: KindCapability, Err: err}
}

func storeError(err error) error {
	return &Error{Kind: KindStore, Err: err}
}

// KindOf returns the classification of err, or ok=false when err is not a
// swarm error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
