package blackjack

import (
	"errors"
	"fmt"
)

// Kind classifies failures surfaced by the game core.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindIntegrity
	KindInvalidTransition
	KindNotFound
	KindDeckExhausted
	KindNotAuthorized
)

// Sentinels for errors.Is checks against a Kind.
var (
	ErrValidation        = errors.New("validation error")
	ErrIntegrity         = errors.New("integrity violation")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrNotFound          = errors.New("game not found")
	ErrDeckExhausted     = errors.New("deck exhausted")
	ErrNotAuthorized     = errors.New("not authorized")
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindIntegrity:
		return "integrity_violation"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindNotFound:
		return "not_found"
	case KindDeckExhausted:
		return "deck_exhausted"
	case KindNotAuthorized:
		return "not_authorized"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindIntegrity:
		return ErrIntegrity
	case KindInvalidTransition:
		return ErrInvalidTransition
	case KindNotFound:
		return ErrNotFound
	case KindDeckExhausted:
		return ErrDeckExhausted
	case KindNotAuthorized:
		return ErrNotAuthorized
	default:
		return nil
	}
}

// Fatal reports whether the kind invalidates the hand it occurred in.
// Fatal errors indicate a bug or an attack and are logged as security events.
func (k Kind) Fatal() bool {
	return k == KindIntegrity || k == KindDeckExhausted
}

// Error is the error type returned by the game core.
type Error struct {
	Kind   Kind
	Op     string
	GameID string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.GameID != "" {
		msg += " (game " + e.GameID + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// Errorf builds an *Error with a formatted cause.
func Errorf(kind Kind, op, gameID, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, GameID: gameID, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
