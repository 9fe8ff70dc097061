package session

import (
	"context"
	"time"

	"github.com/lox/blackjackd/internal/blackjack"
)

// Store persists game sessions keyed by game id.
//
// Implementations hand out copies: a game returned by Get is owned by the
// caller and changes only become visible through Put. Callers serialise
// read-modify-write cycles on one id with Lock.
type Store interface {
	// Get returns the session for id. Unknown and expired ids fail with a
	// NotFound error; Get never creates or removes a session.
	Get(ctx context.Context, id string) (*blackjack.Game, error)
	// Put stores the session, replacing any previous version.
	Put(ctx context.Context, g *blackjack.Game) error
	// Delete removes the session. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
	// SweepExpired removes every session that has expired at now and
	// returns their ids.
	SweepExpired(ctx context.Context, now time.Time) ([]string, error)
	// Lock acquires the per-key lock for id and returns the function that
	// releases it.
	Lock(ctx context.Context, id string) (func(), error)
	// Len returns the number of stored sessions, expired or not.
	Len() int
}
