// Package blackjack implements the authoritative rules for a single
// player-versus-dealer blackjack hand.
//
// The main type is Game, which owns a committed, shuffled deck and every
// card dealt from it. Cards leave the deck only through a cursor and are
// recorded in a used-card set, so a card can never be dealt twice.
//
// # Basic Usage
//
//	g, err := blackjack.NewGame(id, owner, seed, now, now.Add(time.Hour))
//	// g.Player holds two cards, g.DealerUpcard() is the visible dealer card
//	res, err := g.Apply(blackjack.Hit, now)
//	if res != nil {
//	    // the hand is finished; res.DeckSeed discloses the shuffle seed
//	}
//
// # Validation-only path
//
// ValidateSubmittedHands checks hands that were not dealt by a Game. It can
// reject impossible hands but cannot prove the cards came from a fair deck,
// so its results are marked as not authoritative.
//
// # Errors
//
// All failures are *Error values carrying a Kind. Integrity violations and
// deck exhaustion are fatal for the hand and must never be retried.
package blackjack
