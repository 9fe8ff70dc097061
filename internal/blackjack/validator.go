package blackjack

import (
	"encoding/json"
	"fmt"

	"github.com/lox/blackjackd/internal/deck"
)

const (
	// MinHandSize is the smallest hand accepted from outside the core.
	MinHandSize = 2
	// MaxHandSize is a sanity ceiling on any hand.
	MaxHandSize = 10
	// DealerStandTotal is the total at which the dealer stops drawing.
	DealerStandTotal = 17
)

// IsValidCard checks domain membership of a card. Value/rank agreement is
// structural for deck.Card; submitted JSON is checked when it is decoded.
func IsValidCard(c deck.Card) error {
	if !c.Suit.Valid() {
		return Errorf(KindValidation, "validate card", "", "suit %d out of range", c.Suit)
	}
	if !c.Rank.Valid() {
		return Errorf(KindValidation, "validate card", "", "rank %d out of range", c.Rank)
	}
	return nil
}

// IsValidHand checks size bounds, card validity and that no card repeats.
func IsValidHand(h Hand) error {
	if len(h) < MinHandSize || len(h) > MaxHandSize {
		return Errorf(KindValidation, "validate hand", "", "hand has %d cards, want %d-%d", len(h), MinHandSize, MaxHandSize)
	}
	var used UsedCards
	for i, c := range h {
		if err := IsValidCard(c); err != nil {
			return Errorf(KindValidation, "validate hand", "", "card %d: %w", i, err)
		}
		if used.Contains(c) {
			return Errorf(KindIntegrity, "validate hand", "", "card %s appears twice", c.Token())
		}
		used.add(c)
	}
	return nil
}

// ValidateDealerPlay checks that a dealer hand is what hit-below-17 produces:
// the final total is at least 17 and every earlier prefix (from the initial
// two cards on) was below 17.
func ValidateDealerPlay(h Hand) error {
	if err := IsValidHand(h); err != nil {
		return err
	}
	if total := h.Total(); total < DealerStandTotal {
		return Errorf(KindValidation, "validate dealer", "", "dealer stood on %d", total)
	}
	for n := MinHandSize; n < len(h); n++ {
		if total := h[:n].Total(); total >= DealerStandTotal {
			return Errorf(KindValidation, "validate dealer", "", "dealer drew on %d after %d cards", total, n)
		}
	}
	return nil
}

// ValidateSubmittedHands is the validation-only path for hands that were
// not dealt by this core. It cannot prove the deck was not redealt, so the
// result is never authoritative.
func ValidateSubmittedHands(player, dealer Hand, surrendered bool) (*GameResult, error) {
	if err := IsValidHand(player); err != nil {
		return nil, err
	}
	if err := IsValidHand(dealer); err != nil {
		return nil, err
	}
	var used UsedCards
	for _, c := range append(player.Clone(), dealer...) {
		if err := used.Consume(c); err != nil {
			return nil, err
		}
	}

	// The dealer only plays out when the player stood without busting.
	if !surrendered && !player.IsBust() {
		if err := ValidateDealerPlay(dealer); err != nil {
			return nil, err
		}
	} else if len(dealer) != MinHandSize {
		return nil, Errorf(KindValidation, "validate submitted", "", "dealer drew %d cards on a finished hand", len(dealer)-MinHandSize)
	}

	res := &GameResult{
		PlayerHand:  player.Clone(),
		DealerHand:  dealer.Clone(),
		Outcome:     DetermineOutcome(player, dealer),
		Surrendered: surrendered,
	}
	if surrendered {
		res.Outcome.Result = Lose
	}
	return res, nil
}

// UsedCards is the set of card identities consumed in one game.
type UsedCards struct {
	seen [deck.Size]bool
	n    int
}

// Contains reports whether c has already been consumed.
func (u *UsedCards) Contains(c deck.Card) bool {
	return c.Valid() && u.seen[c.Index()]
}

// Consume records c, failing on invalid or previously consumed cards.
func (u *UsedCards) Consume(c deck.Card) error {
	if err := IsValidCard(c); err != nil {
		return &Error{Kind: KindIntegrity, Op: "consume card", Err: err}
	}
	if u.seen[c.Index()] {
		return Errorf(KindIntegrity, "consume card", "", "card %s already used", c.Token())
	}
	u.add(c)
	return nil
}

func (u *UsedCards) add(c deck.Card) {
	u.seen[c.Index()] = true
	u.n++
}

// Len returns the number of consumed cards.
func (u *UsedCards) Len() int {
	return u.n
}

// Cards returns the consumed cards in canonical deck order.
func (u *UsedCards) Cards() []deck.Card {
	out := make([]deck.Card, 0, u.n)
	for _, c := range deck.NewDeck() {
		if u.seen[c.Index()] {
			out = append(out, c)
		}
	}
	return out
}

// MarshalJSON encodes the set as a list of card tokens.
func (u UsedCards) MarshalJSON() ([]byte, error) {
	cards := u.Cards()
	tokens := make([]string, len(cards))
	for i, c := range cards {
		tokens[i] = c.Token()
	}
	return json.Marshal(tokens)
}

// UnmarshalJSON decodes a token list, rejecting duplicates.
func (u *UsedCards) UnmarshalJSON(data []byte) error {
	var tokens []string
	if err := json.Unmarshal(data, &tokens); err != nil {
		return err
	}
	var out UsedCards
	for _, tok := range tokens {
		c, err := deck.ParseCard(tok)
		if err != nil {
			return err
		}
		if err := out.Consume(c); err != nil {
			return fmt.Errorf("used cards: %w", err)
		}
	}
	*u = out
	return nil
}
