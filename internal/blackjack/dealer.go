package blackjack

import "github.com/lox/blackjackd/internal/deck"

// DrawFunc supplies the next card for the dealer. Implementations enforce
// card provenance; PlayDealer only applies the drawing policy.
type DrawFunc func() (deck.Card, error)

// PlayDealer draws while the hand totals below 17 and stands on 17 or more,
// soft totals included. It returns the extended hand.
func PlayDealer(hand Hand, draw DrawFunc) (Hand, error) {
	out := hand.Clone()
	for out.Total() < DealerStandTotal {
		if len(out) >= MaxHandSize {
			return out, Errorf(KindIntegrity, "dealer play", "", "dealer hand reached %d cards at %d", len(out), out.Total())
		}
		card, err := draw()
		if err != nil {
			return out, err
		}
		out = append(out, card)
	}
	return out, nil
}
