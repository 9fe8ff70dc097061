package blackjack

import (
	"strings"

	"github.com/lox/blackjackd/internal/deck"
)

// Hand is an ordered, grow-only sequence of cards.
type Hand []deck.Card

// Total sums the hand with aces high, then demotes aces one at a time
// while the hand is over 21.
func (h Hand) Total() int {
	total, _ := h.total()
	return total
}

// IsSoft reports whether an ace is still counted as 11.
func (h Hand) IsSoft() bool {
	_, soft := h.total()
	return soft > 0
}

func (h Hand) total() (total, softAces int) {
	for _, c := range h {
		total += c.Value()
		if c.IsAce() {
			softAces++
		}
	}
	for total > 21 && softAces > 0 {
		total -= 10
		softAces--
	}
	return total, softAces
}

// IsBlackjack reports a natural: exactly two cards totalling 21.
func (h Hand) IsBlackjack() bool {
	return len(h) == 2 && h.Total() == 21
}

// IsBust reports whether the hand is over 21.
func (h Hand) IsBust() bool {
	return h.Total() > 21
}

// Clone returns an independent copy of the hand.
func (h Hand) Clone() Hand {
	if h == nil {
		return nil
	}
	out := make(Hand, len(h))
	copy(out, h)
	return out
}

func (h Hand) String() string {
	parts := make([]string, len(h))
	for i, c := range h {
		parts[i] = c.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
