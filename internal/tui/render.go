package tui

import (
	"fmt"
	"strings"

	"github.com/lox/blackjackd/internal/blackjack"
	"github.com/lox/blackjackd/internal/deck"
)

// RenderCard renders a card in its suit colour.
func RenderCard(c deck.Card) string {
	if c.Suit == deck.Hearts || c.Suit == deck.Diamonds {
		return RedCardStyle.Render(c.String())
	}
	return BlackCardStyle.Render(c.String())
}

// RenderHand renders the cards followed by the hand total.
func RenderHand(h blackjack.Hand) string {
	parts := make([]string, len(h))
	for i, c := range h {
		parts[i] = RenderCard(c)
	}
	total := fmt.Sprintf("(%d)", h.Total())
	if h.IsSoft() {
		total = fmt.Sprintf("(soft %d)", h.Total())
	}
	return strings.Join(parts, " ") + " " + HandInfoStyle.Render(total)
}

// RenderUpcard renders the dealer's visible card next to a hidden one.
func RenderUpcard(c deck.Card) string {
	return RenderCard(c) + " " + HiddenCardStyle.Render("??")
}

// RenderResult renders the result from the player's side.
func RenderResult(o blackjack.Outcome) string {
	label := strings.ToUpper(string(o.Result))
	switch {
	case o.Result == blackjack.Win && o.PlayerBlackjack:
		label = "BLACKJACK"
	case o.PlayerBust:
		label = "BUST"
	}

	switch o.Result {
	case blackjack.Win:
		return WinStyle.Render(label)
	case blackjack.Lose:
		return LoseStyle.Render(label)
	default:
		return PushStyle.Render(label)
	}
}

// RenderGame renders a finished game: both hands, the result and the
// seed that opens the deck commitment.
func RenderGame(res *blackjack.GameResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", HeaderStyle.Render(" Game "), res.GameID)
	fmt.Fprintf(&b, "  Player: %s\n", RenderHand(res.PlayerHand))
	fmt.Fprintf(&b, "  Dealer: %s\n", RenderHand(res.DealerHand))
	result := RenderResult(res.Outcome)
	if res.Surrendered {
		result += InfoStyle.Render(" (surrendered)")
	}
	fmt.Fprintf(&b, "  Result: %s\n", result)
	fmt.Fprintf(&b, "  %s\n", InfoStyle.Render("seed "+res.DeckSeed.String()))
	fmt.Fprintf(&b, "  %s\n", InfoStyle.Render("hash "+res.DeckHash))
	return b.String()
}
