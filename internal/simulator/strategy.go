package simulator

import (
	"fmt"

	"github.com/lox/blackjackd/internal/blackjack"
	"github.com/lox/blackjackd/internal/deck"
)

// Strategy picks the player's next action.
type Strategy interface {
	Decide(player blackjack.Hand, upcard deck.Card) blackjack.Action
}

// Threshold hits below StandOn and stands otherwise. With Surrender set
// it gives up a hard 15 or 16 against a dealer ten or ace on the first
// decision.
type Threshold struct {
	StandOn   int
	Surrender bool
}

// DefaultStrategy mirrors the dealer: stand on 17.
var DefaultStrategy = Threshold{StandOn: blackjack.DealerStandTotal}

// Decide implements Strategy.
func (s Threshold) Decide(player blackjack.Hand, upcard deck.Card) blackjack.Action {
	total := player.Total()
	if s.Surrender && len(player) == blackjack.MinHandSize && !player.IsSoft() &&
		(total == 15 || total == 16) && upcard.Value() >= 10 {
		return blackjack.Surrender
	}
	if total < s.StandOn && len(player) < blackjack.MaxHandSize {
		return blackjack.Hit
	}
	return blackjack.Stand
}

func (s Threshold) String() string {
	if s.Surrender {
		return fmt.Sprintf("threshold(%d, surrender)", s.StandOn)
	}
	return fmt.Sprintf("threshold(%d)", s.StandOn)
}
