package blackjack

import "fmt"

// Result is the authoritative result of a hand from the player's side.
type Result string

const (
	Win  Result = "win"
	Lose Result = "lose"
	Push Result = "push"
)

// ParseResult parses a result string.
func ParseResult(s string) (Result, error) {
	switch Result(s) {
	case Win, Lose, Push:
		return Result(s), nil
	}
	return "", fmt.Errorf("invalid result %q", s)
}

// UnmarshalText rejects anything but the three results, so decoded records
// and wire messages cannot carry an invented result.
func (r *Result) UnmarshalText(text []byte) error {
	parsed, err := ParseResult(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Outcome is the pure comparison of two finished hands.
type Outcome struct {
	Result          Result `json:"result" toml:"result"`
	PlayerTotal     int    `json:"playerTotal" toml:"player_total"`
	DealerTotal     int    `json:"dealerTotal" toml:"dealer_total"`
	PlayerBust      bool   `json:"playerBust" toml:"player_bust"`
	DealerBust      bool   `json:"dealerBust" toml:"dealer_bust"`
	PlayerBlackjack bool   `json:"playerBlackjack" toml:"player_blackjack"`
	DealerBlackjack bool   `json:"dealerBlackjack" toml:"dealer_blackjack"`
}

// DetermineOutcome resolves two hands. The order of the checks is fixed:
// player bust, dealer bust, double natural, player natural, dealer natural,
// then totals. A natural beats a multi-card 21 in either direction.
func DetermineOutcome(player, dealer Hand) Outcome {
	o := Outcome{
		PlayerTotal:     player.Total(),
		DealerTotal:     dealer.Total(),
		PlayerBlackjack: player.IsBlackjack(),
		DealerBlackjack: dealer.IsBlackjack(),
	}
	o.PlayerBust = o.PlayerTotal > 21
	o.DealerBust = o.DealerTotal > 21

	switch {
	case o.PlayerBust:
		o.Result = Lose
	case o.DealerBust:
		o.Result = Win
	case o.PlayerBlackjack && o.DealerBlackjack:
		o.Result = Push
	case o.PlayerBlackjack:
		o.Result = Win
	case o.DealerBlackjack:
		o.Result = Lose
	case o.PlayerTotal > o.DealerTotal:
		o.Result = Win
	case o.PlayerTotal < o.DealerTotal:
		o.Result = Lose
	default:
		o.Result = Push
	}
	return o
}
