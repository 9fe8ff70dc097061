package statistics

import (
	"fmt"
	"math"
	"sort"

	"github.com/lox/blackjackd/internal/blackjack"
)

// Payouts in units of the stake.
const (
	PayoutWin       = 1.0
	PayoutBlackjack = 1.5
	PayoutSurrender = -0.5
	PayoutLose      = -1.0
)

// HandResult is the summary of one finished game
type HandResult struct {
	Net         float64 // Stake units won or lost
	Result      blackjack.Result
	Blackjack   bool // Player natural
	Bust        bool // Player busted
	DealerBust  bool
	Surrendered bool
	PlayerCards int
}

// FromGame summarises a finished game.
func FromGame(res *blackjack.GameResult) HandResult {
	o := res.Outcome
	hr := HandResult{
		Result:      o.Result,
		Blackjack:   o.PlayerBlackjack,
		Bust:        o.PlayerBust,
		DealerBust:  o.DealerBust,
		Surrendered: res.Surrendered,
		PlayerCards: len(res.PlayerHand),
	}

	switch {
	case res.Surrendered:
		hr.Net = PayoutSurrender
	case o.Result == blackjack.Win && o.PlayerBlackjack:
		hr.Net = PayoutBlackjack
	case o.Result == blackjack.Win:
		hr.Net = PayoutWin
	case o.Result == blackjack.Lose:
		hr.Net = PayoutLose
	}
	return hr
}

// Statistics aggregates hand results
type Statistics struct {
	Hands  int
	Sum    float64
	Sum2   float64   // Sum of squares for variance calculation
	Values []float64 // Store all values for median/percentile calculation

	Wins        int
	Losses      int
	Pushes      int
	Blackjacks  int
	Busts       int
	DealerBusts int
	Surrenders  int
	MaxCards    int
}

// Mean returns the mean stake units per hand
func (s *Statistics) Mean() float64 {
	if s.Hands == 0 {
		return 0
	}
	return s.Sum / float64(s.Hands)
}

// Variance returns the sample variance of all results
func (s *Statistics) Variance() float64 {
	if s.Hands < 2 {
		return 0
	}
	mean := s.Mean()
	// Rounding can push identical samples slightly below zero.
	return math.Max(0, (s.Sum2-float64(s.Hands)*mean*mean)/float64(s.Hands-1))
}

// StdDev returns the sample standard deviation of all results
func (s *Statistics) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// StdError returns the standard error of the mean
func (s *Statistics) StdError() float64 {
	if s.Hands == 0 {
		return 0
	}
	return s.StdDev() / math.Sqrt(float64(s.Hands))
}

// ConfidenceInterval95 returns the 95% confidence interval for the mean
func (s *Statistics) ConfidenceInterval95() (float64, float64) {
	mean := s.Mean()
	margin := 1.96 * s.StdError()
	return mean - margin, mean + margin
}

// Add incorporates a new hand result into the statistics
func (s *Statistics) Add(result HandResult) {
	s.Hands++
	s.Sum += result.Net
	s.Sum2 += result.Net * result.Net
	s.Values = append(s.Values, result.Net)

	switch result.Result {
	case blackjack.Win:
		s.Wins++
	case blackjack.Lose:
		s.Losses++
	case blackjack.Push:
		s.Pushes++
	}
	if result.Blackjack {
		s.Blackjacks++
	}
	if result.Bust {
		s.Busts++
	}
	if result.DealerBust {
		s.DealerBusts++
	}
	if result.Surrendered {
		s.Surrenders++
	}
	if result.PlayerCards > s.MaxCards {
		s.MaxCards = result.PlayerCards
	}
}

// Merge folds other into s.
func (s *Statistics) Merge(other *Statistics) {
	s.Hands += other.Hands
	s.Sum += other.Sum
	s.Sum2 += other.Sum2
	s.Values = append(s.Values, other.Values...)
	s.Wins += other.Wins
	s.Losses += other.Losses
	s.Pushes += other.Pushes
	s.Blackjacks += other.Blackjacks
	s.Busts += other.Busts
	s.DealerBusts += other.DealerBusts
	s.Surrenders += other.Surrenders
	s.MaxCards = max(s.MaxCards, other.MaxCards)
}

// Median returns the median value of all results
func (s *Statistics) Median() float64 {
	return s.Percentile(0.5)
}

// Percentile returns the value at the given percentile (0.0 to 1.0)
func (s *Statistics) Percentile(p float64) float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sorted := make([]float64, len(s.Values))
	copy(sorted, s.Values)
	sort.Float64s(sorted)

	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// Rate returns n as a fraction of all hands.
func (s *Statistics) Rate(n int) float64 {
	if s.Hands == 0 {
		return 0
	}
	return float64(n) / float64(s.Hands)
}

// Validate checks that the counters agree with each other
func (s *Statistics) Validate() error {
	if s.Wins+s.Losses+s.Pushes != s.Hands {
		return fmt.Errorf("result mismatch: %d wins + %d losses + %d pushes != %d hands",
			s.Wins, s.Losses, s.Pushes, s.Hands)
	}
	if len(s.Values) != s.Hands {
		return fmt.Errorf("recorded %d values for %d hands", len(s.Values), s.Hands)
	}
	if s.Blackjacks > s.Wins+s.Pushes {
		return fmt.Errorf("%d blackjacks exceed %d non-losing hands", s.Blackjacks, s.Wins+s.Pushes)
	}
	if s.Busts+s.Surrenders > s.Losses {
		return fmt.Errorf("%d busts and %d surrenders exceed %d losses", s.Busts, s.Surrenders, s.Losses)
	}
	return nil
}
