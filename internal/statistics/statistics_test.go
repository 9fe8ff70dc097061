package statistics

import (
	"math"
	"testing"

	"github.com/lox/blackjackd/internal/blackjack"
	"github.com/lox/blackjackd/internal/deck"
)

func TestStatistics_Empty(t *testing.T) {
	stats := &Statistics{}

	if stats.Mean() != 0 {
		t.Errorf("Expected mean of 0 for empty stats, got %f", stats.Mean())
	}
	if stats.Variance() != 0 {
		t.Errorf("Expected variance of 0 for empty stats, got %f", stats.Variance())
	}
	if stats.StdError() != 0 {
		t.Errorf("Expected stderr of 0 for empty stats, got %f", stats.StdError())
	}
	if stats.Median() != 0 {
		t.Errorf("Expected median of 0 for empty stats, got %f", stats.Median())
	}
	if stats.Rate(0) != 0 {
		t.Errorf("Expected rate of 0 for empty stats, got %f", stats.Rate(0))
	}
	if err := stats.Validate(); err != nil {
		t.Errorf("Empty stats should validate: %v", err)
	}
}

func TestStatistics_Add(t *testing.T) {
	stats := &Statistics{}
	stats.Add(HandResult{Net: PayoutBlackjack, Result: blackjack.Win, Blackjack: true, PlayerCards: 2})
	stats.Add(HandResult{Net: PayoutLose, Result: blackjack.Lose, Bust: true, PlayerCards: 4})
	stats.Add(HandResult{Net: PayoutSurrender, Result: blackjack.Lose, Surrendered: true, PlayerCards: 2})
	stats.Add(HandResult{Net: 0, Result: blackjack.Push, PlayerCards: 3})
	stats.Add(HandResult{Net: PayoutWin, Result: blackjack.Win, DealerBust: true, PlayerCards: 2})

	if stats.Hands != 5 {
		t.Errorf("Expected 5 hands, got %d", stats.Hands)
	}
	if stats.Wins != 2 || stats.Losses != 2 || stats.Pushes != 1 {
		t.Errorf("Unexpected counts: %d/%d/%d", stats.Wins, stats.Losses, stats.Pushes)
	}
	if stats.Blackjacks != 1 || stats.Busts != 1 || stats.Surrenders != 1 || stats.DealerBusts != 1 {
		t.Errorf("Unexpected detail counts: %+v", stats)
	}
	if stats.MaxCards != 4 {
		t.Errorf("Expected max cards 4, got %d", stats.MaxCards)
	}
	if math.Abs(stats.Mean()-0.2) > 1e-9 {
		t.Errorf("Expected mean of 0.2, got %f", stats.Mean())
	}
	if stats.Median() != 0 {
		t.Errorf("Expected median of 0, got %f", stats.Median())
	}
	if stats.Rate(stats.Wins) != 0.4 {
		t.Errorf("Expected win rate 0.4, got %f", stats.Rate(stats.Wins))
	}
	if err := stats.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	low, high := stats.ConfidenceInterval95()
	if low >= stats.Mean() || high <= stats.Mean() {
		t.Errorf("Confidence interval [%f, %f] should contain mean %f", low, high, stats.Mean())
	}
}

func TestStatistics_Merge(t *testing.T) {
	a := &Statistics{}
	b := &Statistics{}
	a.Add(HandResult{Net: PayoutWin, Result: blackjack.Win, PlayerCards: 2})
	b.Add(HandResult{Net: PayoutLose, Result: blackjack.Lose, Bust: true, PlayerCards: 5})
	b.Add(HandResult{Net: 0, Result: blackjack.Push, PlayerCards: 2})

	a.Merge(b)
	if a.Hands != 3 || a.Wins != 1 || a.Losses != 1 || a.Pushes != 1 {
		t.Errorf("Unexpected merged counts: %+v", a)
	}
	if a.MaxCards != 5 {
		t.Errorf("Expected max cards 5, got %d", a.MaxCards)
	}
	if len(a.Values) != 3 {
		t.Errorf("Expected 3 values, got %d", len(a.Values))
	}
	if err := a.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestStatistics_ValidateDetectsMismatch(t *testing.T) {
	stats := &Statistics{Hands: 2, Wins: 1, Values: []float64{1, 0}}
	if err := stats.Validate(); err == nil {
		t.Error("Expected result mismatch error")
	}

	stats = &Statistics{Hands: 1, Losses: 1, Busts: 1, Surrenders: 1, Values: []float64{-1}}
	if err := stats.Validate(); err == nil {
		t.Error("Expected bust/surrender mismatch error")
	}
}

func TestFromGame(t *testing.T) {
	hand := func(list string) blackjack.Hand { return blackjack.Hand(deck.MustParseCards(list)) }

	tests := []struct {
		name        string
		player      blackjack.Hand
		dealer      blackjack.Hand
		surrendered bool
		net         float64
	}{
		{"natural", hand("spades-A, hearts-K"), hand("clubs-10, diamonds-9"), false, PayoutBlackjack},
		{"win", hand("spades-10, hearts-9"), hand("clubs-10, diamonds-8"), false, PayoutWin},
		{"bust", hand("spades-10, hearts-9, clubs-5"), hand("clubs-10, diamonds-8"), false, PayoutLose},
		{"push", hand("spades-10, hearts-8"), hand("clubs-10, diamonds-8"), false, 0},
		{"surrender", hand("spades-10, hearts-6"), hand("clubs-10, diamonds-8"), true, PayoutSurrender},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := blackjack.DetermineOutcome(tt.player, tt.dealer)
			if tt.surrendered {
				outcome.Result = blackjack.Lose
			}
			hr := FromGame(&blackjack.GameResult{
				PlayerHand:  tt.player,
				DealerHand:  tt.dealer,
				Outcome:     outcome,
				Surrendered: tt.surrendered,
			})
			if hr.Net != tt.net {
				t.Errorf("Expected net %f, got %f", tt.net, hr.Net)
			}
			if hr.PlayerCards != len(tt.player) {
				t.Errorf("Expected %d cards, got %d", len(tt.player), hr.PlayerCards)
			}
		})
	}
}

func TestVarianceOfIdenticalResults(t *testing.T) {
	stats := &Statistics{}
	for i := 0; i < 1000; i++ {
		stats.Add(HandResult{Net: PayoutSurrender, Result: blackjack.Lose, Surrendered: true})
	}
	if v := stats.Variance(); v < 0 || math.IsNaN(v) {
		t.Errorf("Expected non-negative variance, got %f", v)
	}
	if se := stats.StdError(); math.IsNaN(se) {
		t.Error("Expected finite standard error")
	}
}
