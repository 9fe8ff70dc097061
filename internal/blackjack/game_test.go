package blackjack

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/blackjackd/internal/deck"
)

var testNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func testSeed() deck.Seed {
	var s deck.Seed
	for i := range s {
		s[i] = byte(i * 3)
	}
	return s
}

// riggedGame builds a game whose deck starts with the given cards, dealt in
// the usual order (player, dealer, player, dealer, then draws).
func riggedGame(t *testing.T, top string) *Game {
	t.Helper()
	first := deck.MustParseCards(top)
	var used UsedCards
	order := make(deck.Deck, 0, deck.Size)
	for _, c := range first {
		require.NoError(t, used.Consume(c))
		order = append(order, c)
	}
	for _, c := range deck.NewDeck() {
		if !used.Contains(c) {
			order = append(order, c)
		}
	}
	require.NoError(t, deck.ValidateDeckIntegrity(order))

	g := &Game{ID: "rigged", OwnerID: "owner", Deck: order, Hash: deck.Commit(order), Phase: PhaseInitial}
	for i := 0; i < 4; i++ {
		c, err := g.draw()
		require.NoError(t, err)
		if i%2 == 0 {
			g.Player = append(g.Player, c)
		} else {
			g.Dealer = append(g.Dealer, c)
		}
	}
	require.NoError(t, g.CheckInvariants())
	return g
}

func TestNewGameDealsAlternately(t *testing.T) {
	seed := testSeed()
	g, err := NewGame("g1", "owner", seed, testNow, testNow.Add(time.Hour))
	require.NoError(t, err)

	shuffled := deck.Shuffle(deck.NewDeck(), seed)
	assert.Equal(t, Hand{shuffled[0], shuffled[2]}, g.Player)
	assert.Equal(t, Hand{shuffled[1], shuffled[3]}, g.Dealer)
	assert.Equal(t, shuffled[1], g.DealerUpcard())
	assert.Equal(t, deck.Commit(shuffled), g.Hash)
	assert.Equal(t, 4, g.Used.Len())
	assert.Equal(t, deck.Size-4, g.Remaining())
	assert.Equal(t, PhaseInitial, g.Phase)
	require.NoError(t, g.CheckInvariants())
}

func TestHitInProgress(t *testing.T) {
	g := riggedGame(t, "spades-2,hearts-10,spades-3,hearts-7,clubs-4")

	res, err := g.Apply(Hit, testNow)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, PhasePlayerTurn, g.Phase)
	assert.Len(t, g.Player, 3)
	assert.Equal(t, 9, g.Player.Total())
	assert.Equal(t, 5, g.Used.Len())
	require.NoError(t, g.CheckInvariants())
}

func TestHitBustFinishesWithoutDealerPlay(t *testing.T) {
	// Player 10+6, dealer 2+3 (would have to draw), player hits a king.
	g := riggedGame(t, "spades-10,hearts-2,spades-6,hearts-3,clubs-K")

	res, err := g.Apply(Hit, testNow)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, PhaseFinished, g.Phase)
	assert.Equal(t, Lose, res.Outcome.Result)
	assert.True(t, res.Outcome.PlayerBust)
	assert.Len(t, res.DealerHand, 2, "dealer must not draw after a player bust")
	assert.Equal(t, 5, res.CardsUsed)
	assert.Equal(t, Hit, res.FinalAction)
	assert.True(t, res.Authoritative)
	assert.Equal(t, testNow, res.FinishedAt)
}

func TestStandRunsDealer(t *testing.T) {
	// Player 10+9, dealer 10+6 draws the 5 for 21.
	g := riggedGame(t, "spades-10,hearts-10,spades-9,hearts-6,clubs-5,clubs-6")

	res, err := g.Apply(Stand, testNow)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, PhaseFinished, g.Phase)
	assert.Equal(t, Hand(deck.MustParseCards("hearts-10,hearts-6,clubs-5")), res.DealerHand)
	assert.Equal(t, Lose, res.Outcome.Result)
	assert.Equal(t, 21, res.Outcome.DealerTotal)
	assert.NoError(t, ValidateDealerPlay(res.DealerHand))
	require.NoError(t, g.CheckInvariants())
}

func TestStandDealerStandsOnSeventeen(t *testing.T) {
	g := riggedGame(t, "spades-10,hearts-10,spades-8,hearts-7,clubs-5")

	res, err := g.Apply(Stand, testNow)
	require.NoError(t, err)
	assert.Len(t, res.DealerHand, 2)
	assert.Equal(t, Win, res.Outcome.Result)
	assert.Equal(t, 4, res.CardsUsed)
}

func TestNaturalBeatsDealerMultiCardTwentyOne(t *testing.T) {
	g := riggedGame(t, "spades-A,hearts-10,spades-K,hearts-6,clubs-5")

	res, err := g.Apply(Stand, testNow)
	require.NoError(t, err)
	assert.Equal(t, 21, res.Outcome.DealerTotal)
	assert.True(t, res.Outcome.PlayerBlackjack)
	assert.Equal(t, Win, res.Outcome.Result)
}

func TestSurrenderForcesLoss(t *testing.T) {
	// The player would win on totals; surrender still loses.
	g := riggedGame(t, "spades-10,hearts-10,spades-9,hearts-7")

	res, err := g.Apply(Surrender, testNow)
	require.NoError(t, err)
	assert.Equal(t, Lose, res.Outcome.Result)
	assert.True(t, res.Surrendered)
	assert.Equal(t, Surrender, res.FinalAction)
	assert.Len(t, res.DealerHand, 2)
	assert.Equal(t, PhaseFinished, g.Phase)
}

func TestNoActionAfterFinish(t *testing.T) {
	g := riggedGame(t, "spades-10,hearts-10,spades-9,hearts-7")
	_, err := g.Apply(Stand, testNow)
	require.NoError(t, err)

	before := g.Clone()
	for _, a := range []Action{Hit, Stand, Surrender} {
		res, err := g.Apply(a, testNow)
		assert.Nil(t, res)
		require.Error(t, err)
		assert.Equal(t, KindInvalidTransition, KindOf(err))
	}
	assert.Equal(t, before, g, "rejected actions must not touch the game")
}

func TestUnknownActionRejected(t *testing.T) {
	g := riggedGame(t, "spades-2,hearts-10,spades-3,hearts-7")
	_, err := g.Apply(Action(99), testNow)
	assert.Equal(t, KindInvalidTransition, KindOf(err))
	assert.Equal(t, PhaseInitial, g.Phase)
}

func TestDuplicateCardIsIntegrityViolation(t *testing.T) {
	g := riggedGame(t, "spades-2,hearts-10,spades-3,hearts-7")

	// Corrupt the deck so the next card repeats the player's first card.
	corrupted := make(deck.Deck, len(g.Deck))
	copy(corrupted, g.Deck)
	corrupted[g.Dealt] = g.Player[0]
	g.Deck = corrupted

	res, err := g.Apply(Hit, testNow)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.Equal(t, KindIntegrity, KindOf(err))
	assert.ErrorIs(t, err, ErrIntegrity)
	assert.Len(t, g.Player, 2, "duplicate must not enter the hand")
	assert.Equal(t, 4, g.Used.Len())
	assert.Contains(t, err.Error(), "rigged")
}

func TestDeckExhaustion(t *testing.T) {
	g := riggedGame(t, "spades-2,hearts-2,spades-3,hearts-3")
	g.Dealt = len(g.Deck)

	_, err := g.Apply(Hit, testNow)
	assert.Equal(t, KindDeckExhausted, KindOf(err))
	assert.True(t, KindOf(err).Fatal())
}

func TestHitRefusedAtHandCeiling(t *testing.T) {
	g := riggedGame(t, "spades-A,hearts-10,hearts-A,hearts-7,clubs-A,diamonds-A,spades-2,hearts-2,clubs-2,diamonds-2,spades-3")
	for i := 0; i < 7; i++ {
		res, err := g.Apply(Hit, testNow)
		require.NoError(t, err)
		require.Nil(t, res)
	}
	require.Len(t, g.Player, MaxHandSize-1)

	// A tenth card reaches the ceiling.
	g2 := g.Clone()
	g2.Player = append(g2.Player, deck.NewCard(deck.Diamonds, deck.Three))
	assert.Equal(t, []Action{Stand, Surrender}, g2.LegalActions())
	_, err := g2.Apply(Hit, testNow)
	assert.Equal(t, KindInvalidTransition, KindOf(err))
}

func TestLegalActions(t *testing.T) {
	g := riggedGame(t, "spades-2,hearts-10,spades-3,hearts-7,clubs-4")
	assert.Equal(t, []Action{Hit, Stand, Surrender}, g.LegalActions())

	_, err := g.Apply(Hit, testNow)
	require.NoError(t, err)
	assert.Equal(t, []Action{Hit, Stand, Surrender}, g.LegalActions())

	_, err = g.Apply(Stand, testNow)
	require.NoError(t, err)
	assert.Empty(t, g.LegalActions())
}

func TestUsedCardsGrowMonotonically(t *testing.T) {
	for i := 0; i < 50; i++ {
		var seed deck.Seed
		seed[0] = byte(i)
		seed[1] = byte(i >> 8)
		g, err := NewGame("mono", "owner", seed, testNow, testNow.Add(time.Hour))
		require.NoError(t, err)

		prev := g.Used.Len()
		for g.Phase != PhaseFinished {
			action := Hit
			if g.Player.Total() >= 15 {
				action = Stand
			}
			_, err := g.Apply(action, testNow)
			require.NoError(t, err)
			require.GreaterOrEqual(t, g.Used.Len(), prev)
			require.LessOrEqual(t, g.Used.Len(), deck.Size)
			require.Equal(t, deck.Size, g.Used.Len()+g.Remaining())
			require.NoError(t, g.CheckInvariants())
			prev = g.Used.Len()
		}
	}
}

func TestGameJSONRoundTrip(t *testing.T) {
	g, err := NewGame("json", "owner", testSeed(), testNow, testNow.Add(time.Hour))
	require.NoError(t, err)
	_, err = g.Apply(Hit, testNow)
	require.NoError(t, err)

	data, err := json.Marshal(g)
	require.NoError(t, err)

	var decoded Game
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, g.Player, decoded.Player)
	assert.Equal(t, g.Used, decoded.Used)
	assert.Equal(t, g.Phase, decoded.Phase)
	assert.Equal(t, g.Seed, decoded.Seed)
	require.NoError(t, decoded.CheckInvariants())
}

func TestCheckInvariantsDetectsTampering(t *testing.T) {
	g := riggedGame(t, "spades-2,hearts-10,spades-3,hearts-7")

	tampered := g.Clone()
	tampered.Player[0] = deck.NewCard(deck.Clubs, deck.Ace)
	assert.Equal(t, KindIntegrity, KindOf(tampered.CheckInvariants()))

	rehashed := g.Clone()
	rehashed.Hash = "00"
	assert.Equal(t, KindIntegrity, KindOf(rehashed.CheckInvariants()))
}

func TestExpired(t *testing.T) {
	g := &Game{ExpiresAt: testNow}
	assert.False(t, g.Expired(testNow.Add(-time.Second)))
	assert.True(t, g.Expired(testNow))
	assert.False(t, (&Game{}).Expired(testNow))
}
