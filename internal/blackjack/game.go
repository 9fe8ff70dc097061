package blackjack

import (
	"errors"
	"time"

	"github.com/lox/blackjackd/internal/deck"
)

// GameResult is the immutable record of a finished hand. It discloses the
// deck seed so the commitment handed out at creation can be checked.
type GameResult struct {
	GameID        string    `json:"gameId" toml:"game_id"`
	OwnerID       string    `json:"ownerId" toml:"owner_id"`
	PlayerHand    Hand      `json:"playerHand" toml:"player_hand"`
	DealerHand    Hand      `json:"dealerHand" toml:"dealer_hand"`
	Outcome       Outcome   `json:"outcome" toml:"outcome"`
	Surrendered   bool      `json:"surrendered" toml:"surrendered"`
	FinalAction   Action    `json:"finalAction,omitempty" toml:"final_action"`
	DeckSeed      deck.Seed `json:"deckSeed" toml:"deck_seed"`
	DeckHash      string    `json:"deckHash" toml:"deck_hash"`
	CardsUsed     int       `json:"cardsUsed" toml:"cards_used"`
	Authoritative bool      `json:"authoritative" toml:"authoritative"`
	FinishedAt    time.Time `json:"finishedAt" toml:"finished_at"`
}

// Game is the full server-side state of one hand. The shuffled deck is
// never modified; Dealt is the cursor into it and Used mirrors every card
// that has left it.
type Game struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Seed      deck.Seed `json:"seed"`
	Hash      string    `json:"hash"`
	Deck      deck.Deck `json:"deck"`
	Dealt     int       `json:"dealt"`
	Player    Hand      `json:"player"`
	Dealer    Hand      `json:"dealer"`
	Phase     Phase     `json:"phase"`
	Used      UsedCards `json:"used"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewGame shuffles and commits a deck for seed and deals the opening hands:
// deck positions 0 and 2 to the player, 1 and 3 to the dealer.
func NewGame(id, ownerID string, seed deck.Seed, createdAt, expiresAt time.Time) (*Game, error) {
	cards := deck.Shuffle(deck.NewDeck(), seed)
	if err := deck.ValidateDeckIntegrity(cards); err != nil {
		return nil, &Error{Kind: KindIntegrity, Op: "new game", GameID: id, Err: err}
	}

	g := &Game{
		ID:        id,
		OwnerID:   ownerID,
		Seed:      seed,
		Hash:      deck.Commit(cards),
		Deck:      cards,
		Phase:     PhaseInitial,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}

	for i := 0; i < 4; i++ {
		card, err := g.draw()
		if err != nil {
			return nil, g.annotate("new game", err)
		}
		if i%2 == 0 {
			g.Player = append(g.Player, card)
		} else {
			g.Dealer = append(g.Dealer, card)
		}
	}
	return g, nil
}

// Apply processes one player action. It returns a result once the hand is
// finished and nil while the player is still to act. Actions that are not
// legal in the current phase leave the game untouched.
func (g *Game) Apply(action Action, now time.Time) (*GameResult, error) {
	next, ok := g.Phase.Next(action)
	if !ok {
		return nil, Errorf(KindInvalidTransition, action.String(), g.ID, "%s not allowed in phase %s", action, g.Phase)
	}

	switch action {
	case Hit:
		if len(g.Player) >= MaxHandSize {
			return nil, Errorf(KindInvalidTransition, "hit", g.ID, "player hand already holds %d cards", len(g.Player))
		}
		card, err := g.draw()
		if err != nil {
			return nil, g.annotate("hit", err)
		}
		g.Player = append(g.Player, card)
		g.Phase = next
		if g.Player.IsBust() {
			// A player bust is decisive; the dealer does not play.
			g.Phase = PhaseFinished
			return g.finish(Hit, false, now), nil
		}
		return nil, nil

	case Stand:
		g.Phase = next
		dealer, err := PlayDealer(g.Dealer, g.draw)
		g.Dealer = dealer
		if err != nil {
			return nil, g.annotate("dealer play", err)
		}
		g.Phase = PhaseFinished
		return g.finish(Stand, false, now), nil

	case Surrender:
		g.Phase = next
		return g.finish(Surrender, true, now), nil
	}
	return nil, Errorf(KindInvalidTransition, "apply", g.ID, "unhandled action %s", action)
}

// draw takes the card at the cursor, refusing anything already consumed.
func (g *Game) draw() (deck.Card, error) {
	shoe := deck.ResumeShoe(g.Deck, g.Dealt)
	card, ok := shoe.Deal()
	if !ok {
		return deck.Card{}, Errorf(KindDeckExhausted, "draw", g.ID, "no cards left after %d dealt", g.Dealt)
	}
	if err := g.Used.Consume(card); err != nil {
		return deck.Card{}, err
	}
	g.Dealt = shoe.Dealt()
	return card, nil
}

func (g *Game) finish(action Action, surrendered bool, now time.Time) *GameResult {
	outcome := DetermineOutcome(g.Player, g.Dealer)
	if surrendered {
		outcome.Result = Lose
	}
	return &GameResult{
		GameID:        g.ID,
		OwnerID:       g.OwnerID,
		PlayerHand:    g.Player.Clone(),
		DealerHand:    g.Dealer.Clone(),
		Outcome:       outcome,
		Surrendered:   surrendered,
		FinalAction:   action,
		DeckSeed:      g.Seed,
		DeckHash:      g.Hash,
		CardsUsed:     g.Used.Len(),
		Authoritative: true,
		FinishedAt:    now,
	}
}

// annotate stamps the op and game id onto core errors.
func (g *Game) annotate(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		if e.GameID == "" {
			e.GameID = g.ID
		}
		if e.Op == "" {
			e.Op = op
		}
		return e
	}
	return &Error{Kind: KindIntegrity, Op: op, GameID: g.ID, Err: err}
}

// DealerUpcard returns the dealer's exposed card.
func (g *Game) DealerUpcard() deck.Card {
	return g.Dealer[0]
}

// Remaining returns the number of cards left in the deck.
func (g *Game) Remaining() int {
	return deck.ResumeShoe(g.Deck, g.Dealt).CardsRemaining()
}

// LegalActions returns the actions Apply accepts now. Hit is withheld once
// the player's hand is full.
func (g *Game) LegalActions() []Action {
	var out []Action
	for _, a := range g.Phase.LegalActions() {
		if a == Hit && len(g.Player) >= MaxHandSize {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Expired reports whether the game is past its expiry at now.
func (g *Game) Expired(now time.Time) bool {
	return !g.ExpiresAt.IsZero() && !now.Before(g.ExpiresAt)
}

// Clone returns a copy that can be mutated without affecting g. The
// shuffled deck is shared because it is never written.
func (g *Game) Clone() *Game {
	c := *g
	c.Player = g.Player.Clone()
	c.Dealer = g.Dealer.Clone()
	return &c
}

// CheckInvariants verifies the card accounting of the game: the deck is a
// full permutation matching the commitment, every dealt card is in a hand
// and in the used set, and nothing left in the deck has been used.
func (g *Game) CheckInvariants() error {
	const op = "check invariants"
	if err := deck.ValidateDeckIntegrity(g.Deck); err != nil {
		return &Error{Kind: KindIntegrity, Op: op, GameID: g.ID, Err: err}
	}
	if deck.Commit(g.Deck) != g.Hash {
		return Errorf(KindIntegrity, op, g.ID, "deck does not match commitment")
	}
	if g.Dealt < 0 || g.Dealt > len(g.Deck) {
		return Errorf(KindIntegrity, op, g.ID, "cursor %d out of range", g.Dealt)
	}
	if g.Used.Len() != g.Dealt {
		return Errorf(KindIntegrity, op, g.ID, "%d cards used but %d dealt", g.Used.Len(), g.Dealt)
	}
	if len(g.Player)+len(g.Dealer) != g.Dealt {
		return Errorf(KindIntegrity, op, g.ID, "hands hold %d cards but %d dealt", len(g.Player)+len(g.Dealer), g.Dealt)
	}
	for _, h := range []Hand{g.Player, g.Dealer} {
		if len(h) < 1 || len(h) > MaxHandSize {
			return Errorf(KindIntegrity, op, g.ID, "hand size %d out of bounds", len(h))
		}
		for _, c := range h {
			if !g.Used.Contains(c) {
				return Errorf(KindIntegrity, op, g.ID, "card %s in hand but not used", c.Token())
			}
		}
	}
	for _, c := range deck.ResumeShoe(g.Deck, g.Dealt).Remaining() {
		if g.Used.Contains(c) {
			return Errorf(KindIntegrity, op, g.ID, "card %s used but still in deck", c.Token())
		}
	}
	return nil
}
