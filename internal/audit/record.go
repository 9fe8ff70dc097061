package audit

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/lox/blackjackd/internal/blackjack"
	"github.com/lox/blackjackd/internal/deck"
)

// FormatVersion is written into every record.
const FormatVersion = 1

// Record is the on-disk form of a finished game.
type Record struct {
	Version int                  `toml:"version"`
	Game    blackjack.GameResult `toml:"game"`
}

// NewRecord wraps a result for writing.
func NewRecord(result *blackjack.GameResult) *Record {
	return &Record{Version: FormatVersion, Game: *result}
}

// Encode writes the record as TOML.
func Encode(w io.Writer, rec *Record) error {
	if rec == nil {
		return fmt.Errorf("audit: record is nil")
	}
	enc := toml.NewEncoder(w)
	enc.Indent = "\t"
	return enc.Encode(rec)
}

// Decode reads a TOML record.
func Decode(r io.Reader) (*Record, error) {
	var rec Record
	if _, err := toml.NewDecoder(r).Decode(&rec); err != nil {
		return nil, fmt.Errorf("audit: decode record: %w", err)
	}
	if rec.Version != FormatVersion {
		return nil, fmt.Errorf("audit: unsupported record version %d", rec.Version)
	}
	return &rec, nil
}

// Load reads the record stored at path.
func Load(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Check re-derives a recorded game from its disclosed seed. It confirms the
// seed opens the published deck hash, that both hands are exactly the cards
// the shuffled deck deals in order, that the dealer followed the house
// policy and that the recorded outcome is the one the hands produce.
func Check(rec *Record) error {
	const op = "check record"
	g := &rec.Game

	if !deck.Verify(g.DeckSeed, g.DeckHash) {
		return blackjack.Errorf(blackjack.KindIntegrity, op, g.GameID, "seed does not match deck hash")
	}

	np, nd := len(g.PlayerHand), len(g.DealerHand)
	if np < blackjack.MinHandSize || nd < blackjack.MinHandSize {
		return blackjack.Errorf(blackjack.KindValidation, op, g.GameID, "hands must hold at least %d cards", blackjack.MinHandSize)
	}
	if g.CardsUsed != np+nd {
		return blackjack.Errorf(blackjack.KindIntegrity, op, g.GameID, "cards used %d, hands hold %d", g.CardsUsed, np+nd)
	}
	if np+nd > deck.Size {
		return blackjack.Errorf(blackjack.KindIntegrity, op, g.GameID, "hands hold more than a deck")
	}

	// Deal order: player, dealer, player, dealer, player hits, dealer draws.
	shuffled := deck.Shuffle(deck.NewDeck(), g.DeckSeed)
	expected := []deck.Card{g.PlayerHand[0], g.DealerHand[0], g.PlayerHand[1], g.DealerHand[1]}
	expected = append(expected, g.PlayerHand[2:]...)
	expected = append(expected, g.DealerHand[2:]...)
	for i, c := range expected {
		if shuffled[i] != c {
			return blackjack.Errorf(blackjack.KindIntegrity, op, g.GameID, "card %d is %s, deck dealt %s", i, c, shuffled[i])
		}
	}

	replayed, err := blackjack.ValidateSubmittedHands(g.PlayerHand, g.DealerHand, g.Surrendered)
	if err != nil {
		return err
	}
	if replayed.Outcome != g.Outcome {
		return blackjack.Errorf(blackjack.KindIntegrity, op, g.GameID, "recorded %s, hands give %s", g.Outcome.Result, replayed.Outcome.Result)
	}
	if !g.Authoritative {
		return blackjack.Errorf(blackjack.KindValidation, op, g.GameID, "record is not from an authoritative session")
	}
	return nil
}
