package deck

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Suit represents a card suit
type Suit int

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

// Suits lists every suit in canonical deck order.
var Suits = [...]Suit{Spades, Hearts, Diamonds, Clubs}

// String returns the lowercase suit name used on the wire and in commitments.
func (s Suit) String() string {
	switch s {
	case Spades:
		return "spades"
	case Hearts:
		return "hearts"
	case Diamonds:
		return "diamonds"
	case Clubs:
		return "clubs"
	default:
		return "?"
	}
}

// Symbol returns the suit glyph for display.
func (s Suit) Symbol() string {
	switch s {
	case Spades:
		return "♠"
	case Hearts:
		return "♥"
	case Diamonds:
		return "♦"
	case Clubs:
		return "♣"
	default:
		return "?"
	}
}

// Valid reports whether s is one of the four suits.
func (s Suit) Valid() bool {
	return s >= Spades && s <= Clubs
}

// ParseSuit parses a suit name ("spades") or its single-letter code ("s").
func ParseSuit(str string) (Suit, error) {
	switch strings.ToLower(str) {
	case "spades", "s":
		return Spades, nil
	case "hearts", "h":
		return Hearts, nil
	case "diamonds", "d":
		return Diamonds, nil
	case "clubs", "c":
		return Clubs, nil
	}
	return 0, fmt.Errorf("invalid suit %q", str)
}

// Rank represents a card rank
type Rank int

const (
	Ace Rank = iota + 1
	Two
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
)

// Ranks lists every rank in canonical deck order.
var Ranks = [...]Rank{Ace, Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King}

// String returns the string representation of a rank
func (r Rank) String() string {
	switch r {
	case Ace:
		return "A"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	}
	if r >= Two && r <= Ten {
		return fmt.Sprintf("%d", int(r))
	}
	return "?"
}

// Valid reports whether r is one of the thirteen ranks.
func (r Rank) Valid() bool {
	return r >= Ace && r <= King
}

// Value returns the blackjack value of the rank before any soft-ace
// adjustment: aces count 11, face cards 10, everything else its pip count.
func (r Rank) Value() int {
	switch {
	case r == Ace:
		return 11
	case r >= Ten && r <= King:
		return 10
	case r >= Two && r <= Nine:
		return int(r)
	default:
		return 0
	}
}

// ParseRank parses "A", "2".."10", "J", "Q", "K" (and "T" for ten).
func ParseRank(str string) (Rank, error) {
	switch strings.ToUpper(str) {
	case "A":
		return Ace, nil
	case "J":
		return Jack, nil
	case "Q":
		return Queen, nil
	case "K":
		return King, nil
	case "T", "10":
		return Ten, nil
	}
	if len(str) == 1 && str[0] >= '2' && str[0] <= '9' {
		return Rank(str[0] - '0'), nil
	}
	return 0, fmt.Errorf("invalid rank %q", str)
}

// Card represents a playing card. Its identity is the (suit, rank) pair.
type Card struct {
	Suit Suit
	Rank Rank
}

// NewCard creates a new card
func NewCard(suit Suit, rank Rank) Card {
	return Card{Suit: suit, Rank: rank}
}

// Value returns the blackjack value of the card, aces counted high.
func (c Card) Value() int {
	return c.Rank.Value()
}

// IsAce returns true if the card is an Ace
func (c Card) IsAce() bool {
	return c.Rank == Ace
}

// Valid reports whether both suit and rank are inside the 52-card domain.
func (c Card) Valid() bool {
	return c.Suit.Valid() && c.Rank.Valid()
}

// Index maps the card onto 0..51 in canonical deck order.
func (c Card) Index() int {
	return int(c.Suit)*13 + int(c.Rank) - 1
}

// Token returns the "suit-rank" form used in deck commitments (e.g. "spades-A").
func (c Card) Token() string {
	return c.Suit.String() + "-" + c.Rank.String()
}

// String returns the display form of the card (e.g. "A♠")
func (c Card) String() string {
	return c.Rank.String() + c.Suit.Symbol()
}

// ParseCard parses a "suit-rank" token such as "hearts-10".
func ParseCard(token string) (Card, error) {
	suitStr, rankStr, ok := strings.Cut(token, "-")
	if !ok {
		return Card{}, fmt.Errorf("invalid card %q: want suit-rank", token)
	}
	suit, err := ParseSuit(suitStr)
	if err != nil {
		return Card{}, err
	}
	rank, err := ParseRank(rankStr)
	if err != nil {
		return Card{}, err
	}
	return NewCard(suit, rank), nil
}

type cardJSON struct {
	Suit  string `json:"suit"`
	Rank  string `json:"rank"`
	Value int    `json:"value"`
}

// MarshalJSON encodes the card with its derived value.
func (c Card) MarshalJSON() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("cannot encode invalid card %d/%d", c.Suit, c.Rank)
	}
	return json.Marshal(cardJSON{Suit: c.Suit.String(), Rank: c.Rank.String(), Value: c.Value()})
}

// UnmarshalJSON decodes a card and rejects any value that disagrees with
// the rank.
func (c *Card) UnmarshalJSON(data []byte) error {
	var raw cardJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	suit, err := ParseSuit(raw.Suit)
	if err != nil {
		return err
	}
	rank, err := ParseRank(raw.Rank)
	if err != nil {
		return err
	}
	if raw.Value != rank.Value() {
		return fmt.Errorf("card %s-%s: value %d does not match rank (want %d)", raw.Suit, raw.Rank, raw.Value, rank.Value())
	}
	*c = NewCard(suit, rank)
	return nil
}

// MarshalText encodes the card as its token, used by the audit TOML files.
func (c Card) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("cannot encode invalid card %d/%d", c.Suit, c.Rank)
	}
	return []byte(c.Token()), nil
}

// UnmarshalText decodes a card token.
func (c *Card) UnmarshalText(text []byte) error {
	card, err := ParseCard(string(text))
	if err != nil {
		return err
	}
	*c = card
	return nil
}

// ParseCards parses a comma separated list of card tokens.
func ParseCards(list string) ([]Card, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	parts := strings.Split(list, ",")
	cards := make([]Card, 0, len(parts))
	for _, p := range parts {
		card, err := ParseCard(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	return cards, nil
}

// MustParseCards is like ParseCards but panics on error. Intended for tests
// and fixtures.
func MustParseCards(list string) []Card {
	cards, err := ParseCards(list)
	if err != nil {
		panic(err)
	}
	return cards
}
