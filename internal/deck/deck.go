package deck

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Size is the number of cards in a standard deck.
const Size = 52

// SeedSize is the number of entropy bytes in a shuffle seed.
const SeedSize = 32

// Deck is an ordered sequence of cards. Decks returned by this package are
// never mutated in place.
type Deck []Card

// NewDeck creates the standard 52-card deck in canonical suit-major order:
// spades, hearts, diamonds, clubs, each running A through K.
func NewDeck() Deck {
	cards := make(Deck, 0, Size)
	for _, suit := range Suits {
		for _, rank := range Ranks {
			cards = append(cards, NewCard(suit, rank))
		}
	}
	return cards
}

// Tokens returns the "suit-rank" token of every card in order.
func (d Deck) Tokens() []string {
	tokens := make([]string, len(d))
	for i, c := range d {
		tokens[i] = c.Token()
	}
	return tokens
}

// Seed is the secret that drives a shuffle.
type Seed [SeedSize]byte

// NewSeed reads a seed from r. Pass nil to use crypto/rand.
func NewSeed(r io.Reader) (Seed, error) {
	if r == nil {
		r = rand.Reader
	}
	var s Seed
	if _, err := io.ReadFull(r, s[:]); err != nil {
		return Seed{}, fmt.Errorf("failed to read seed entropy: %w", err)
	}
	return s, nil
}

// ParseSeed decodes a hex encoded seed.
func ParseSeed(str string) (Seed, error) {
	b, err := hex.DecodeString(strings.TrimSpace(str))
	if err != nil {
		return Seed{}, fmt.Errorf("invalid seed: %w", err)
	}
	if len(b) != SeedSize {
		return Seed{}, fmt.Errorf("invalid seed: want %d bytes, got %d", SeedSize, len(b))
	}
	var s Seed
	copy(s[:], b)
	return s, nil
}

// String returns the lowercase hex encoding of the seed.
func (s Seed) String() string {
	return hex.EncodeToString(s[:])
}

// MarshalText implements encoding.TextMarshaler.
func (s Seed) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Seed) UnmarshalText(text []byte) error {
	parsed, err := ParseSeed(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// byteStream expands a seed into an unbounded SHA-256 counter-mode stream.
type byteStream struct {
	seed    Seed
	counter uint64
	block   [sha256.Size]byte
	pos     int
}

func newByteStream(seed Seed) *byteStream {
	return &byteStream{seed: seed, pos: sha256.Size}
}

func (b *byteStream) next() byte {
	if b.pos == sha256.Size {
		var buf [SeedSize + 8]byte
		copy(buf[:], b.seed[:])
		binary.BigEndian.PutUint64(buf[SeedSize:], b.counter)
		b.block = sha256.Sum256(buf[:])
		b.counter++
		b.pos = 0
	}
	v := b.block[b.pos]
	b.pos++
	return v
}

// Shuffle returns a permutation of d determined solely by seed. Each
// Fisher-Yates step consumes one stream byte and scales it proportionally
// onto the i+1 positions still in play.
func Shuffle(d Deck, seed Seed) Deck {
	out := make(Deck, len(d))
	copy(out, d)

	stream := newByteStream(seed)
	for i := len(out) - 1; i > 0; i-- {
		j := int(stream.next()) * (i + 1) / 256
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Commit returns the hex SHA-256 digest of the exact card order.
func Commit(d Deck) string {
	sum := sha256.Sum256([]byte(strings.Join(d.Tokens(), ",")))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the commitment for a seed and compares it to hash.
func Verify(seed Seed, hash string) bool {
	expected := Commit(Shuffle(NewDeck(), seed))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(hash))) == 1
}

var (
	ErrDeckSize      = errors.New("deck must contain exactly 52 cards")
	ErrDuplicateCard = errors.New("duplicate card in deck")
	ErrInvalidCard   = errors.New("invalid card in deck")
)

// ValidateDeckIntegrity checks cardinality and uniqueness of a deck.
func ValidateDeckIntegrity(d Deck) error {
	if len(d) != Size {
		return fmt.Errorf("%w: got %d", ErrDeckSize, len(d))
	}
	var seen [Size]bool
	for i, c := range d {
		if !c.Valid() {
			return fmt.Errorf("%w at position %d", ErrInvalidCard, i)
		}
		if seen[c.Index()] {
			return fmt.Errorf("%w: %s at position %d", ErrDuplicateCard, c.Token(), i)
		}
		seen[c.Index()] = true
	}
	return nil
}

// Shoe deals from an immutable deck by advancing a cursor.
type Shoe struct {
	cards Deck
	next  int
}

// ResumeShoe wraps a deck that has already dealt n cards. The deck is not
// copied and must not be modified afterwards.
func ResumeShoe(d Deck, n int) *Shoe {
	if n < 0 {
		n = 0
	}
	if n > len(d) {
		n = len(d)
	}
	return &Shoe{cards: d, next: n}
}

// Deal returns the card at the cursor and advances it.
func (s *Shoe) Deal() (Card, bool) {
	if s.next >= len(s.cards) {
		return Card{}, false
	}
	card := s.cards[s.next]
	s.next++
	return card, true
}

// Dealt returns how many cards have left the shoe.
func (s *Shoe) Dealt() int {
	return s.next
}

// CardsRemaining returns the number of cards left in the shoe
func (s *Shoe) CardsRemaining() int {
	return len(s.cards) - s.next
}

// Remaining returns a copy of the undealt cards.
func (s *Shoe) Remaining() Deck {
	out := make(Deck, len(s.cards)-s.next)
	copy(out, s.cards[s.next:])
	return out
}
