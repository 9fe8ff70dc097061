package gameid

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Base32 alphabet used by TypeID (Crockford's base32)
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Length is the number of characters in an encoded id.
const Length = 26

// Generator creates game ids from UUIDv7 values. The random part comes
// from the configured reader, crypto/rand when nil.
type Generator struct {
	rand io.Reader
}

// NewGenerator creates a new generator with an optional entropy source
func NewGenerator(rand io.Reader) *Generator {
	return &Generator{rand: rand}
}

// Generate creates a new game ID using crypto/rand.
func Generate() string {
	return NewGenerator(nil).Generate()
}

// Generate creates a new game ID. The leading 48 bits are a millisecond
// timestamp so ids sort by creation time; the trailing bits are random.
func (g *Generator) Generate() string {
	var (
		id  uuid.UUID
		err error
	)
	if g.rand != nil {
		id, err = uuid.NewV7FromReader(g.rand)
	} else {
		id, err = uuid.NewV7()
	}
	if err != nil {
		panic("failed to generate random bytes: " + err.Error())
	}
	return Encode(id)
}

// Encode writes a UUID as 26 base32 characters. The 128 bits are right
// aligned in 130, so the first character is always 0-7.
func Encode(id uuid.UUID) string {
	hi := binary.BigEndian.Uint64(id[:8])
	lo := binary.BigEndian.Uint64(id[8:])

	var out [Length]byte
	for i := Length - 1; i >= 0; i-- {
		out[i] = alphabet[lo&0x1f]
		lo = lo>>5 | hi<<59
		hi >>= 5
	}
	return string(out[:])
}

// Parse decodes and validates a game ID.
func Parse(id string) (uuid.UUID, error) {
	if len(id) != Length {
		return uuid.Nil, fmt.Errorf("game ID must be exactly %d characters, got %d", Length, len(id))
	}
	if id[0] > '7' {
		return uuid.Nil, fmt.Errorf("game ID first character must be 0-7, got %c", id[0])
	}

	var hi, lo uint64
	for i := 0; i < len(id); i++ {
		v := decodeChar(id[i])
		if v < 0 {
			return uuid.Nil, fmt.Errorf("invalid character %c at position %d", id[i], i)
		}
		hi = hi<<5 | lo>>59
		lo = lo<<5 | uint64(v)
	}

	var out uuid.UUID
	binary.BigEndian.PutUint64(out[:8], hi)
	binary.BigEndian.PutUint64(out[8:], lo)
	if out.Version() != 7 || out.Variant() != uuid.RFC4122 {
		return uuid.Nil, fmt.Errorf("game ID is not a version 7 UUID")
	}
	return out, nil
}

// Validate checks if a game ID is well formed.
func Validate(id string) error {
	_, err := Parse(id)
	return err
}

func decodeChar(c byte) int {
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] == c {
			return i
		}
	}
	return -1
}
