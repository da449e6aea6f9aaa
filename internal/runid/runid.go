// Package runid issues time-sortable identifiers for simulation runs.
//
// An ID is a UUIDv7 written as 26 Crockford base32 digits, so IDs sort by
// creation time as plain strings.
package runid

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/lox/uboat/internal/randutil"
)

// Length is the number of characters in an ID.
const Length = 26

const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

var ErrInvalid = errors.New("invalid run id")

// Generator issues IDs from a clock and a source of random bytes.
type Generator struct {
	clock quartz.Clock

	mu     sync.Mutex
	random io.Reader
}

// NewGenerator returns a generator. A nil random reader uses crypto/rand.
func NewGenerator(clock quartz.Clock, random io.Reader) *Generator {
	if random == nil {
		random = crand.Reader
	}
	return &Generator{clock: clock, random: random}
}

// New returns a fresh ID.
func (g *Generator) New() (string, error) {
	var id [16]byte

	ms := uint64(g.clock.Now("runid").UnixMilli())
	binary.BigEndian.PutUint16(id[0:2], uint16(ms>>32))
	binary.BigEndian.PutUint32(id[2:6], uint32(ms))

	g.mu.Lock()
	_, err := io.ReadFull(g.random, id[6:])
	g.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("%w: %v", randutil.ErrRandomSourceUnavailable, err)
	}

	id[6] = id[6]&0x0f | 0x70 // version 7
	id[8] = id[8]&0x3f | 0x80 // RFC 4122 variant

	return encode(id), nil
}

// encode writes the 128 bits as 26 digits, most significant first. The two
// missing high bits are zero, so the first digit is at most '7'.
func encode(id [16]byte) string {
	hi := binary.BigEndian.Uint64(id[:8])
	lo := binary.BigEndian.Uint64(id[8:])

	out := make([]byte, Length)
	for i := Length - 1; i >= 0; i-- {
		out[i] = alphabet[lo&0x1f]
		lo = lo>>5 | hi<<59
		hi >>= 5
	}
	return string(out)
}

func decode(s string) ([16]byte, error) {
	var id [16]byte
	if len(s) != Length {
		return id, fmt.Errorf("%w: want %d characters, got %d", ErrInvalid, Length, len(s))
	}
	if s[0] > '7' {
		return id, fmt.Errorf("%w: first character must be 0-7, got %c", ErrInvalid, s[0])
	}

	var hi, lo uint64
	for i := range len(s) {
		v := strings.IndexByte(alphabet, s[i])
		if v < 0 {
			return id, fmt.Errorf("%w: character %q at position %d", ErrInvalid, s[i], i)
		}
		hi = hi<<5 | lo>>59
		lo = lo<<5 | uint64(v)
	}

	binary.BigEndian.PutUint64(id[:8], hi)
	binary.BigEndian.PutUint64(id[8:], lo)
	return id, nil
}

// Validate reports whether s is a well-formed ID.
func Validate(s string) error {
	_, err := decode(s)
	return err
}

// Time returns the creation time stored in an ID, to the millisecond.
func Time(s string) (time.Time, error) {
	id, err := decode(s)
	if err != nil {
		return time.Time{}, err
	}
	ms := uint64(binary.BigEndian.Uint16(id[0:2]))<<32 | uint64(binary.BigEndian.Uint32(id[2:6]))
	return time.UnixMilli(int64(ms)), nil
}
