package randutil

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	rand "math/rand/v2"
)

const (
	goldenRatio64 = 0x9e3779b97f4a7c15
)

// ErrRandomSourceUnavailable is returned when a die cannot produce a value.
var ErrRandomSourceUnavailable = errors.New("random source unavailable")

// New returns a *rand.Rand seeded deterministically from the provided int64.
// The helper centralises how we derive the two 64-bit seeds required by rand/v2
// so that all call sites get reproducible sequences.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// Stream returns the generator for one chunk of a batch. Streams for different
// chunks of the same seed do not overlap in practice.
func Stream(seed int64, chunk int) *rand.Rand {
	return New(int64(mix(uint64(seed) ^ mix(uint64(chunk)+goldenRatio64))))
}

// Seed draws a fresh seed from the operating system.
func Seed() (int64, error) {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRandomSourceUnavailable, err)
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// Die produces uniform rolls in 1..Sides.
type Die interface {
	Roll() (int, error)
}

// Sides is the number of faces on the sonar die.
const Sides = 6

type rngDie struct {
	rng *rand.Rand
}

// NewDie wraps a generator as a six-sided die. A nil generator yields a die
// whose every roll fails with ErrRandomSourceUnavailable.
func NewDie(rng *rand.Rand) Die {
	return rngDie{rng: rng}
}

func (d rngDie) Roll() (int, error) {
	if d.rng == nil {
		return 0, ErrRandomSourceUnavailable
	}
	return d.rng.IntN(Sides) + 1, nil
}

// FixedDie replays a fixed sequence of rolls, then fails. Useful in tests
// and for replaying a recorded search.
type FixedDie struct {
	Rolls []int
	pos   int
}

func (d *FixedDie) Roll() (int, error) {
	if d.pos >= len(d.Rolls) {
		return 0, fmt.Errorf("%w: fixed sequence exhausted after %d rolls", ErrRandomSourceUnavailable, d.pos)
	}
	v := d.Rolls[d.pos]
	d.pos++
	return v, nil
}
