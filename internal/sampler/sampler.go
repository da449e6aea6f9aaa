// Package sampler runs a single sonar search: a fixed number of die rolls
// against a fresh board, under one of two policies.
//
// ForcedUnique re-rolls until it lands on an untouched cell, so a search of K
// draws always ends with exactly K hits. It produces a fair ordering of K
// distinct cells and is only useful for driving a reveal.
//
// DuplicatesAllowed marks whatever the die shows, so repeated cells are wasted
// draws and the hit count is a genuine random variable in [1, K]. Any statistic
// that claims a distribution of hit counts must come from this policy.
package sampler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lox/uboat/internal/board"
	"github.com/lox/uboat/internal/randutil"
)

// Policy selects how a draw that lands on an already hit cell is handled.
type Policy int

const (
	// DuplicatesAllowed marks the drawn cell even if already hit (policy B).
	DuplicatesAllowed Policy = iota
	// ForcedUnique re-rolls until an unmarked cell comes up (policy A).
	ForcedUnique
)

const (
	// DefaultDraws is the number of searches in the primary configuration.
	DefaultDraws = 5
	// AlternateDraws sweeps as many searches as there are cells.
	AlternateDraws = 6
	// maxRerolls bounds the ForcedUnique loop for a single search. With a fair
	// die the chance of exceeding it is below 1e-70.
	maxRerolls = 1000
)

var (
	// ErrInvalidArgument marks caller errors: bad batch sizes, draw counts or
	// policy/draw combinations.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidDraws is returned for draw counts outside 1..6.
	ErrInvalidDraws = fmt.Errorf("%w: draw count", ErrInvalidArgument)
)

func (p Policy) String() string {
	switch p {
	case DuplicatesAllowed:
		return "duplicates"
	case ForcedUnique:
		return "unique"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy accepts the names produced by String plus the "A"/"B" labels.
// There is no implicit default: an empty name is rejected.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "duplicates", "duplicates-allowed", "b":
		return DuplicatesAllowed, nil
	case "unique", "forced-unique", "a":
		return ForcedUnique, nil
	default:
		return 0, fmt.Errorf("%w: unknown policy %q (want duplicates or unique)", ErrInvalidArgument, s)
	}
}

func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Policy) UnmarshalText(text []byte) error {
	parsed, err := ParsePolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Outcome is the immutable result of one search.
type Outcome struct {
	Hits int `json:"hits"`
	// Draws is every raw roll in order, including rolls rejected by a re-roll.
	Draws []int `json:"draws"`
	// Revealed lists the cells that turned from untouched to hit, in order.
	Revealed []int `json:"revealed"`
}

// Sampler performs searches with a fixed policy and draw count.
type Sampler struct {
	policy Policy
	draws  int
}

// New validates the configuration and returns a sampler.
func New(policy Policy, draws int) (*Sampler, error) {
	if policy != DuplicatesAllowed && policy != ForcedUnique {
		return nil, fmt.Errorf("%w: unknown policy %d", ErrInvalidArgument, int(policy))
	}
	if draws < 1 || draws > board.Cells {
		return nil, fmt.Errorf("%w: %d (want 1-%d)", ErrInvalidDraws, draws, board.Cells)
	}
	return &Sampler{policy: policy, draws: draws}, nil
}

func (s *Sampler) Policy() Policy { return s.policy }
func (s *Sampler) Draws() int     { return s.draws }

// Run performs one search against a fresh board. Errors from the die are
// returned unchanged.
func (s *Sampler) Run(die randutil.Die) (Outcome, error) {
	b := board.New()
	out := Outcome{
		Draws:    make([]int, 0, s.draws),
		Revealed: make([]int, 0, s.draws),
	}

	for range s.draws {
		cell, fresh, err := s.search(b, die, &out)
		if err != nil {
			return Outcome{}, err
		}
		if err := b.Mark(cell); err != nil {
			return Outcome{}, err
		}
		if fresh {
			out.Revealed = append(out.Revealed, cell)
		}
	}

	out.Hits = b.CountMarked()
	return out, nil
}

// search rolls once, or until an unmarked cell for ForcedUnique, and reports
// whether the chosen cell was untouched.
func (s *Sampler) search(b *board.Board, die randutil.Die, out *Outcome) (int, bool, error) {
	for range maxRerolls {
		roll, err := die.Roll()
		if err != nil {
			return 0, false, err
		}
		out.Draws = append(out.Draws, roll)

		hit, err := b.IsMarked(roll)
		if err != nil {
			return 0, false, fmt.Errorf("%w: die returned %d", randutil.ErrRandomSourceUnavailable, roll)
		}
		if !hit || s.policy == DuplicatesAllowed {
			return roll, !hit, nil
		}
	}
	return 0, false, fmt.Errorf("%w: no unmarked cell after %d re-rolls", randutil.ErrRandomSourceUnavailable, maxRerolls)
}
