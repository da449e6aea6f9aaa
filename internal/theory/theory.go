// Package theory holds the reference hit-count distributions that empirical
// batches are compared against.
package theory

import (
	"fmt"
	"math"
	"slices"

	"github.com/lox/uboat/internal/board"
	"github.com/lox/uboat/internal/sampler"
)

// ErrUnsupported is returned for policy/draw combinations without a table.
var ErrUnsupported = fmt.Errorf("%w: unsupported policy/draw combination", sampler.ErrInvalidArgument)

// Distribution maps a hit count to its probability.
type Distribution map[int]float64

// Sum returns the total probability mass.
func (d Distribution) Sum() float64 {
	total := 0.0
	for _, p := range d {
		total += p
	}
	return total
}

// Mean returns the expected hit count.
func (d Distribution) Mean() float64 {
	mean := 0.0
	for k, p := range d {
		mean += float64(k) * p
	}
	return mean
}

// Keys returns the hit counts in ascending order.
func (d Distribution) Keys() []int {
	keys := make([]int, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Published reference tables for DuplicatesAllowed. These are the acceptance
// baseline; Exact gives the closed-form values.
var reference = map[int]Distribution{
	5: {1: 0.0032, 2: 0.0617, 3: 0.3086, 4: 0.4630, 5: 0.1646, 6: 0.0},
	6: {1: 0.0015, 2: 0.0231, 3: 0.1543, 4: 0.3858, 5: 0.3472, 6: 0.0880},
}

// Reference returns the reference table for a policy and draw count. Only the
// 5 and 6 draw configurations are supported. ForcedUnique always hits exactly
// once per draw, so its table puts all mass on the draw count.
func Reference(policy sampler.Policy, draws int) (Distribution, error) {
	if draws != sampler.DefaultDraws && draws != sampler.AlternateDraws {
		return nil, fmt.Errorf("%w: %s with %d draws", ErrUnsupported, policy, draws)
	}

	switch policy {
	case sampler.DuplicatesAllowed:
		return reference[draws].clone(), nil
	case sampler.ForcedUnique:
		return degenerate(draws), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, policy)
	}
}

// Exact derives the distribution from first principles. For DuplicatesAllowed
// the chance of exactly k distinct cells after n draws over c cells is
//
//	C(c,k) * S(n,k) * k! / c^n
//
// where S is the Stirling number of the second kind.
func Exact(policy sampler.Policy, draws int) (Distribution, error) {
	if draws < 1 || draws > board.Cells {
		return nil, fmt.Errorf("%w: %s with %d draws", ErrUnsupported, policy, draws)
	}

	switch policy {
	case sampler.ForcedUnique:
		return degenerate(draws), nil
	case sampler.DuplicatesAllowed:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, policy)
	}

	cells := board.Cells
	total := math.Pow(float64(cells), float64(draws))
	dist := make(Distribution, cells)
	for k := 1; k <= cells; k++ {
		ways := binomial(cells, k) * stirling2(draws, k) * factorial(k)
		dist[k] = float64(ways) / total
	}
	return dist, nil
}

func degenerate(draws int) Distribution {
	dist := make(Distribution, board.Cells)
	for k := 1; k <= board.Cells; k++ {
		dist[k] = 0
	}
	dist[draws] = 1
	return dist
}

func (d Distribution) clone() Distribution {
	out := make(Distribution, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// stirling2 counts the ways to partition n labelled items into k non-empty
// unlabelled groups.
func stirling2(n, k int) int64 {
	if k > n {
		return 0
	}
	row := make([]int64, k+1)
	row[0] = 1
	for i := 1; i <= n; i++ {
		for j := min(i, k); j >= 1; j-- {
			row[j] = int64(j)*row[j] + row[j-1]
		}
		row[0] = 0
	}
	return row[k]
}

func binomial(n, k int) int64 {
	if k < 0 || k > n {
		return 0
	}
	result := int64(1)
	for i := 1; i <= k; i++ {
		result = result * int64(n-k+i) / int64(i)
	}
	return result
}

func factorial(n int) int64 {
	result := int64(1)
	for i := 2; i <= n; i++ {
		result *= int64(i)
	}
	return result
}
