// Package compare lines an empirical batch up against a theoretical table.
package compare

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/lox/uboat/internal/sampler"
	"github.com/lox/uboat/internal/statistics"
	"github.com/lox/uboat/internal/theory"
)

// Comparison holds both distributions keyed on the same domain.
type Comparison struct {
	Trials      int             `json:"n_simulations"`
	Empirical   map[int]float64 `json:"experimental"`
	Theoretical map[int]float64 `json:"theoretical"`
	Difference  map[int]float64 `json:"difference"`
	MaxAbsDiff  float64         `json:"max_abs_diff"`

	// Pearson goodness of fit over the values the table considers possible.
	// Expected counts use the table renormalised over those values.
	ChiSquare        float64 `json:"chi_square"`
	DegreesOfFreedom int     `json:"degrees_of_freedom"`
	PValue           float64 `json:"p_value"`

	// ImpossibleHits counts trials that landed on a value the table gives
	// probability zero. Any such trial rejects the table outright.
	ImpossibleHits int `json:"impossible_hits"`
}

// Compare re-keys the summary and table onto domain, filling gaps with zero.
func Compare(summary statistics.Summary, table theory.Distribution, domain sampler.Domain) Comparison {
	c := Comparison{
		Trials:      summary.Trials,
		Empirical:   make(map[int]float64, len(domain)),
		Theoretical: make(map[int]float64, len(domain)),
		Difference:  make(map[int]float64, len(domain)),
	}

	for _, k := range domain {
		emp := summary.Probabilities[k]
		theo := table[k]
		c.Empirical[k] = emp
		c.Theoretical[k] = theo
		c.Difference[k] = emp - theo
		c.MaxAbsDiff = math.Max(c.MaxAbsDiff, math.Abs(emp-theo))
	}

	c.goodnessOfFit(summary, table, domain)
	return c
}

func (c *Comparison) goodnessOfFit(summary statistics.Summary, table theory.Distribution, domain sampler.Domain) {
	mass := 0.0
	possible := 0
	for _, k := range domain {
		if table[k] > 0 {
			mass += table[k]
			possible++
		} else {
			c.ImpossibleHits += summary.Frequency[k]
		}
	}

	c.DegreesOfFreedom = max(possible-1, 0)
	if mass == 0 || summary.Trials == 0 {
		return
	}

	n := float64(summary.Trials)
	for _, k := range domain {
		if table[k] <= 0 {
			continue
		}
		expected := n * table[k] / mass
		diff := float64(summary.Frequency[k]) - expected
		c.ChiSquare += diff * diff / expected
	}

	switch {
	case c.ImpossibleHits > 0:
		c.PValue = 0
	case c.DegreesOfFreedom == 0:
		c.PValue = 1
	default:
		c.PValue = distuv.ChiSquared{K: float64(c.DegreesOfFreedom)}.Survival(c.ChiSquare)
	}
}

// Consistent reports whether the batch is compatible with the table at the
// given significance level.
func (c Comparison) Consistent(alpha float64) bool {
	return c.ImpossibleHits == 0 && c.PValue >= alpha
}
