package statistics

import (
	"fmt"
	"math"
	"slices"

	"github.com/lox/uboat/internal/sampler"
)

// ErrInvalidArgument is returned when summarising an empty batch.
var ErrInvalidArgument = sampler.ErrInvalidArgument

// Statistics accumulates hit counts from a batch of searches. Every moment is
// kept as an exact integer so accumulators can be merged in any order and
// still produce identical summaries.
type Statistics struct {
	Trials int64
	Sum    int64         // Sum of hit counts
	SumSq  int64         // Sum of squared hit counts for variance
	Counts map[int]int64 // Hit count -> occurrences

	// KeepValues retains every hit count in arrival order. Off by default since
	// a million-trial batch does not need the raw list.
	KeepValues bool
	Values     []int
}

// New returns an empty accumulator.
func New(keepValues bool) *Statistics {
	return &Statistics{Counts: make(map[int]int64), KeepValues: keepValues}
}

// Add incorporates a search outcome.
func (s *Statistics) Add(outcome sampler.Outcome) {
	s.AddHits(outcome.Hits)
}

// AddHits incorporates a bare hit count.
func (s *Statistics) AddHits(hits int) {
	if s.Counts == nil {
		s.Counts = make(map[int]int64)
	}
	h := int64(hits)
	s.Trials++
	s.Sum += h
	s.SumSq += h * h
	s.Counts[hits]++
	if s.KeepValues {
		s.Values = append(s.Values, hits)
	}
}

// Merge folds another accumulator into s. Raw values are appended when both
// sides keep them.
func (s *Statistics) Merge(other *Statistics) {
	if other == nil {
		return
	}
	if s.Counts == nil {
		s.Counts = make(map[int]int64, len(other.Counts))
	}
	s.Trials += other.Trials
	s.Sum += other.Sum
	s.SumSq += other.SumSq
	for k, n := range other.Counts {
		s.Counts[k] += n
	}
	if s.KeepValues && other.KeepValues {
		s.Values = append(s.Values, other.Values...)
	}
}

// Mean returns the arithmetic mean hit count.
func (s *Statistics) Mean() float64 {
	if s.Trials == 0 {
		return 0
	}
	return float64(s.Sum) / float64(s.Trials)
}

// Variance returns the population variance of the hit counts.
func (s *Statistics) Variance() float64 {
	if s.Trials == 0 {
		return 0
	}
	mean := s.Mean()
	v := float64(s.SumSq)/float64(s.Trials) - mean*mean
	if v < 0 {
		// Rounding when every value is identical.
		return 0
	}
	return v
}

// StdDev returns the population standard deviation.
func (s *Statistics) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// StdError returns the standard error of the mean
func (s *Statistics) StdError() float64 {
	if s.Trials == 0 {
		return 0
	}
	return s.StdDev() / math.Sqrt(float64(s.Trials))
}

// ConfidenceInterval95 returns the 95% confidence interval for the mean
func (s *Statistics) ConfidenceInterval95() (float64, float64) {
	mean := s.Mean()
	margin := 1.96 * s.StdError()
	return mean - margin, mean + margin
}

// Median returns the element at index N/2 of the hit counts sorted ascending.
// For an even N that is the upper of the two middle elements.
func (s *Statistics) Median() int {
	if s.Trials == 0 {
		return 0
	}
	target := s.Trials / 2
	var seen int64
	for _, k := range s.keys() {
		seen += s.Counts[k]
		if seen > target {
			return k
		}
	}
	return 0
}

// Mode returns the most frequent hit count, preferring the smallest on ties.
func (s *Statistics) Mode() int {
	mode, best := 0, int64(-1)
	for _, k := range s.keys() {
		if s.Counts[k] > best {
			mode, best = k, s.Counts[k]
		}
	}
	return mode
}

func (s *Statistics) keys() []int {
	keys := make([]int, 0, len(s.Counts))
	for k, n := range s.Counts {
		if n > 0 {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// Validate checks that the accumulator is internally consistent.
func (s *Statistics) Validate() error {
	if s.Trials <= 0 {
		return fmt.Errorf("%w: batch has %d trials", ErrInvalidArgument, s.Trials)
	}

	var total, sum, sumSq int64
	for k, n := range s.Counts {
		if n < 0 {
			return fmt.Errorf("negative count %d for %d hits", n, k)
		}
		total += n
		sum += int64(k) * n
		sumSq += int64(k) * int64(k) * n
	}
	if total != s.Trials {
		return fmt.Errorf("frequency total (%d) does not match trials (%d)", total, s.Trials)
	}
	if sum != s.Sum || sumSq != s.SumSq {
		return fmt.Errorf("moment mismatch: sum=%d/%d sumsq=%d/%d", s.Sum, sum, s.SumSq, sumSq)
	}
	if s.KeepValues && int64(len(s.Values)) != s.Trials {
		return fmt.Errorf("values array length (%d) does not match trials (%d)", len(s.Values), s.Trials)
	}
	return nil
}

// Summary freezes the accumulator into a report keyed on domain. Every domain
// value appears in Frequency and Probabilities, zero when never observed.
func (s *Statistics) Summary(domain sampler.Domain) (Summary, error) {
	if err := s.Validate(); err != nil {
		return Summary{}, err
	}

	n := float64(s.Trials)
	freq := make(map[int]int, len(domain))
	probs := make(map[int]float64, len(domain))
	for _, k := range domain {
		freq[k] = 0
		probs[k] = 0
	}
	for k, c := range s.Counts {
		if c == 0 && !domain.Contains(k) {
			continue
		}
		freq[k] = int(c)
		probs[k] = float64(c) / n
	}

	summary := Summary{
		Trials:        int(s.Trials),
		Frequency:     freq,
		Mean:          s.Mean(),
		Median:        s.Median(),
		Mode:          s.Mode(),
		Variance:      s.Variance(),
		StdDev:        s.StdDev(),
		StdError:      s.StdError(),
		Probabilities: probs,
	}
	summary.CI95Low, summary.CI95High = s.ConfidenceInterval95()
	if s.KeepValues {
		summary.Raw = slices.Clone(s.Values)
	}
	return summary, nil
}

// Aggregate reduces a batch of outcomes in one pass.
func Aggregate(outcomes []sampler.Outcome, domain sampler.Domain) (Summary, error) {
	if len(outcomes) == 0 {
		return Summary{}, fmt.Errorf("%w: cannot aggregate an empty batch", ErrInvalidArgument)
	}
	s := New(true)
	for _, o := range outcomes {
		s.Add(o)
	}
	return s.Summary(domain)
}
