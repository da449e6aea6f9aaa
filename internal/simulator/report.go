package simulator

import (
	"github.com/lox/uboat/internal/compare"
	"github.com/lox/uboat/internal/sampler"
	"github.com/lox/uboat/internal/statistics"
)

// Report is what a batch hands to its consumers: the CLI writes it to disk,
// the server returns it as JSON and the chart package draws it.
type Report struct {
	Policy     sampler.Policy     `json:"policy"`
	Draws      int                `json:"draws"`
	Statistics statistics.Summary `json:"statistics"`
	Comparison compare.Comparison `json:"comparison"`
}

// Strip drops the raw per-trial results before persisting or sending.
func (r Report) Strip() Report {
	r.Statistics = r.Statistics.Strip()
	return r
}
