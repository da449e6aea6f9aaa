package statistics

// Summary is the read-only report for a batch of searches.
type Summary struct {
	Trials        int             `json:"n_simulations"`
	Frequency     map[int]int     `json:"hit_distribution"`
	Mean          float64         `json:"mean_hits"`
	Median        int             `json:"median_hits"`
	Mode          int             `json:"mode_hits"`
	Variance      float64         `json:"variance"`
	StdDev        float64         `json:"std_dev"`
	StdError      float64         `json:"std_error"`
	CI95Low       float64         `json:"ci95_low"`
	CI95High      float64         `json:"ci95_high"`
	Probabilities map[int]float64 `json:"probabilities"`

	// Raw holds every hit count when the batch was run with raw output. It is
	// the only size-heavy field.
	Raw []int `json:"raw_results,omitempty"`
}

// Strip returns the summary without the raw outcome list.
func (s Summary) Strip() Summary {
	s.Raw = nil
	return s
}
