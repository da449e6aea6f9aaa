package main

import (
	"fmt"
	"io"
	"sync"
)

// dotProgress prints a fixed-width row of dots as a batch advances. It is
// safe for concurrent use by simulator workers.
type dotProgress struct {
	mu      sync.Mutex
	w       io.Writer
	width   int
	printed int
}

func newDotProgress(w io.Writer) *dotProgress {
	return &dotProgress{w: w, width: 40}
}

func (p *dotProgress) Report(done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if total <= 0 {
		return
	}
	target := min(done*p.width/total, p.width)
	for p.printed < target {
		fmt.Fprint(p.w, ".")
		p.printed++
	}
	if done >= total && p.printed == p.width {
		fmt.Fprintln(p.w, " done")
		p.printed++ // Only finish once
	}
}
