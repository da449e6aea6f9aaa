package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/lox/uboat/internal/sampler"
	"github.com/lox/uboat/internal/simulator"
	"github.com/lox/uboat/internal/theory"
)

// TheoryCmd prints a theoretical distribution
type TheoryCmd struct {
	Policy string `default:"duplicates" help:"Sampling policy: duplicates or unique"`
	Draws  int    `default:"5" help:"Draws per search"`
	Exact  bool   `help:"Derive the table exactly instead of using the reference values"`
	JSON   bool   `name:"json" help:"Print the table as JSON"`

	out io.Writer `kong:"-"`
}

func (c *TheoryCmd) Run(g *Globals) error {
	out := c.out
	if out == nil {
		out = os.Stdout
	}

	policy, err := sampler.ParsePolicy(c.Policy)
	if err != nil {
		return err
	}

	var dist theory.Distribution
	if c.Exact {
		dist, err = theory.Exact(policy, c.Draws)
	} else {
		dist, err = simulator.Theoretical(policy, c.Draws)
	}
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(dist)
	}
	printTable(out, policy, c.Draws, dist, c.Exact)
	return nil
}
