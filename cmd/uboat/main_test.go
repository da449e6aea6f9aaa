package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/uboat/internal/game"
	"github.com/lox/uboat/internal/runid"
	"github.com/lox/uboat/internal/sampler"
	"github.com/lox/uboat/internal/simulator"
)

func init() {
	configureColor(true)
}

func TestCLIParses(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Vars{"version": "test"})
	require.NoError(t, err)

	ctx, err := parser.Parse([]string{"simulate", "--runs", "500", "--policy", "unique", "--seed", "4"})
	require.NoError(t, err)
	assert.Equal(t, "simulate", ctx.Command())
	assert.Equal(t, 500, cli.Simulate.Runs)
	assert.Equal(t, "unique", cli.Simulate.Policy)
	assert.Equal(t, 5, cli.Simulate.Draws)
	assert.Equal(t, "simulation_results.json", cli.Simulate.Output)
	assert.Equal(t, simulator.DefaultMaxTrials, cli.Simulate.MaxRuns)

	ctx, err = parser.Parse([]string{"--debug", "play", "-p", "Ada", "-p", "Grace"})
	require.NoError(t, err)
	assert.Equal(t, "play", ctx.Command())
	assert.True(t, cli.Debug)
	assert.Equal(t, []string{"Ada", "Grace"}, cli.Play.Players)
}

func TestSimulateCmd(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	cmd := &SimulateCmd{
		Runs:   3000,
		Policy: "duplicates",
		Draws:  5,
		Seed:   21,
		Output: filepath.Join(dir, "results.json"),
		Chart:  filepath.Join(dir, "chart.html"),
		Alpha:  0.01,
		Quiet:  true,
		out:    &out,
	}
	require.NoError(t, cmd.Run(&Globals{}))

	text := out.String()
	assert.Contains(t, text, "SIMULATION RESULTS")
	assert.Contains(t, text, "Simulations:   3000")
	assert.Contains(t, text, "Results saved to")

	data, err := os.ReadFile(cmd.Output)
	require.NoError(t, err)
	var saved struct {
		RunID      string `json:"run_id"`
		Seed       int64  `json:"seed"`
		Policy     string `json:"policy"`
		Statistics struct {
			Trials int   `json:"n_simulations"`
			Raw    []int `json:"raw_results"`
		} `json:"statistics"`
		Comparison struct {
			Theoretical map[string]float64 `json:"theoretical"`
		} `json:"comparison"`
	}
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.NoError(t, runid.Validate(saved.RunID))
	assert.Equal(t, int64(21), saved.Seed)
	assert.Equal(t, "duplicates", saved.Policy)
	assert.Equal(t, 3000, saved.Statistics.Trials)
	assert.Nil(t, saved.Statistics.Raw)
	assert.InDelta(t, 0.4630, saved.Comparison.Theoretical["4"], 1e-9)

	html, err := os.ReadFile(cmd.Chart)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Hit Distribution")
}

func TestSimulateCmdRaw(t *testing.T) {
	dir := t.TempDir()
	cmd := &SimulateCmd{
		Runs:   50,
		Policy: "unique",
		Draws:  6,
		Seed:   2,
		Raw:    true,
		Output: filepath.Join(dir, "raw.json"),
		Alpha:  0.01,
		Quiet:  true,
		out:    &bytes.Buffer{},
	}
	require.NoError(t, cmd.Run(&Globals{}))

	data, err := os.ReadFile(cmd.Output)
	require.NoError(t, err)
	var saved struct {
		Statistics struct {
			Raw []int `json:"raw_results"`
		} `json:"statistics"`
	}
	require.NoError(t, json.Unmarshal(data, &saved))
	require.Len(t, saved.Statistics.Raw, 50)
	for _, hits := range saved.Statistics.Raw {
		assert.Equal(t, 6, hits)
	}
}

func TestSimulateCmdRejectsBadInput(t *testing.T) {
	cmd := &SimulateCmd{Runs: 10, Policy: "sideways", Draws: 5, Quiet: true, out: &bytes.Buffer{}}
	assert.Error(t, cmd.Run(&Globals{}))

	cmd = &SimulateCmd{Runs: 0, Policy: "duplicates", Draws: 5, Quiet: true, out: &bytes.Buffer{}}
	assert.Error(t, cmd.Run(&Globals{}))

	cmd = &SimulateCmd{Runs: 10, Policy: "duplicates", Draws: 4, Quiet: true, out: &bytes.Buffer{}}
	assert.Error(t, cmd.Run(&Globals{}))

	cmd = &SimulateCmd{Runs: 501, MaxRuns: 500, Policy: "duplicates", Draws: 5, Output: "", Quiet: true, out: &bytes.Buffer{}}
	assert.ErrorIs(t, cmd.Run(&Globals{}), sampler.ErrInvalidArgument)

	cmd = &SimulateCmd{Runs: simulator.DefaultMaxTrials + 1, Policy: "duplicates", Draws: 5, Output: "", Quiet: true, out: &bytes.Buffer{}}
	assert.ErrorIs(t, cmd.Run(&Globals{}), sampler.ErrInvalidArgument)
}

func TestTheoryCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := &TheoryCmd{Policy: "duplicates", Draws: 6, out: &out}
	require.NoError(t, cmd.Run(&Globals{}))
	assert.Contains(t, out.String(), "reference")
	assert.Contains(t, out.String(), "0.3858")

	out.Reset()
	cmd = &TheoryCmd{Policy: "duplicates", Draws: 5, Exact: true, JSON: true, out: &out}
	require.NoError(t, cmd.Run(&Globals{}))
	var dist map[string]float64
	require.NoError(t, json.Unmarshal(out.Bytes(), &dist))
	assert.InDelta(t, 3600.0/7776.0, dist["4"], 1e-12)

	cmd = &TheoryCmd{Policy: "duplicates", Draws: 3, out: &out}
	assert.Error(t, cmd.Run(&Globals{}))
}

func TestServeCmdLoad(t *testing.T) {
	cmd := &ServeCmd{Config: filepath.Join(t.TempDir(), "missing.hcl"), Addr: "127.0.0.1:9100"}
	config, err := cmd.load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9100", config.GetServerAddress())

	cmd.Addr = "nope"
	_, err = cmd.load()
	assert.Error(t, err)

	cmd.Addr = "127.0.0.1:http"
	_, err = cmd.load()
	assert.Error(t, err)
}

func TestDotProgress(t *testing.T) {
	var out bytes.Buffer
	p := newDotProgress(&out)

	p.Report(0, 100)
	assert.Empty(t, out.String())

	p.Report(50, 100)
	assert.Equal(t, strings.Repeat(".", 20), out.String())

	p.Report(100, 100)
	p.Report(100, 100)
	assert.Equal(t, strings.Repeat(".", 40)+" done\n", out.String())
}

func TestPrintStandings(t *testing.T) {
	var out bytes.Buffer
	printStandings(&out, []game.Standing{
		{Place: 1, Name: "Grace", Total: 12, Scores: []int{4, 4, 4}},
		{Place: 2, Name: "Ada", Total: 3, Scores: []int{1, 2, 0}},
	})
	text := out.String()
	assert.Contains(t, text, "FINAL SCORES")
	assert.Contains(t, text, "Grace")
	assert.Contains(t, text, "4 4 4")
	assert.Less(t, strings.Index(text, "Grace"), strings.Index(text, "Ada"))
}
