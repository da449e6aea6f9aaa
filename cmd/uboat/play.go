package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/lox/uboat/internal/game"
	"github.com/lox/uboat/internal/randutil"
	"github.com/lox/uboat/internal/sampler"
	"github.com/lox/uboat/internal/tui"
)

// PlayCmd runs the multi-player prediction game
type PlayCmd struct {
	Players []string `short:"p" name:"player" help:"Player name, repeat for each player in seating order"`
	Rounds  int      `default:"5" help:"Number of rounds"`
	Policy  string   `default:"duplicates" help:"Sampling policy: duplicates or unique"`
	Draws   int      `default:"5" help:"Draws per round"`
	Seed    int64    `default:"0" help:"RNG seed (0 for random)"`
	LogFile string   `help:"Write debug logs to this file while the game runs"`
}

func (c *PlayCmd) Run(g *Globals) error {
	logger := log.New(io.Discard)
	if c.LogFile != "" {
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer func() { _ = f.Close() }()
		logger = setupLogger(f, true)
	}

	policy, err := sampler.ParsePolicy(c.Policy)
	if err != nil {
		return err
	}

	seed := c.Seed
	if seed == 0 {
		if seed, err = randutil.Seed(); err != nil {
			return err
		}
	}
	logger.Info("Starting game", "players", len(c.Players), "seed", seed)

	names := c.Players
	if len(names) == 0 {
		names = []string{""}
	}
	match, err := game.New(names, randutil.New(seed), game.Config{
		Rounds: c.Rounds,
		Policy: policy,
		Draws:  c.Draws,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	model := tui.NewModel(match, match.DecideOrder(), logger)
	final, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	if err != nil {
		return fmt.Errorf("game UI failed: %w", err)
	}
	if m, ok := final.(*tui.Model); ok && m.Err() != nil {
		return m.Err()
	}

	if match.Round() > 0 {
		printStandings(os.Stdout, match.Standings())
	}
	return nil
}

func printStandings(w io.Writer, standings []game.Standing) {
	t := newTable("Place", "Player", "Rounds", "Total")
	for _, s := range standings {
		rounds := make([]string, len(s.Scores))
		for i, score := range s.Scores {
			rounds[i] = strconv.Itoa(score)
		}
		t.Row(strconv.Itoa(s.Place), s.Name, strings.Join(rounds, " "), strconv.Itoa(s.Total))
	}
	fmt.Fprintln(w, titleStyle.Render("FINAL SCORES"))
	fmt.Fprintln(w, t.String())
}
