package game

import (
	"errors"
	"fmt"
	"io"
	rand "math/rand/v2"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/lox/uboat/internal/board"
	"github.com/lox/uboat/internal/randutil"
	"github.com/lox/uboat/internal/sampler"
)

const (
	MinPlayers    = 1
	MaxPlayers    = 10
	DefaultRounds = 5
)

var (
	ErrPlayerCount       = errors.New("player count out of range")
	ErrDuplicateName     = errors.New("duplicate player name")
	ErrGameOver          = errors.New("game is over")
	ErrInvalidPrediction = errors.New("invalid prediction")
)

// Config holds the tunable parts of a game.
type Config struct {
	Rounds int
	Policy sampler.Policy
	Draws  int
	Logger *log.Logger
}

// Player tracks one player's predictions and scores across rounds.
type Player struct {
	Name        string
	Predictions []int
	Scores      []int
	Total       int
}

func (p *Player) record(prediction, points int) {
	p.Predictions = append(p.Predictions, prediction)
	p.Scores = append(p.Scores, points)
	p.Total += points
}

// Coin is the result of the opening coin flip.
type Coin string

const (
	Heads Coin = "Heads"
	Tails Coin = "Tails"
)

// PlayerScore is one player's result for a round.
type PlayerScore struct {
	Name       string
	Prediction int
	Points     int
	Diff       int
}

// RoundResult describes a completed round.
type RoundResult struct {
	Round   int
	Outcome sampler.Outcome
	Board   *board.Board
	Scores  []PlayerScore
}

// Standing is a player's final position.
type Standing struct {
	Place  int
	Name   string
	Total  int
	Scores []int
}

// Game is a multi-round prediction game. It is not safe for concurrent use.
type Game struct {
	config  Config
	players []*Player
	rng     *rand.Rand
	sampler *sampler.Sampler
	round   int
	logger  *log.Logger
}

// New seats the players in the given order. Blank names become "Player N".
func New(names []string, rng *rand.Rand, config Config) (*Game, error) {
	if len(names) < MinPlayers || len(names) > MaxPlayers {
		return nil, fmt.Errorf("%w: %d (want %d-%d)", ErrPlayerCount, len(names), MinPlayers, MaxPlayers)
	}
	if config.Rounds <= 0 {
		config.Rounds = DefaultRounds
	}
	if config.Draws == 0 {
		config.Draws = sampler.DefaultDraws
	}
	if config.Logger == nil {
		config.Logger = log.New(io.Discard)
	}

	smp, err := sampler.New(config.Policy, config.Draws)
	if err != nil {
		return nil, err
	}

	players := make([]*Player, len(names))
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("Player %d", i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
		seen[name] = true
		players[i] = &Player{Name: name}
	}

	return &Game{
		config:  config,
		players: players,
		rng:     rng,
		sampler: smp,
		logger:  config.Logger.WithPrefix("game"),
	}, nil
}

// DecideOrder flips a coin for show and then shuffles the seating order.
func (g *Game) DecideOrder() Coin {
	coin := Heads
	if g.rng.IntN(2) == 1 {
		coin = Tails
	}
	g.rng.Shuffle(len(g.players), func(i, j int) {
		g.players[i], g.players[j] = g.players[j], g.players[i]
	})
	g.logger.Debug("Decided play order", "coin", coin, "first", g.players[0].Name)
	return coin
}

// Players returns the players in play order.
func (g *Game) Players() []*Player {
	return g.players
}

// Round returns the number of completed rounds.
func (g *Game) Round() int { return g.round }

// Rounds returns the total number of rounds.
func (g *Game) Rounds() int { return g.config.Rounds }

// Finished reports whether every round has been played.
func (g *Game) Finished() bool { return g.round >= g.config.Rounds }

// Policy returns the sampling policy rounds are played with.
func (g *Game) Policy() sampler.Policy { return g.config.Policy }

// PlayRound takes one prediction per player, runs the sonar and scores the
// round. Predictions must lie in 0..6.
func (g *Game) PlayRound(predictions map[string]int) (RoundResult, error) {
	if g.Finished() {
		return RoundResult{}, ErrGameOver
	}
	for _, p := range g.players {
		pred, ok := predictions[p.Name]
		if !ok {
			return RoundResult{}, fmt.Errorf("%w: missing prediction for %s", ErrInvalidPrediction, p.Name)
		}
		if pred < 0 || pred > board.Cells {
			return RoundResult{}, fmt.Errorf("%w: %s predicted %d (want 0-%d)", ErrInvalidPrediction, p.Name, pred, board.Cells)
		}
	}

	outcome, err := g.sampler.Run(randutil.NewDie(g.rng))
	if err != nil {
		return RoundResult{}, fmt.Errorf("round %d: %w", g.round+1, err)
	}

	b := board.New()
	for _, cell := range outcome.Revealed {
		if err := b.Mark(cell); err != nil {
			return RoundResult{}, err
		}
	}

	g.round++
	result := RoundResult{Round: g.round, Outcome: outcome, Board: b}
	for _, p := range g.players {
		pred := predictions[p.Name]
		points := Score(pred, outcome.Hits)
		p.record(pred, points)

		diff := pred - outcome.Hits
		if diff < 0 {
			diff = -diff
		}
		result.Scores = append(result.Scores, PlayerScore{Name: p.Name, Prediction: pred, Points: points, Diff: diff})
	}

	g.logger.Debug("Round complete", "round", g.round, "hits", outcome.Hits, "draws", outcome.Draws)
	return result, nil
}

// Standings ranks players by total score. Equal totals keep play order and
// share a place.
func (g *Game) Standings() []Standing {
	ranked := slices.Clone(g.players)
	slices.SortStableFunc(ranked, func(a, b *Player) int {
		return b.Total - a.Total
	})

	out := make([]Standing, len(ranked))
	for i, p := range ranked {
		place := i + 1
		if i > 0 && p.Total == ranked[i-1].Total {
			place = out[i-1].Place
		}
		out[i] = Standing{Place: place, Name: p.Name, Total: p.Total, Scores: slices.Clone(p.Scores)}
	}
	return out
}
