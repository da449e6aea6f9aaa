// Package tui runs the prediction game in the terminal with Bubble Tea.
package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/lox/uboat/internal/board"
	"github.com/lox/uboat/internal/game"
	"github.com/lox/uboat/internal/sampler"
)

// Stage is the part of a round the model is showing.
type Stage int

const (
	StagePredict Stage = iota
	StageSearch
	StageScores
	StageFinal
)

func (s Stage) String() string {
	switch s {
	case StagePredict:
		return "predict"
	case StageSearch:
		return "search"
	case StageScores:
		return "scores"
	case StageFinal:
		return "final"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Model is the Bubble Tea model for one game.
type Model struct {
	game   *game.Game
	logger *log.Logger
	coin   game.Coin

	input       textinput.Model
	stage       Stage
	current     int // index of the player predicting
	predictions map[string]int
	result      *game.RoundResult
	step        int // raw draws revealed so far
	message     string
	err         error
	quitting    bool
}

// NewModel wraps a game whose play order has already been decided.
func NewModel(g *game.Game, coin game.Coin, logger *log.Logger) *Model {
	input := textinput.New()
	input.Placeholder = "0-6"
	input.CharLimit = 1
	input.Width = 4
	input.Focus()

	return &Model{
		game:        g,
		logger:      logger.WithPrefix("tui"),
		coin:        coin,
		input:       input,
		predictions: make(map[string]int),
	}
}

func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Stage returns the current stage.
func (m *Model) Stage() Stage { return m.stage }

// Err returns the error that ended the game early, if any.
func (m *Model) Err() error { return m.err }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter", " ":
			if m.stage == StagePredict && msg.String() == " " {
				break
			}
			return m, m.advance()
		}
	}

	if m.stage == StagePredict {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) advance() tea.Cmd {
	switch m.stage {
	case StagePredict:
		return m.submitPrediction()

	case StageSearch:
		m.step++
		if m.step >= len(m.result.Outcome.Draws) {
			m.stage = StageScores
		}

	case StageScores:
		if m.game.Finished() {
			m.stage = StageFinal
			return nil
		}
		m.result = nil
		m.step = 0
		m.current = 0
		m.predictions = make(map[string]int)
		m.stage = StagePredict
		m.input.Focus()

	case StageFinal:
		m.quitting = true
		return tea.Quit
	}
	return nil
}

func (m *Model) submitPrediction() tea.Cmd {
	value := strings.TrimSpace(m.input.Value())
	pred, err := strconv.Atoi(value)
	if err != nil || pred < 0 || pred > board.Cells {
		m.message = fmt.Sprintf("Enter a number from 0 to %d", board.Cells)
		m.input.Reset()
		return nil
	}

	player := m.game.Players()[m.current]
	m.predictions[player.Name] = pred
	m.message = ""
	m.input.Reset()
	m.current++
	if m.current < len(m.game.Players()) {
		return nil
	}

	result, err := m.game.PlayRound(m.predictions)
	if err != nil {
		m.logger.Error("Round failed", "error", err)
		m.err = err
		m.quitting = true
		return tea.Quit
	}
	m.result = &result
	m.step = 0
	m.stage = StageSearch
	m.input.Blur()
	return nil
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(HeaderStyle.Render("U-BOAT SONAR SEARCH"))
	b.WriteString("\n\n")

	switch m.stage {
	case StagePredict:
		m.viewPredict(&b)
	case StageSearch:
		m.viewSearch(&b)
	case StageScores:
		m.viewScores(&b)
	case StageFinal:
		m.viewFinal(&b)
	}

	if m.message != "" {
		b.WriteString("\n" + ErrorStyle.Render(m.message) + "\n")
	}
	b.WriteString("\n" + InfoStyle.Render("enter: continue • esc: quit") + "\n")
	return b.String()
}

func (m *Model) viewPredict(b *strings.Builder) {
	if m.game.Round() == 0 && m.current == 0 {
		fmt.Fprintf(b, "Coin flip: %s. Play order:", m.coin)
		for i, p := range m.game.Players() {
			fmt.Fprintf(b, " %d. %s", i+1, p.Name)
		}
		b.WriteString("\n\n")
	}

	player := m.game.Players()[m.current]
	fmt.Fprintf(b, "Round %d of %d\n\n", m.game.Round()+1, m.game.Rounds())
	fmt.Fprintf(b, "%s, predict hits: %s\n", PlayerStyle.Render(player.Name), m.input.View())
}

func (m *Model) viewSearch(b *strings.Builder) {
	fmt.Fprintf(b, "Round %d\n\n", m.result.Round)
	b.WriteString(RenderBoard(markedAfter(m.result.Outcome.Draws, m.step)))
	b.WriteString("\n\n")
	b.WriteString(m.describeDraws(m.step))
}

func (m *Model) viewScores(b *strings.Builder) {
	fmt.Fprintf(b, "Round %d\n\n", m.result.Round)
	b.WriteString(RenderBoard(m.result.Board.Cells()))
	b.WriteString("\n\n")
	fmt.Fprintf(b, "Total hits: %s\n\n", RollStyle.Render(strconv.Itoa(m.result.Outcome.Hits)))
	for _, s := range m.result.Scores {
		fmt.Fprintf(b, "  %s predicted %d (±%d) → %d points\n", PlayerStyle.Render(s.Name), s.Prediction, s.Diff, s.Points)
	}
}

func (m *Model) viewFinal(b *strings.Builder) {
	b.WriteString("FINAL SCORES\n\n")
	standings := m.game.Standings()
	for _, s := range standings {
		fmt.Fprintf(b, "%d. %s: %d points %v\n", s.Place, PlayerStyle.Render(s.Name), s.Total, s.Scores)
	}
	if len(standings) > 0 {
		b.WriteString("\n" + WinnerStyle.Render(fmt.Sprintf("Winner: %s with %d points", standings[0].Name, standings[0].Total)) + "\n")
	}
}

// describeDraws narrates the first n raw draws.
func (m *Model) describeDraws(n int) string {
	var b strings.Builder
	seen := make(map[int]bool)
	search := 0
	for _, roll := range m.result.Outcome.Draws[:n] {
		if seen[roll] {
			if m.game.Policy() == sampler.ForcedUnique {
				fmt.Fprintf(&b, "  roll %s → already hit, re-rolling\n", RollStyle.Render(strconv.Itoa(roll)))
				continue
			}
			search++
			fmt.Fprintf(&b, "Search %d: roll %s → already hit\n", search, RollStyle.Render(strconv.Itoa(roll)))
			continue
		}
		seen[roll] = true
		search++
		fmt.Fprintf(&b, "Search %d: roll %s → %s\n", search, RollStyle.Render(strconv.Itoa(roll)), HitStyle.Render("HIT"))
	}
	return b.String()
}

func markedAfter(draws []int, n int) [board.Cells]bool {
	var cells [board.Cells]bool
	for _, roll := range draws[:n] {
		if roll >= 1 && roll <= board.Cells {
			cells[roll-1] = true
		}
	}
	return cells
}

// RenderBoard draws the 2x3 grid with hit cells marked.
func RenderBoard(cells [board.Cells]bool) string {
	var rows []string
	for r := range board.Rows {
		var cols []string
		for c := range board.Cols {
			idx := r*board.Cols + c
			if cells[idx] {
				cols = append(cols, HitStyle.Render(" X "))
			} else {
				cols = append(cols, WaterStyle.Render(fmt.Sprintf(" %d ", idx+1)))
			}
		}
		rows = append(rows, strings.Join(cols, "|"))
	}
	return BoardStyle.Render(strings.Join(rows, "\n-----------\n"))
}
