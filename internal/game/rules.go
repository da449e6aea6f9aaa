// Package game implements the U-boat prediction game played on top of the
// sonar sampler.
//
// Each round every player predicts how many of the six submarine cells the
// sonar will hit, the sonar searches, and players score by how close they
// were. After the last round the highest total wins.
//
// # Basic Usage
//
//	g, err := game.New([]string{"Ada", "Grace"}, randutil.New(42), game.Config{})
//	if err != nil {
//	    return err
//	}
//	g.DecideOrder()
//	for !g.Finished() {
//	    result, err := g.PlayRound(map[string]int{"Ada": 4, "Grace": 3})
//	    ...
//	}
//	standings := g.Standings()
//
// # Policy
//
// Rounds use DuplicatesAllowed with five searches by default, so the hit
// count is worth predicting. ForcedUnique always hits once per search and
// turns every round into a certainty; it is still available for reveal-only
// play.
package game

// Scoring table, by distance between prediction and actual hits.
const (
	PointsExact  = 4
	PointsNear   = 2
	PointsClose  = 1
	PointsMissed = 0
)

// Score returns the points for a prediction: 4 when exact, 2 when off by one,
// 1 when off by two and nothing otherwise.
func Score(prediction, actual int) int {
	diff := prediction - actual
	if diff < 0 {
		diff = -diff
	}

	switch diff {
	case 0:
		return PointsExact
	case 1:
		return PointsNear
	case 2:
		return PointsClose
	default:
		return PointsMissed
	}
}
