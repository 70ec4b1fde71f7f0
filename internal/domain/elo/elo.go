// Package elo implements the Elo-style rating update applied after a
// learner attempts a practice item.
package elo

import (
	"math"

	"github.com/phrazzld/scry-practice/internal/domain"
)

const (
	// KFactor is the maximum rating change for a single attempt.
	KFactor = 32

	// scale is the rating difference at which the stronger side is
	// expected to win ten times as often.
	scale = 400.0
)

// ExpectedScore returns the probability that a learner with learnerRating
// answers an item with itemRating correctly.
//
// The learner and the item are treated as two players:
//
//	E = 1 / (1 + 10^((itemRating - learnerRating) / 400))
//
// Equal ratings give 0.5; an item 400 points harder gives roughly 0.09.
func ExpectedScore(learnerRating, itemRating int) float64 {
	return 1 / (1 + math.Pow(10, float64(itemRating-learnerRating)/scale))
}

// NewRating applies one attempt to a learner's rating.
//
// Parameters:
//   - learnerRating: the learner's current rating in the subject
//   - itemRating: the fixed Elo rating of the attempted item
//   - performance: 1 for a correct answer, 0 for an incorrect one
//
// Returns round(learnerRating + K*(performance - E)). Performance outside
// [0,1] is rejected with domain.ErrInvalidScore.
func NewRating(learnerRating, itemRating int, performance float64) (int, error) {
	if performance < 0 || performance > 1 || math.IsNaN(performance) {
		return 0, domain.ErrInvalidScore
	}

	expected := ExpectedScore(learnerRating, itemRating)
	next := float64(learnerRating) + KFactor*(performance-expected)

	return int(math.Round(next)), nil
}
