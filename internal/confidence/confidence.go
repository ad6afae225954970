// Package confidence maps numeric address scores to discrete confidence
// levels and defines the filtering semantics ("at least this good") used by
// the mailing-list query layer.
package confidence

import (
	"fmt"
	"strings"

	dErrors "rollcall/pkg/domain-errors"
)

// Level is an ordered confidence tier for a contact's mailing address.
type Level string

const (
	VeryHigh Level = "very_high"
	High     Level = "high"
	Medium   Level = "medium"
	Low      Level = "low"
	VeryLow  Level = "very_low"
)

// levelSpec ties a level to its inclusive minimum score and its rank.
// Rank 1 is best; filtering by a minimum level accepts every level whose
// rank is less than or equal to the minimum's rank.
type levelSpec struct {
	level     Level
	threshold float64
	rank      int
	label     string
	color     string
}

// specs is ordered best-first. Classify walks it top-down, so thresholds
// must stay strictly descending with very_low as the zero floor.
var specs = []levelSpec{
	{VeryHigh, 75, 1, "Very High", "green"},
	{High, 60, 2, "High", "teal"},
	{Medium, 45, 3, "Medium", "yellow"},
	{Low, 30, 4, "Low", "orange"},
	{VeryLow, 0, 5, "Very Low", "red"},
}

// Classification is the display-ready result of classifying a score.
type Classification struct {
	Level Level
	Label string
	Color string
}

// Classify returns the highest level whose threshold is <= score. The lower
// bound is inclusive, so a score exactly at a threshold earns that level.
// Scores below 30, including negatives, classify as VeryLow.
func Classify(score float64) Classification {
	for _, s := range specs {
		if score >= s.threshold {
			return Classification{Level: s.level, Label: s.label, Color: s.color}
		}
	}
	// Unreachable while very_low keeps its zero threshold, but negative
	// scores still need a defined answer.
	last := specs[len(specs)-1]
	return Classification{Level: last.level, Label: last.label, Color: last.color}
}

// Rank returns the level's rank (1 = best, 5 = worst). Unknown levels
// report the worst rank so stored garbage never widens a filter.
func (l Level) Rank() int {
	for _, s := range specs {
		if s.level == l {
			return s.rank
		}
	}
	return specs[len(specs)-1].rank
}

// Valid reports whether l is one of the five defined levels.
func (l Level) Valid() bool {
	for _, s := range specs {
		if s.level == l {
			return true
		}
	}
	return false
}

// Label returns the human-readable name for the level.
func (l Level) Label() string {
	for _, s := range specs {
		if s.level == l {
			return s.label
		}
	}
	return string(l)
}

// ParseLevel validates a level received at a trust boundary (query param,
// stored column).
func ParseLevel(raw string) (Level, error) {
	level := Level(strings.ToLower(strings.TrimSpace(raw)))
	if !level.Valid() {
		return "", dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("unknown confidence level %q", raw))
	}
	return level, nil
}

// AcceptedLevels returns every level as good as or better than min, in
// rank order (best first). The comparison is by rank, not by threshold,
// because confidence is a stored categorical field on each contact.
func AcceptedLevels(min Level) []Level {
	maxRank := min.Rank()
	accepted := make([]Level, 0, maxRank)
	for _, s := range specs {
		if s.rank <= maxRank {
			accepted = append(accepted, s.level)
		}
	}
	return accepted
}

// Levels returns all five levels in rank order (best first).
func Levels() []Level {
	all := make([]Level, len(specs))
	for i, s := range specs {
		all[i] = s.level
	}
	return all
}
