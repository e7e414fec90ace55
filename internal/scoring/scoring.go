// Package scoring turns a guessed point on a floor map into a score.
package scoring

import (
	"fmt"
	"math"

	"github.com/floor-guesser/internal/domain"
)

const (
	// MaxScore is the best possible score for one round.
	MaxScore = 100

	// WrongFloorCap is the most a guess on the wrong floor can earn.
	WrongFloorCap = 10

	// DefaultCorrectRadius is the pixel distance within which a guess is marked correct.
	DefaultCorrectRadius = 40.0

	// QuickPlayMaxScore is the top of the linear quick-play scale.
	QuickPlayMaxScore = 1000
)

// Point is a position in floor-pixel space.
type Point struct {
	X float64
	Y float64
}

// Input is everything needed to score one guess. FloorMatch is nil when the
// player did not choose a floor.
type Input struct {
	Target      Point
	Guess       Point
	FloorWidth  float64
	FloorHeight float64
	FloorMatch  *bool
}

// Scorer scores guesses using a configurable correctness radius.
type Scorer struct {
	correctRadius float64
}

// NewScorer creates a scorer. A non-positive radius falls back to DefaultCorrectRadius.
func NewScorer(correctRadius float64) *Scorer {
	if correctRadius <= 0 {
		correctRadius = DefaultCorrectRadius
	}
	return &Scorer{correctRadius: correctRadius}
}

// Score applies the quadratic distance penalty and the wrong-floor cap.
func (s *Scorer) Score(in Input) (domain.ScoreResult, error) {
	if err := validate(in); err != nil {
		return domain.ScoreResult{}, err
	}

	distance := Distance(in.Target, in.Guess)
	normalized := NormalizedError(distance, in.FloorWidth, in.FloorHeight)

	closeness := 1 - normalized
	score := int(math.Round(MaxScore * closeness * closeness))

	floorMatch := in.FloorMatch == nil || *in.FloorMatch
	if !floorMatch {
		score = min(WrongFloorCap, int(math.Round(float64(score)/10)))
	}

	return domain.ScoreResult{
		Distance:   distance,
		Score:      clamp(score, 0, MaxScore),
		Correct:    distance <= s.correctRadius,
		FloorMatch: floorMatch,
	}, nil
}

// QuickPlay scores without a floor selection on the linear 0..1000 scale
// used by the quick-play mode. It is intentionally kept apart from Score:
// the two formulas have not been reconciled.
func (s *Scorer) QuickPlay(target, guess Point, width, height float64) (domain.QuickPlayResponse, error) {
	if err := validate(Input{Target: target, Guess: guess, FloorWidth: width, FloorHeight: height}); err != nil {
		return domain.QuickPlayResponse{}, err
	}

	distance := Distance(target, guess)
	normalized := NormalizedError(distance, width, height)
	score := int(math.Round(QuickPlayMaxScore * (1 - normalized)))

	return domain.QuickPlayResponse{
		Distance: distance,
		Score:    clamp(score, 0, QuickPlayMaxScore),
		MaxScore: QuickPlayMaxScore,
		Correct:  distance <= s.correctRadius,
	}, nil
}

// Distance is the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// NormalizedError maps a distance to [0,1] relative to the floor diagonal.
// A zero diagonal is treated as 1.
func NormalizedError(distance, width, height float64) float64 {
	diagonal := math.Hypot(width, height)
	if diagonal == 0 {
		diagonal = 1
	}
	return math.Min(1, distance/diagonal)
}

func validate(in Input) error {
	values := []struct {
		name  string
		value float64
	}{
		{"target x", in.Target.X},
		{"target y", in.Target.Y},
		{"guess x", in.Guess.X},
		{"guess y", in.Guess.Y},
		{"floor width", in.FloorWidth},
		{"floor height", in.FloorHeight},
	}
	for _, v := range values {
		if math.IsNaN(v.value) || math.IsInf(v.value, 0) {
			return fmt.Errorf("%w: %s must be finite", domain.ErrInvalidInput, v.name)
		}
	}
	if in.FloorWidth < 0 || in.FloorHeight < 0 {
		return fmt.Errorf("%w: floor dimensions must not be negative", domain.ErrInvalidInput)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
