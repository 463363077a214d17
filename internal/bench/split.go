// Package bench implements the evaluation harness: a uniform random
// train/test split, a strategy evaluated on that split, repetition over
// many splits, and the sequential job loop that streams results to sinks.
package bench

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"triagebench/internal/corpus"
	"triagebench/internal/rank"
)

// DefaultDivisor makes the test set a tenth of the dataset.
const DefaultDivisor = 10

// ErrDegenerateSplit is returned when the dataset is too small to hold
// out a single test issue.
var ErrDegenerateSplit = errors.New("dataset too small for a non-empty test set")

// Split is one train/test partition of a dataset. Train and test never share
// an issue.
type Split struct {
	TrainTexts  []string
	TrainLabels []string
	TestTexts   []string
	TestLabels  []string
}

// Strategy scores one split. Baselines and trained classifiers implement it
// alike; rng is the trial's random source for strategies that need one.
type Strategy interface {
	Evaluate(split Split, rng *rand.Rand) (rank.Triple, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(split Split, rng *rand.Rand) (rank.Triple, error)

// Evaluate implements Strategy.
func (f StrategyFunc) Evaluate(split Split, rng *rand.Rand) (rank.Triple, error) {
	return f(split, rng)
}

// NewSplit shuffles the dataset indices with rng and holds out the first
// len/divisor of them as the test set.
func NewSplit(rng *rand.Rand, ds corpus.Dataset, divisor int) (Split, error) {
	if divisor < 2 {
		divisor = DefaultDivisor
	}
	n := ds.Len()
	testSize := n / divisor
	if testSize == 0 {
		return Split{}, fmt.Errorf("%d issues with divisor %d: %w", n, divisor, ErrDegenerateSplit)
	}

	texts, labels := ds.Texts(), ds.Labels()
	perm := rng.Perm(n)
	s := Split{
		TestTexts:   make([]string, 0, testSize),
		TestLabels:  make([]string, 0, testSize),
		TrainTexts:  make([]string, 0, n-testSize),
		TrainLabels: make([]string, 0, n-testSize),
	}
	for i, idx := range perm {
		if i < testSize {
			s.TestTexts = append(s.TestTexts, texts[idx])
			s.TestLabels = append(s.TestLabels, labels[idx])
		} else {
			s.TrainTexts = append(s.TrainTexts, texts[idx])
			s.TrainLabels = append(s.TrainLabels, labels[idx])
		}
	}
	return s, nil
}

// EvaluateSplit draws one split and evaluates strategy on it.
func EvaluateSplit(rng *rand.Rand, strategy Strategy, ds corpus.Dataset, divisor int) (rank.Triple, error) {
	split, err := NewSplit(rng, ds, divisor)
	if err != nil {
		return rank.Triple{}, err
	}
	return strategy.Evaluate(split, rng)
}
