// Package learn provides the trainable scorers the benchmark compares:
// multinomial naive Bayes, k-nearest neighbours, a one-vs-rest wrapper and a
// probability-calibrated linear SVM.
//
// Every model exposes the same contract: Classes returns the sorted label
// set learned at Fit time, and PredictProba returns one row per input vector
// aligned column-for-column with Classes.
package learn

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"triagebench/internal/features"
)

var (
	// ErrTooFewClasses is returned when a model needs more distinct labels
	// than the training set holds.
	ErrTooFewClasses = errors.New("too few classes")
	// ErrTooFewSamples is returned when training data cannot support the
	// requested model (e.g. k larger than the training set).
	ErrTooFewSamples = errors.New("too few samples")
	// ErrDimension is returned when vectors do not match the fitted width.
	ErrDimension = errors.New("feature dimension mismatch")
)

// Estimator trains a Model from labelled feature vectors.
type Estimator interface {
	Name() string
	Fit(X features.Matrix, y []string) (Model, error)
}

// Model scores feature vectors against the classes seen during Fit.
type Model interface {
	Classes() []string
	PredictProba(X features.Matrix) ([][]float64, error)
}

// Seedable is implemented by estimators whose fit consumes randomness.
// WithSeed returns a copy fitted from the given seed.
type Seedable interface {
	WithSeed(seed uint64) Estimator
}

// LogProbaModel is implemented by models with a native log-probability.
type LogProbaModel interface {
	Model
	PredictLogProba(X features.Matrix) ([][]float64, error)
}

// LogProba returns log-probabilities, using the model's own computation
// when it has one and log(PredictProba) otherwise.
func LogProba(m Model, X features.Matrix) ([][]float64, error) {
	if lp, ok := m.(LogProbaModel); ok {
		return lp.PredictLogProba(X)
	}
	p, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	for _, row := range p {
		for j, v := range row {
			row[j] = math.Log(v)
		}
	}
	return p, nil
}

// classIndex returns the sorted distinct labels and each sample's column.
func classIndex(y []string) ([]string, []int) {
	set := make(map[string]struct{})
	for _, l := range y {
		set[l] = struct{}{}
	}
	classes := make([]string, 0, len(set))
	for l := range set {
		classes = append(classes, l)
	}
	sort.Strings(classes)

	pos := make(map[string]int, len(classes))
	for i, c := range classes {
		pos[c] = i
	}
	idx := make([]int, len(y))
	for i, l := range y {
		idx[i] = pos[l]
	}
	return classes, idx
}

func checkFit(X features.Matrix, y []string) error {
	if X.Len() != len(y) {
		return fmt.Errorf("%d rows but %d labels: %w", X.Len(), len(y), ErrDimension)
	}
	if len(y) == 0 {
		return fmt.Errorf("empty training set: %w", ErrTooFewSamples)
	}
	return nil
}

func checkWidth(X features.Matrix, want int) error {
	if X.Cols != want {
		return fmt.Errorf("got %d columns, model fitted on %d: %w", X.Cols, want, ErrDimension)
	}
	return nil
}

// normalizeRow scales row to sum to one. A row summing to zero becomes
// uniform.
func normalizeRow(row []float64) {
	sum := 0.0
	for _, v := range row {
		sum += v
	}
	if sum <= 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		for j := range row {
			row[j] = 1 / float64(len(row))
		}
		return
	}
	for j := range row {
		row[j] /= sum
	}
}
