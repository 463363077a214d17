package learn

import (
	"cmp"
	"fmt"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"triagebench/internal/features"
)

// KNN is a k-nearest-neighbours classifier with uniform neighbour weights
// and Euclidean distance. The probability of a class is the share of the k
// nearest training vectors carrying that label.
type KNN struct {
	K int
	// Workers bounds concurrent scoring; zero means GOMAXPROCS.
	Workers int
}

// Name implements Estimator.
func (k KNN) Name() string { return fmt.Sprintf("knn-%d", k.K) }

// Fit stores the training set; k must not exceed its size.
func (k KNN) Fit(X features.Matrix, y []string) (Model, error) {
	if err := checkFit(X, y); err != nil {
		return nil, err
	}
	if k.K < 1 {
		return nil, fmt.Errorf("knn: k=%d: %w", k.K, ErrTooFewSamples)
	}
	if k.K > len(y) {
		return nil, fmt.Errorf("knn: k=%d exceeds %d training samples: %w", k.K, len(y), ErrTooFewSamples)
	}
	classes, idx := classIndex(y)
	norms := make([]float64, X.Len())
	for i, row := range X.Rows {
		norms[i] = row.SquaredNorm()
	}
	workers := k.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &knnModel{k: k.K, workers: workers, classes: classes, train: X, labels: idx, norms: norms}, nil
}

type knnModel struct {
	k       int
	workers int
	classes []string
	train   features.Matrix
	labels  []int
	norms   []float64
}

func (m *knnModel) Classes() []string { return m.classes }

type neighbour struct {
	dist  float64
	index int
}

// PredictProba scores rows concurrently. Each goroutine writes only its own
// output row, and neighbour ties are broken by training index, so the
// result does not depend on scheduling.
func (m *knnModel) PredictProba(X features.Matrix) ([][]float64, error) {
	if err := checkWidth(X, m.train.Cols); err != nil {
		return nil, err
	}
	out := make([][]float64, X.Len())

	var g errgroup.Group
	g.SetLimit(m.workers)
	for i := range X.Rows {
		g.Go(func() error {
			out[i] = m.scoreRow(X.Rows[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *knnModel) scoreRow(q features.Vector) []float64 {
	qn := q.SquaredNorm()
	nb := make([]neighbour, len(m.train.Rows))
	for j, row := range m.train.Rows {
		nb[j] = neighbour{dist: qn + m.norms[j] - 2*q.Dot(row), index: j}
	}
	slices.SortFunc(nb, func(a, b neighbour) int {
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		return cmp.Compare(a.index, b.index)
	})

	proba := make([]float64, len(m.classes))
	for _, n := range nb[:m.k] {
		proba[m.labels[n.index]] += 1 / float64(m.k)
	}
	return proba
}
