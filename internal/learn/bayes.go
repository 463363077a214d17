package learn

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"triagebench/internal/features"
)

// MultinomialNB is a multinomial naive Bayes classifier with additive
// (Laplace/Lidstone) smoothing.
type MultinomialNB struct {
	// Alpha is the smoothing parameter; zero means 1.
	Alpha float64
}

// Name implements Estimator.
func (nb MultinomialNB) Name() string { return "multinomial-nb" }

// Fit accumulates per-class feature totals from X.
func (nb MultinomialNB) Fit(X features.Matrix, y []string) (Model, error) {
	if err := checkFit(X, y); err != nil {
		return nil, err
	}
	alpha := nb.Alpha
	if alpha <= 0 {
		alpha = 1
	}
	classes, idx := classIndex(y)
	k, d := len(classes), X.Cols

	featureCount := make([][]float64, k)
	for c := range featureCount {
		featureCount[c] = make([]float64, d)
	}
	classCount := make([]float64, k)
	for i, row := range X.Rows {
		c := idx[i]
		classCount[c]++
		row.AddTo(featureCount[c], 1)
	}

	m := &nbModel{
		classes:        classes,
		cols:           d,
		classLogPrior:  make([]float64, k),
		featureLogProb: make([][]float64, k),
	}
	n := float64(len(y))
	for c := 0; c < k; c++ {
		m.classLogPrior[c] = math.Log(classCount[c] / n)
		total := floats.Sum(featureCount[c]) + alpha*float64(d)
		lp := make([]float64, d)
		for j, v := range featureCount[c] {
			lp[j] = math.Log((v + alpha) / total)
		}
		m.featureLogProb[c] = lp
	}
	return m, nil
}

type nbModel struct {
	classes        []string
	cols           int
	classLogPrior  []float64
	featureLogProb [][]float64
}

func (m *nbModel) Classes() []string { return m.classes }

// jointLogLikelihood is log P(c) + sum_j x_j log P(j|c) per class.
func (m *nbModel) jointLogLikelihood(X features.Matrix) ([][]float64, error) {
	if err := checkWidth(X, m.cols); err != nil {
		return nil, err
	}
	out := make([][]float64, X.Len())
	for i, row := range X.Rows {
		jll := make([]float64, len(m.classes))
		for c := range m.classes {
			jll[c] = m.classLogPrior[c] + row.DotDense(m.featureLogProb[c])
		}
		out[i] = jll
	}
	return out, nil
}

func (m *nbModel) PredictLogProba(X features.Matrix) ([][]float64, error) {
	jll, err := m.jointLogLikelihood(X)
	if err != nil {
		return nil, err
	}
	for _, row := range jll {
		norm := floats.LogSumExp(row)
		for c := range row {
			row[c] -= norm
		}
	}
	return jll, nil
}

func (m *nbModel) PredictProba(X features.Matrix) ([][]float64, error) {
	lp, err := m.PredictLogProba(X)
	if err != nil {
		return nil, err
	}
	for _, row := range lp {
		for c, v := range row {
			row[c] = math.Exp(v)
		}
	}
	return lp, nil
}
