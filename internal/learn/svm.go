package learn

import (
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"

	"triagebench/internal/features"
)

// LinearSVM is a one-vs-rest linear support vector classifier trained with
// the Pegasos stochastic sub-gradient method. Each per-class decision
// function is mapped to a probability with Platt scaling fitted on the
// training decisions, and the per-class probabilities are normalised.
type LinearSVM struct {
	// C is the inverse regularisation strength; zero means 1.
	C float64
	// Epochs is the number of passes over the training set; zero means 10.
	Epochs int
	// Seed fixes the sample order so fits are reproducible.
	Seed uint64
	// Workers bounds concurrent per-class fits; zero means GOMAXPROCS.
	Workers int
}

// Name implements Estimator.
func (s LinearSVM) Name() string { return "linear-svm" }

// WithSeed implements Seedable.
func (s LinearSVM) WithSeed(seed uint64) Estimator {
	s.Seed = seed
	return s
}

// Fit needs at least two distinct labels.
func (s LinearSVM) Fit(X features.Matrix, y []string) (Model, error) {
	if err := checkFit(X, y); err != nil {
		return nil, err
	}
	classes, idx := classIndex(y)
	if len(classes) < 2 {
		return nil, fmt.Errorf("svm: %d class in training set, need 2: %w", len(classes), ErrTooFewClasses)
	}
	c := s.C
	if c <= 0 {
		c = 1
	}
	epochs := s.Epochs
	if epochs <= 0 {
		epochs = 10
	}
	lambda := 1 / (c * float64(len(y)))

	m := &svmModel{
		classes: classes,
		cols:    X.Cols,
		weights: make([][]float64, len(classes)),
		bias:    make([]float64, len(classes)),
		platt:   make([]sigmoid, len(classes)),
	}
	workers := s.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for ci := range classes {
		g.Go(func() error {
			target := make([]float64, len(idx))
			for i, li := range idx {
				if li == ci {
					target[i] = 1
				} else {
					target[i] = -1
				}
			}
			rng := rand.New(rand.NewPCG(s.Seed, uint64(ci)))
			w, b := pegasos(X, target, lambda, epochs, rng)

			dec := make([]float64, X.Len())
			for i, row := range X.Rows {
				dec[i] = row.DotDense(w) + b
			}
			m.weights[ci], m.bias[ci] = w, b
			m.platt[ci] = fitSigmoid(dec, target)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return m, nil
}

type svmModel struct {
	classes []string
	cols    int
	weights [][]float64
	bias    []float64
	platt   []sigmoid
}

func (m *svmModel) Classes() []string { return m.classes }

// Decision returns the raw per-class margins w·x + b.
func (m *svmModel) Decision(X features.Matrix) ([][]float64, error) {
	if err := checkWidth(X, m.cols); err != nil {
		return nil, err
	}
	out := make([][]float64, X.Len())
	for i, row := range X.Rows {
		d := make([]float64, len(m.classes))
		for c := range m.classes {
			d[c] = row.DotDense(m.weights[c]) + m.bias[c]
		}
		out[i] = d
	}
	return out, nil
}

func (m *svmModel) PredictProba(X features.Matrix) ([][]float64, error) {
	dec, err := m.Decision(X)
	if err != nil {
		return nil, err
	}
	for _, row := range dec {
		for c, f := range row {
			row[c] = m.platt[c].prob(f)
		}
		normalizeRow(row)
	}
	return dec, nil
}

// pegasos minimises lambda/2 |w|^2 + mean hinge loss. The bias is an extra
// always-one feature. w is kept as scale*v so the shrink step is O(1).
func pegasos(X features.Matrix, target []float64, lambda float64, epochs int, rng *rand.Rand) ([]float64, float64) {
	v := make([]float64, X.Cols)
	vb := 0.0
	scale := 1.0
	t := 0
	for e := 0; e < epochs; e++ {
		for _, i := range rng.Perm(len(target)) {
			t++
			eta := 1 / (lambda * float64(t+1))
			x := X.Rows[i]
			margin := target[i] * scale * (x.DotDense(v) + vb)

			scale *= 1 - eta*lambda
			if margin < 1 {
				step := eta * target[i] / scale
				x.AddTo(v, step)
				vb += step
			}
			if scale < 1e-9 {
				for j := range v {
					v[j] *= scale
				}
				vb *= scale
				scale = 1
			}
		}
	}
	for j := range v {
		v[j] *= scale
	}
	return v, vb * scale
}

// sigmoid is a fitted Platt mapping P(+|f) = 1 / (1 + exp(A f + B)).
type sigmoid struct {
	A, B float64
}

func (s sigmoid) prob(f float64) float64 {
	fApB := f*s.A + s.B
	if fApB >= 0 {
		return math.Exp(-fApB) / (1 + math.Exp(-fApB))
	}
	return 1 / (1 + math.Exp(fApB))
}

// fitSigmoid fits Platt's sigmoid by Newton's method with backtracking,
// using regularised targets (Lin, Lin & Weng 2007).
func fitSigmoid(dec, target []float64) sigmoid {
	const (
		maxIter = 100
		minStep = 1e-10
		sigma   = 1e-12
		eps     = 1e-5
	)
	var prior1, prior0 float64
	for _, y := range target {
		if y > 0 {
			prior1++
		} else {
			prior0++
		}
	}
	hi := (prior1 + 1) / (prior1 + 2)
	lo := 1 / (prior0 + 2)
	t := make([]float64, len(target))
	for i, y := range target {
		if y > 0 {
			t[i] = hi
		} else {
			t[i] = lo
		}
	}

	objective := func(a, b float64) float64 {
		f := 0.0
		for i, d := range dec {
			fApB := d*a + b
			if fApB >= 0 {
				f += t[i]*fApB + math.Log1p(math.Exp(-fApB))
			} else {
				f += (t[i]-1)*fApB + math.Log1p(math.Exp(fApB))
			}
		}
		return f
	}

	a, b := 0.0, math.Log((prior0+1)/(prior1+1))
	fval := objective(a, b)
	for iter := 0; iter < maxIter; iter++ {
		h11, h22, h21, g1, g2 := sigma, sigma, 0.0, 0.0, 0.0
		for i, d := range dec {
			fApB := d*a + b
			var p, q float64
			if fApB >= 0 {
				p = math.Exp(-fApB) / (1 + math.Exp(-fApB))
				q = 1 / (1 + math.Exp(-fApB))
			} else {
				p = 1 / (1 + math.Exp(fApB))
				q = math.Exp(fApB) / (1 + math.Exp(fApB))
			}
			d2 := p * q
			h11 += d * d * d2
			h22 += d2
			h21 += d * d2
			d1 := t[i] - p
			g1 += d * d1
			g2 += d1
		}
		if math.Abs(g1) < eps && math.Abs(g2) < eps {
			break
		}

		det := h11*h22 - h21*h21
		dA := -(h22*g1 - h21*g2) / det
		dB := -(-h21*g1 + h11*g2) / det
		gd := g1*dA + g2*dB

		step := 1.0
		for step >= minStep {
			na, nb := a+step*dA, b+step*dB
			if nf := objective(na, nb); nf < fval+0.0001*step*gd {
				a, b, fval = na, nb, nf
				break
			}
			step /= 2
		}
		if step < minStep {
			break
		}
	}
	return sigmoid{A: a, B: b}
}
