package learn

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"triagebench/internal/features"
)

const (
	positive = "+"
	negative = "-"
)

// OneVsRest fits one binary model per class (that class against all others)
// and combines the positive-class probabilities, normalised to sum to one.
type OneVsRest struct {
	Base Estimator
	// Workers bounds concurrent per-class fits; zero means GOMAXPROCS.
	Workers int
}

// Name implements Estimator.
func (o OneVsRest) Name() string { return "ovr-" + o.Base.Name() }

// Fit trains the per-class binary models concurrently.
func (o OneVsRest) Fit(X features.Matrix, y []string) (Model, error) {
	if err := checkFit(X, y); err != nil {
		return nil, err
	}
	classes, idx := classIndex(y)

	binary := make([]Model, len(classes))
	workers := o.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for c := range classes {
		if len(classes) == 1 {
			// a lone class has no "rest" to separate from
			break
		}
		g.Go(func() error {
			yb := make([]string, len(y))
			for i, ci := range idx {
				if ci == c {
					yb[i] = positive
				} else {
					yb[i] = negative
				}
			}
			model, err := o.Base.Fit(X, yb)
			if err != nil {
				return fmt.Errorf("class %q: %w", classes[c], err)
			}
			binary[c] = model
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &ovrModel{classes: classes, cols: X.Cols, binary: binary}, nil
}

type ovrModel struct {
	classes []string
	cols    int
	binary  []Model // nil entries when only one class was seen
}

func (m *ovrModel) Classes() []string { return m.classes }

func (m *ovrModel) PredictProba(X features.Matrix) ([][]float64, error) {
	if err := checkWidth(X, m.cols); err != nil {
		return nil, err
	}
	out := make([][]float64, X.Len())
	for i := range out {
		out[i] = make([]float64, len(m.classes))
	}
	if len(m.classes) == 1 {
		for i := range out {
			out[i][0] = 1
		}
		return out, nil
	}

	for c, model := range m.binary {
		p, err := model.PredictProba(X)
		if err != nil {
			return nil, fmt.Errorf("class %q: %w", m.classes[c], err)
		}
		col := positiveColumn(model.Classes())
		for i := range out {
			out[i][c] = p[i][col]
		}
	}
	for _, row := range out {
		normalizeRow(row)
	}
	return out, nil
}

func positiveColumn(classes []string) int {
	for i, c := range classes {
		if c == positive {
			return i
		}
	}
	return 0
}
