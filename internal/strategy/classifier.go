package strategy

import (
	"fmt"
	"math/rand/v2"

	"triagebench/internal/bench"
	"triagebench/internal/features"
	"triagebench/internal/learn"
	"triagebench/internal/rank"
)

// Score selects which model output the ranker sees.
type Score int

const (
	// Proba ranks by predicted probability.
	Proba Score = iota
	// LogProba ranks by log-probability. The ranking is the same as Proba
	// except where probabilities underflow to equal values.
	LogProba
)

func (s Score) String() string {
	if s == LogProba {
		return "log-proba"
	}
	return "proba"
}

// Classifier fits a fresh vectoriser and model on every training split and
// ranks owners of the test issues by the model's scores.
type Classifier struct {
	Features features.Options
	// Aux is extra text folded into the vocabulary only.
	Aux       string
	Estimator learn.Estimator
	Score     Score
	Ranker    rank.Ranker
}

// Evaluate implements bench.Strategy. Seedable estimators are reseeded from
// rng so a trial is reproducible from the run seed.
func (c Classifier) Evaluate(split bench.Split, rng *rand.Rand) (rank.Triple, error) {
	var aux []string
	if c.Aux != "" {
		aux = append(aux, c.Aux)
	}
	vec := features.Fit(c.Features, split.TrainTexts, aux...)
	train := vec.Transform(split.TrainTexts)
	test := vec.Transform(split.TestTexts)

	est := c.Estimator
	if s, ok := est.(learn.Seedable); ok && rng != nil {
		est = s.WithSeed(rng.Uint64())
	}
	model, err := est.Fit(train, split.TrainLabels)
	if err != nil {
		return rank.Triple{}, fmt.Errorf("fit %s: %w", est.Name(), err)
	}

	var scores [][]float64
	switch c.Score {
	case LogProba:
		scores, err = learn.LogProba(model, test)
	default:
		scores, err = model.PredictProba(test)
	}
	if err != nil {
		return rank.Triple{}, fmt.Errorf("predict %s: %w", est.Name(), err)
	}
	return c.Ranker.Evaluate(scores, split.TestLabels, model.Classes()), nil
}
