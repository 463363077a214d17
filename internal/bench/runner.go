package bench

import (
	"fmt"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat"

	"triagebench/internal/corpus"
	"triagebench/internal/logging"
	"triagebench/internal/rank"
)

// DefaultTrials is the number of splits averaged per job.
const DefaultTrials = 50

// Job pairs a report name with the strategy it runs.
type Job struct {
	Name     string
	Strategy Strategy
}

// RunConfig holds configuration for a repeated-trial run.
type RunConfig struct {
	Trials  int
	Divisor int
	// Rand drives every split and every strategy that needs randomness.
	// Runs sharing a seeded source are reproducible.
	Rand *rand.Rand
}

// DefaultRunConfig returns the defaults: 50 trials, 90/10 splits.
func DefaultRunConfig(rng *rand.Rand) RunConfig {
	return RunConfig{Trials: DefaultTrials, Divisor: DefaultDivisor, Rand: rng}
}

// Result is one job's outcome across all trials.
type Result struct {
	Job     string
	Trials  []rank.Triple
	Mean    rank.Triple
	StdDev  rank.Triple
	Elapsed time.Duration
}

// Run evaluates job on cfg.Trials fresh splits of ds and averages the
// triples. The first failing trial fails the whole run.
func Run(job Job, ds corpus.Dataset, cfg RunConfig) (*Result, error) {
	if cfg.Trials < 1 {
		cfg.Trials = DefaultTrials
	}
	if cfg.Rand == nil {
		return nil, fmt.Errorf("run %s: RunConfig.Rand is required", job.Name)
	}

	logger := logging.New("bench").With("job", job.Name)
	res := &Result{Job: job.Name, Trials: make([]rank.Triple, 0, cfg.Trials)}
	start := time.Now()

	for trial := 0; trial < cfg.Trials; trial++ {
		t0 := time.Now()
		triple, err := EvaluateSplit(cfg.Rand, job.Strategy, ds, cfg.Divisor)
		if err != nil {
			return nil, fmt.Errorf("job %s trial %d: %w", job.Name, trial+1, err)
		}
		logger.Debug("trial done",
			"trial", trial+1, "total", cfg.Trials,
			"mrr", triple.MRR, "top1", triple.Top1, "top5", triple.Top5,
			"elapsed", time.Since(t0))
		res.Trials = append(res.Trials, triple)
	}

	res.Elapsed = time.Since(start)
	res.Mean, res.StdDev = aggregate(res.Trials)
	return res, nil
}

// aggregate returns the component-wise mean and sample standard deviation.
func aggregate(trials []rank.Triple) (mean, sd rank.Triple) {
	mrr := make([]float64, len(trials))
	top1 := make([]float64, len(trials))
	top5 := make([]float64, len(trials))
	for i, t := range trials {
		mrr[i], top1[i], top5[i] = t.MRR, t.Top1, t.Top5
	}
	mean = rank.Triple{MRR: stat.Mean(mrr, nil), Top1: stat.Mean(top1, nil), Top5: stat.Mean(top5, nil)}
	if len(trials) > 1 {
		sd = rank.Triple{MRR: stat.StdDev(mrr, nil), Top1: stat.StdDev(top1, nil), Top5: stat.StdDev(top5, nil)}
	}
	return mean, sd
}
