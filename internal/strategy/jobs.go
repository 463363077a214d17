package strategy

import (
	"errors"
	"fmt"
	"strings"

	"triagebench/internal/bench"
	"triagebench/internal/config"
	"triagebench/internal/features"
	"triagebench/internal/learn"
	"triagebench/internal/rank"
)

var (
	ErrUnknownJob  = errors.New("unknown job")
	ErrUnknownKind = errors.New("unknown job kind")
)

// Options is shared by every job built from a job table.
type Options struct {
	Features features.Options
	Aux      string
	Ranker   rank.Ranker
	// Workers bounds per-model parallelism; zero means GOMAXPROCS.
	Workers int
}

// DefaultJobs returns the standard eight jobs in report order.
func DefaultJobs(opts Options) []bench.Job {
	jobs, err := FromConfig(config.DefaultJobs(), opts)
	if err != nil {
		panic(err)
	}
	return jobs
}

// FromConfig builds one job per JobSpec, preserving order.
func FromConfig(specs []config.JobSpec, opts Options) ([]bench.Job, error) {
	jobs := make([]bench.Job, 0, len(specs))
	for _, sp := range specs {
		s, err := build(sp, opts)
		if err != nil {
			return nil, fmt.Errorf("job %q: %w", sp.Name, err)
		}
		jobs = append(jobs, bench.Job{Name: sp.Name, Strategy: s})
	}
	return jobs, nil
}

func build(sp config.JobSpec, opts Options) (bench.Strategy, error) {
	classifier := func(est learn.Estimator, def Score) (bench.Strategy, error) {
		score, err := parseScore(sp.Score, def)
		if err != nil {
			return nil, err
		}
		return Classifier{
			Features:  opts.Features,
			Aux:       opts.Aux,
			Estimator: est,
			Score:     score,
			Ranker:    opts.Ranker,
		}, nil
	}

	switch sp.Kind {
	case config.KindRandom:
		return Random{Ranker: opts.Ranker}, nil
	case config.KindZeroR:
		return ZeroR{Ranker: opts.Ranker}, nil
	case config.KindKNN:
		return classifier(learn.KNN{K: sp.K, Workers: opts.Workers}, Proba)
	case config.KindNaiveBayes:
		return classifier(learn.MultinomialNB{Alpha: sp.Alpha}, LogProba)
	case config.KindOvRNaiveBayes:
		return classifier(learn.OneVsRest{Base: learn.MultinomialNB{Alpha: sp.Alpha}, Workers: opts.Workers}, Proba)
	case config.KindSVM:
		return classifier(learn.LinearSVM{C: sp.C, Epochs: sp.Epochs, Workers: opts.Workers}, LogProba)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, sp.Kind)
	}
}

func parseScore(s string, def Score) (Score, error) {
	switch s {
	case "":
		return def, nil
	case config.ScoreProba:
		return Proba, nil
	case config.ScoreLogProba:
		return LogProba, nil
	default:
		return def, fmt.Errorf("unknown score %q", s)
	}
}

// Select keeps the named jobs in table order. An empty selection keeps all.
func Select(jobs []bench.Job, names []string) ([]bench.Job, error) {
	if len(names) == 0 {
		return jobs, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.TrimSpace(n)] = true
	}
	var out []bench.Job
	for _, j := range jobs {
		if want[j.Name] {
			out = append(out, j)
			delete(want, j.Name)
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for _, n := range names {
			if want[strings.TrimSpace(n)] {
				missing = append(missing, strings.TrimSpace(n))
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, strings.Join(missing, ", "))
	}
	return out, nil
}
