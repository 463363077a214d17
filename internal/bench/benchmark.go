package bench

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"triagebench/internal/corpus"
	"triagebench/internal/logging"
)

// Sink receives benchmark progress. Begin is called once before the first
// job, JobDone after every job, End once after the last job. End receives
// the error that stopped the run, nil when every job completed.
type Sink interface {
	Begin(ds corpus.Dataset) error
	JobDone(res *Result) error
	End(runErr error) error
}

// Benchmark runs a job table sequentially against one dataset.
type Benchmark struct {
	Jobs   []Job
	Config RunConfig
	Sinks  []Sink
}

// Run executes every job in order and returns their results. A job error
// stops the benchmark; every sink whose Begin succeeded still gets End so
// partial output is flushed.
func (b *Benchmark) Run(ds corpus.Dataset) (results []*Result, err error) {
	logger := logging.New("bench")
	var begun []Sink
	defer func() {
		runErr := err
		for _, s := range begun {
			if endErr := s.End(runErr); endErr != nil {
				err = errors.Join(err, fmt.Errorf("sink end: %w", endErr))
			}
		}
	}()
	for _, s := range b.Sinks {
		if err := s.Begin(ds); err != nil {
			return nil, fmt.Errorf("sink begin: %w", err)
		}
		begun = append(begun, s)
	}

	logger.Info("starting benchmark",
		"dataset", ds.Label,
		"issues", humanize.Comma(int64(ds.Total)),
		"assigned", humanize.Comma(int64(ds.Len())),
		"jobs", len(b.Jobs),
		"trials", b.Config.Trials)

	for i, job := range b.Jobs {
		logger.Info("starting job", "job", job.Name, "index", i+1, "total", len(b.Jobs))
		res, err := Run(job, ds, b.Config)
		if err != nil {
			return results, err
		}
		logger.Info("job done",
			"job", job.Name,
			"mrr", res.Mean.MRR,
			"elapsed", res.Elapsed.Round(time.Millisecond).String())
		results = append(results, res)
		for _, s := range b.Sinks {
			if err := s.JobDone(res); err != nil {
				return results, fmt.Errorf("sink %s: %w", job.Name, err)
			}
		}
	}
	return results, nil
}
