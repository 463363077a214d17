package store

import (
	"errors"

	"triagebench/internal/bench"
	"triagebench/internal/corpus"
)

// Recorder adapts a Store to bench.Sink. Begin opens a run row, every
// finished job is saved with its trials, and End stamps the run finished
// unless the benchmark failed.
type Recorder struct {
	Store    Store
	Seed     uint64
	Trials   int
	TieBreak string

	runID int64
	jobs  int
}

// RunID is the id of the run opened by Begin.
func (r *Recorder) RunID() int64 { return r.runID }

func (r *Recorder) Begin(ds corpus.Dataset) error {
	id, err := r.Store.CreateRun(&Run{
		Dataset:        ds.Label,
		TotalIssues:    ds.Total,
		AssignedIssues: ds.Len(),
		Seed:           r.Seed,
		Trials:         r.Trials,
		TieBreak:       r.TieBreak,
	})
	if err != nil {
		return err
	}
	r.runID = id
	r.jobs = 0
	return nil
}

func (r *Recorder) JobDone(res *bench.Result) error {
	if r.runID == 0 {
		return errors.New("store: JobDone before Begin")
	}
	r.jobs++
	_, err := r.Store.SaveJobResult(&JobResult{
		RunID:     r.runID,
		Job:       res.Job,
		Position:  r.jobs,
		Mean:      res.Mean,
		StdDev:    res.StdDev,
		ElapsedMS: res.Elapsed.Milliseconds(),
		Trials:    res.Trials,
	})
	return err
}

// End leaves ended_at empty for a failed run so history lists it as
// incomplete.
func (r *Recorder) End(runErr error) error {
	if r.runID == 0 || runErr != nil {
		return nil
	}
	return r.Store.FinishRun(r.runID)
}
