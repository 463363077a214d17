// Package store persists benchmark runs in SQLite so results from different
// seeds, corpora and job tables can be compared later.
package store

import "triagebench/internal/rank"

// Run is one invocation of the benchmark against one dataset.
type Run struct {
	ID             int64
	Dataset        string
	TotalIssues    int
	AssignedIssues int
	Seed           uint64
	Trials         int
	TieBreak       string
	StartedAt      string
	EndedAt        string // empty while the run is in progress or if it failed
}

// JobResult is one job's aggregate within a run, in report order.
type JobResult struct {
	ID        int64
	RunID     int64
	Job       string
	Position  int
	Mean      rank.Triple
	StdDev    rank.Triple
	ElapsedMS int64
	Trials    []rank.Triple
}

// Store is the persistence facade used by the CLI and the results sink.
type Store interface {
	CreateRun(r *Run) (int64, error)
	FinishRun(id int64) error
	GetRun(id int64) (*Run, error)
	ListRuns() ([]*Run, error)

	SaveJobResult(jr *JobResult) (int64, error)
	ListJobResults(runID int64) ([]*JobResult, error)
}
