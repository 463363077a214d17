package store

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"triagebench/internal/bench"
	"triagebench/internal/corpus"
	"triagebench/internal/rank"
)

func TestSqlStore_RunsAndJobs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bench.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	// --- Run ---
	run := &Run{Dataset: "large", TotalIssues: 120, AssignedIssues: 100, Seed: math.MaxUint64, Trials: 2, TieBreak: "class-order"}
	runID, err := s.CreateRun(run)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	got, err := s.GetRun(runID)
	if err != nil || got == nil {
		t.Fatalf("GetRun: %+v %v", got, err)
	}
	if got.Seed != math.MaxUint64 || got.Dataset != "large" || got.EndedAt != "" {
		t.Errorf("GetRun = %+v", got)
	}
	if missing, err := s.GetRun(999); err != nil || missing != nil {
		t.Errorf("GetRun(missing) = %+v, %v; want nil, nil", missing, err)
	}

	// --- Job results ---
	trials := []rank.Triple{{MRR: 0.5, Top1: 0.25, Top5: 1}, {MRR: 0.7, Top1: 0.5, Top5: 1}}
	jr := &JobResult{
		RunID: runID, Job: "ZeroR", Position: 1,
		Mean:      rank.Triple{MRR: 0.6, Top1: 0.375, Top5: 1},
		StdDev:    rank.Triple{MRR: 0.1414, Top1: 0.1768},
		ElapsedMS: 42,
		Trials:    trials,
	}
	if _, err := s.SaveJobResult(jr); err != nil {
		t.Fatalf("SaveJobResult: %v", err)
	}
	nan := &JobResult{RunID: runID, Job: "Empty", Position: 2, Mean: rank.Triple{MRR: math.NaN()}}
	if _, err := s.SaveJobResult(nan); err != nil {
		t.Fatalf("SaveJobResult(NaN): %v", err)
	}
	if _, err := s.SaveJobResult(&JobResult{RunID: runID, Job: "ZeroR", Position: 3}); err == nil {
		t.Error("expected unique violation for repeated job name")
	}

	jobs, err := s.ListJobResults(runID)
	if err != nil {
		t.Fatalf("ListJobResults: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d job results, want 2", len(jobs))
	}
	if diff := cmp.Diff(jr, jobs[0]); diff != "" {
		t.Errorf("job round trip mismatch (-want +got):\n%s", diff)
	}
	if !math.IsNaN(jobs[1].Mean.MRR) {
		t.Errorf("NaN MRR came back as %v", jobs[1].Mean.MRR)
	}

	// --- Finish ---
	if err := s.FinishRun(runID); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	if err := s.FinishRun(999); err == nil {
		t.Error("expected error finishing a missing run")
	}
	runs, err := s.ListRuns()
	if err != nil || len(runs) != 1 || runs[0].EndedAt == "" {
		t.Fatalf("ListRuns = %+v, %v", runs, err)
	}
}

func TestSqlStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateRun(&Run{Dataset: "small", Trials: 1, TieBreak: "name-desc"}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	runs, err := s.ListRuns()
	if err != nil || len(runs) != 1 || runs[0].TieBreak != "name-desc" {
		t.Errorf("ListRuns after reopen = %+v, %v", runs, err)
	}
}

func TestSqlStore_MigrateV1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v1.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(schemaV1); err != nil {
		t.Fatalf("create v1: %v", err)
	}
	if _, err := db.Exec("INSERT INTO schema_version(version) VALUES(1)"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO runs(dataset, total_issues, assigned_issues, seed, trials, tie_break, started_at)
		VALUES('old', 10, 9, '7', 50, 'class-order', '2024-01-01T00:00:00Z')`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO job_results(run_id, job, position, mrr, top1, top5, mrr_sd, top1_sd, top5_sd)
		VALUES(1, 'ZeroR', 1, 0.5, 0.2, 0.9, 0, 0, 0)`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open v1: %v", err)
	}
	defer s.Close()
	var v int
	if err := s.db.QueryRow("SELECT version FROM schema_version").Scan(&v); err != nil || v != currentSchemaVersion {
		t.Fatalf("schema version = %d, %v; want %d", v, err, currentSchemaVersion)
	}
	jobs, err := s.ListJobResults(1)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("ListJobResults = %+v, %v", jobs, err)
	}
	if jobs[0].ElapsedMS != 0 || len(jobs[0].Trials) != 0 || jobs[0].Mean.MRR != 0.5 {
		t.Errorf("migrated job = %+v", jobs[0])
	}
}

func TestRecorder_Sink(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer s.Close()

	rec := &Recorder{Store: s, Seed: 99, Trials: 1, TieBreak: "class-order"}
	var _ bench.Sink = rec

	if err := rec.JobDone(&bench.Result{Job: "early"}); err == nil {
		t.Error("expected error for JobDone before Begin")
	}
	ds := corpus.Dataset{Label: "large", Total: 3, Issues: []corpus.Issue{{ID: "1", Owner: "a"}}}
	if err := rec.Begin(ds); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	for _, name := range []string{"Random", "ZeroR"} {
		err := rec.JobDone(&bench.Result{
			Job:     name,
			Trials:  []rank.Triple{{MRR: 1, Top1: 1, Top5: 1}},
			Mean:    rank.Triple{MRR: 1, Top1: 1, Top5: 1},
			Elapsed: 1500 * time.Microsecond,
		})
		if err != nil {
			t.Fatalf("JobDone(%s): %v", name, err)
		}
	}
	if err := rec.End(nil); err != nil {
		t.Fatalf("End: %v", err)
	}

	run, err := s.GetRun(rec.RunID())
	if err != nil || run == nil || run.EndedAt == "" || run.AssignedIssues != 1 || run.Seed != 99 {
		t.Fatalf("run = %+v, %v", run, err)
	}
	jobs, err := s.ListJobResults(rec.RunID())
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, j := range jobs {
		names = append(names, j.Job)
	}
	if diff := cmp.Diff([]string{"Random", "ZeroR"}, names); diff != "" {
		t.Errorf("job order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]rank.Triple{{MRR: 1, Top1: 1, Top5: 1}}, jobs[1].Trials, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("trials mismatch (-want +got):\n%s", diff)
	}
	if jobs[0].ElapsedMS != 1 {
		t.Errorf("ElapsedMS = %d, want 1", jobs[0].ElapsedMS)
	}
}

func TestRecorder_FailedRunStaysIncomplete(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer s.Close()

	ok := bench.StrategyFunc(func(bench.Split, *rand.Rand) (rank.Triple, error) {
		return rank.Triple{MRR: 1, Top1: 1, Top5: 1}, nil
	})
	failing := bench.StrategyFunc(func(bench.Split, *rand.Rand) (rank.Triple, error) {
		return rank.Triple{}, errors.New("only one class")
	})
	issues := make([]corpus.Issue, 20)
	for i := range issues {
		issues[i] = corpus.Issue{ID: fmt.Sprint(i), Owner: "a", Content: "x"}
	}
	rec := &Recorder{Store: s, Seed: 1, Trials: 1, TieBreak: "class-order"}
	b := &bench.Benchmark{
		Jobs:   []bench.Job{{Name: "ZeroR", Strategy: ok}, {Name: "SVM", Strategy: failing}},
		Config: bench.RunConfig{Trials: 1, Rand: rand.New(rand.NewPCG(1, 1))},
		Sinks:  []bench.Sink{rec},
	}
	if _, err := b.Run(corpus.Dataset{Label: "large", Total: 20, Issues: issues}); err == nil {
		t.Fatal("expected error from failing job")
	}

	run, err := s.GetRun(rec.RunID())
	if err != nil || run == nil {
		t.Fatalf("GetRun: %+v, %v", run, err)
	}
	if run.EndedAt != "" {
		t.Errorf("failed run has EndedAt %q, want empty", run.EndedAt)
	}
	jobs, err := s.ListJobResults(rec.RunID())
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 || jobs[0].Job != "ZeroR" {
		t.Errorf("jobs = %+v, want only the completed ZeroR", jobs)
	}
}
