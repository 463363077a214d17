package bench

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	"triagebench/internal/corpus"
	"triagebench/internal/rank"
)

func makeDataset(n int) corpus.Dataset {
	ds := corpus.Dataset{Label: "test", Total: n}
	for i := 0; i < n; i++ {
		ds.Issues = append(ds.Issues, corpus.Issue{
			ID:      fmt.Sprint(i),
			Owner:   fmt.Sprintf("owner%d", i%3),
			Content: fmt.Sprintf("issue %d", i),
		})
	}
	return ds
}

func seeded(seed uint64) *rand.Rand { return rand.New(rand.NewPCG(seed, seed)) }

func TestNewSplit_SizesAndDisjoint(t *testing.T) {
	tests := []struct {
		n, wantTest int
	}{
		{10, 1},
		{19, 1},
		{100, 10},
		{105, 10},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.n), func(t *testing.T) {
			ds := makeDataset(tt.n)
			s, err := NewSplit(seeded(1), ds, DefaultDivisor)
			if err != nil {
				t.Fatalf("NewSplit: %v", err)
			}
			if len(s.TestTexts) != tt.wantTest || len(s.TestLabels) != tt.wantTest {
				t.Errorf("test size = %d/%d, want %d", len(s.TestTexts), len(s.TestLabels), tt.wantTest)
			}
			if len(s.TrainTexts) != tt.n-tt.wantTest {
				t.Errorf("train size = %d, want %d", len(s.TrainTexts), tt.n-tt.wantTest)
			}

			all := append(append([]string{}, s.TestTexts...), s.TrainTexts...)
			sort.Strings(all)
			want := ds.Texts()
			sort.Strings(want)
			if diff := cmp.Diff(want, all); diff != "" {
				t.Errorf("split is not a partition (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewSplit_LabelsFollowTexts(t *testing.T) {
	ds := makeDataset(50)
	owner := make(map[string]string)
	for _, is := range ds.Issues {
		owner[is.Content] = is.Owner
	}
	s, err := NewSplit(seeded(5), ds, DefaultDivisor)
	if err != nil {
		t.Fatal(err)
	}
	for i, text := range s.TestTexts {
		if owner[text] != s.TestLabels[i] {
			t.Errorf("test %q labelled %q, want %q", text, s.TestLabels[i], owner[text])
		}
	}
	for i, text := range s.TrainTexts {
		if owner[text] != s.TrainLabels[i] {
			t.Errorf("train %q labelled %q, want %q", text, s.TrainLabels[i], owner[text])
		}
	}
}

func TestNewSplit_Degenerate(t *testing.T) {
	_, err := NewSplit(seeded(1), makeDataset(9), DefaultDivisor)
	if !errors.Is(err, ErrDegenerateSplit) {
		t.Errorf("err = %v, want ErrDegenerateSplit", err)
	}
}

func TestNewSplit_SameSeedSameSplit(t *testing.T) {
	ds := makeDataset(40)
	a, _ := NewSplit(seeded(42), ds, DefaultDivisor)
	b, _ := NewSplit(seeded(42), ds, DefaultDivisor)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same seed produced different splits:\n%s", diff)
	}
	c, _ := NewSplit(seeded(43), ds, DefaultDivisor)
	if cmp.Equal(a, c) {
		t.Error("different seeds produced identical splits")
	}
}

func TestRun_AveragesEveryTrial(t *testing.T) {
	values := []float64{0.2, 0.4, 0.6, 0.8}
	calls := 0
	job := Job{Name: "fake", Strategy: StrategyFunc(func(s Split, _ *rand.Rand) (rank.Triple, error) {
		v := values[calls]
		calls++
		return rank.Triple{MRR: v, Top1: v / 2, Top5: 1}, nil
	})}

	res, err := Run(job, makeDataset(20), RunConfig{Trials: 4, Rand: seeded(1)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 4 || len(res.Trials) != 4 {
		t.Fatalf("calls=%d trials=%d, want 4", calls, len(res.Trials))
	}
	if math.Abs(res.Mean.MRR-0.5) > 1e-12 || math.Abs(res.Mean.Top1-0.25) > 1e-12 || res.Mean.Top5 != 1 {
		t.Errorf("Mean = %+v", res.Mean)
	}
	if res.StdDev.Top5 != 0 {
		t.Errorf("StdDev.Top5 = %v, want 0 for constant trials", res.StdDev.Top5)
	}
	if want := math.Sqrt(0.2 / 3); math.Abs(res.StdDev.MRR-want) > 1e-9 {
		t.Errorf("StdDev.MRR = %v, want %v", res.StdDev.MRR, want)
	}
}

func TestRun_FailsFast(t *testing.T) {
	calls := 0
	boom := errors.New("fit failed")
	job := Job{Name: "flaky", Strategy: StrategyFunc(func(Split, *rand.Rand) (rank.Triple, error) {
		calls++
		if calls == 3 {
			return rank.Triple{}, boom
		}
		return rank.Triple{MRR: 1}, nil
	})}

	_, err := Run(job, makeDataset(20), RunConfig{Trials: 10, Rand: seeded(1)})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped fit error", err)
	}
	if calls != 3 {
		t.Errorf("strategy called %d times, want 3 (stop at first failure)", calls)
	}
}

func TestRun_ReproducibleWithSeed(t *testing.T) {
	job := Job{Name: "random", Strategy: StrategyFunc(func(s Split, rng *rand.Rand) (rank.Triple, error) {
		return rank.Triple{MRR: rng.Float64(), Top1: float64(len(s.TestTexts))}, nil
	})}
	ds := makeDataset(30)
	a, err := Run(job, ds, RunConfig{Trials: 5, Rand: seeded(7)})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Run(job, ds, RunConfig{Trials: 5, Rand: seeded(7)})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(a.Trials, b.Trials); diff != "" {
		t.Errorf("same seed gave different trials:\n%s", diff)
	}
}

func TestRun_RequiresRand(t *testing.T) {
	job := Job{Name: "x", Strategy: StrategyFunc(func(Split, *rand.Rand) (rank.Triple, error) {
		return rank.Triple{}, nil
	})}
	if _, err := Run(job, makeDataset(20), RunConfig{Trials: 1}); err == nil {
		t.Error("expected error without a random source")
	}
}

type recordingSink struct {
	events   []string
	beginErr error
}

func (r *recordingSink) Begin(ds corpus.Dataset) error {
	if r.beginErr != nil {
		return r.beginErr
	}
	r.events = append(r.events, "begin:"+ds.Label)
	return nil
}

func (r *recordingSink) JobDone(res *Result) error {
	r.events = append(r.events, "job:"+res.Job)
	return nil
}

func (r *recordingSink) End(runErr error) error {
	if runErr != nil {
		r.events = append(r.events, "end:failed")
		return nil
	}
	r.events = append(r.events, "end")
	return nil
}

func constant(v float64) Strategy {
	return StrategyFunc(func(Split, *rand.Rand) (rank.Triple, error) {
		return rank.Triple{MRR: v, Top1: v, Top5: v}, nil
	})
}

func TestBenchmark_RunsJobsInOrder(t *testing.T) {
	sink := &recordingSink{}
	b := &Benchmark{
		Jobs:   []Job{{"A", constant(0.1)}, {"B", constant(0.2)}},
		Config: RunConfig{Trials: 2, Rand: seeded(1)},
		Sinks:  []Sink{sink},
	}
	results, err := b.Run(makeDataset(20))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 2 || results[0].Job != "A" || results[1].Mean.MRR != 0.2 {
		t.Errorf("unexpected results: %+v", results)
	}
	want := []string{"begin:test", "job:A", "job:B", "end"}
	if diff := cmp.Diff(want, sink.events); diff != "" {
		t.Errorf("sink events mismatch (-want +got):\n%s", diff)
	}
}

func TestBenchmark_ErrorStillEnds(t *testing.T) {
	sink := &recordingSink{}
	failing := StrategyFunc(func(Split, *rand.Rand) (rank.Triple, error) {
		return rank.Triple{}, errors.New("only one class")
	})
	b := &Benchmark{
		Jobs:   []Job{{"A", constant(0.1)}, {"SVM", failing}, {"C", constant(0.3)}},
		Config: RunConfig{Trials: 1, Rand: seeded(1)},
		Sinks:  []Sink{sink},
	}
	results, err := b.Run(makeDataset(20))
	if err == nil {
		t.Fatal("expected error from failing job")
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want 1 completed job", len(results))
	}
	want := []string{"begin:test", "job:A", "end:failed"}
	if diff := cmp.Diff(want, sink.events); diff != "" {
		t.Errorf("sink events mismatch (-want +got):\n%s", diff)
	}
}

func TestBenchmark_BeginErrorEndsBegunSinks(t *testing.T) {
	first := &recordingSink{}
	broken := &recordingSink{beginErr: errors.New("database is locked")}
	last := &recordingSink{}
	b := &Benchmark{
		Jobs:   []Job{{"A", constant(0.1)}},
		Config: RunConfig{Trials: 1, Rand: seeded(1)},
		Sinks:  []Sink{first, broken, last},
	}
	if _, err := b.Run(makeDataset(20)); err == nil {
		t.Fatal("expected error from sink Begin")
	}
	if diff := cmp.Diff([]string{"begin:test", "end:failed"}, first.events); diff != "" {
		t.Errorf("first sink events mismatch (-want +got):\n%s", diff)
	}
	if len(broken.events) != 0 || len(last.events) != 0 {
		t.Errorf("sinks that never began got events: %v, %v", broken.events, last.events)
	}
}
