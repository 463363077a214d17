// Package strategy holds the scorers the benchmark runs: two label-only
// baselines and a classifier pipeline that vectorises issue text and ranks
// owners by a trained model's scores.
package strategy

import (
	"math/rand/v2"
	"sort"

	"triagebench/internal/bench"
	"triagebench/internal/rank"
)

// Random assigns every known owner an independent uniform score per test
// issue. It is the floor any real scorer must beat.
type Random struct {
	Ranker rank.Ranker
}

// Evaluate implements bench.Strategy.
func (r Random) Evaluate(split bench.Split, rng *rand.Rand) (rank.Triple, error) {
	classes := distinct(split.TrainLabels)
	sort.Strings(classes)
	scores := make([][]float64, len(split.TestLabels))
	for i := range scores {
		row := make([]float64, len(classes))
		for j := range row {
			row[j] = rng.Float64()
		}
		scores[i] = row
	}
	return r.Ranker.Evaluate(scores, split.TestLabels, classes), nil
}

// ZeroR ranks owners by how many training issues they hold, busiest first,
// and gives every test issue that same ranking.
type ZeroR struct {
	Ranker rank.Ranker
}

// Evaluate implements bench.Strategy.
func (z ZeroR) Evaluate(split bench.Split, _ *rand.Rand) (rank.Triple, error) {
	classes := byFrequency(split.TrainLabels)
	row := make([]float64, len(classes))
	for i := range row {
		row[i] = -float64(i)
	}
	scores := make([][]float64, len(split.TestLabels))
	for i := range scores {
		scores[i] = row
	}
	return z.Ranker.Evaluate(scores, split.TestLabels, classes), nil
}

// distinct returns labels without repeats, in first-seen order.
func distinct(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	var out []string
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

// byFrequency orders labels by count descending. Equal counts keep
// first-seen order.
func byFrequency(labels []string) []string {
	counts := make(map[string]int)
	for _, l := range labels {
		counts[l]++
	}
	out := distinct(labels)
	sort.SliceStable(out, func(i, j int) bool { return counts[out[i]] > counts[out[j]] })
	return out
}
