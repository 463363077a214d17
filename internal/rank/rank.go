// Package rank turns per-class score rows into ranking-quality figures:
// the rank of the true label, mean reciprocal rank and top-N accuracy.
//
// A score row is aligned column-for-column with a class ordering produced by
// the scorer. Higher scores rank first. A true label that the scorer never
// learned ranks one past the last class, so it counts as a miss without
// being an error.
package rank

import (
	"cmp"
	"fmt"
	"math"
)

// TieBreak decides the order of classes whose scores compare equal.
type TieBreak int

const (
	// ClassOrder keeps tied classes in the order the scorer listed them.
	ClassOrder TieBreak = iota
	// NameDescending orders tied classes by name, highest first. This matches
	// a reverse sort over (score, name) pairs.
	NameDescending
)

// String returns the config spelling of the tie-break.
func (t TieBreak) String() string {
	switch t {
	case NameDescending:
		return "name-desc"
	default:
		return "class-order"
	}
}

// ParseTieBreak parses "class-order" or "name-desc".
func ParseTieBreak(s string) (TieBreak, error) {
	switch s {
	case "", "class-order":
		return ClassOrder, nil
	case "name-desc":
		return NameDescending, nil
	}
	return ClassOrder, fmt.Errorf("unknown tie-break %q (want class-order or name-desc)", s)
}

// Triple is the evaluation result for one scored test set.
type Triple struct {
	MRR  float64 `json:"mrr"`
	Top1 float64 `json:"top1"`
	Top5 float64 `json:"top5"`
}

// Ranker computes ranks under a fixed tie-break rule. The zero value uses
// ClassOrder.
type Ranker struct {
	TieBreak TieBreak
}

// Rank returns the 1-based position of correct when classes are sorted by
// descending score. It returns len(classes)+1 when correct is not a class.
// Scores are compared with cmp.Compare, so NaN ranks below every number.
// It panics if len(scores) != len(classes).
func (r Ranker) Rank(scores []float64, correct string, classes []string) int {
	if len(scores) != len(classes) {
		panic(fmt.Sprintf("rank: score row has %d columns, class list has %d", len(scores), len(classes)))
	}
	idx := -1
	for i, name := range classes {
		if name == correct {
			idx = i
			break
		}
	}
	if idx < 0 {
		return len(classes) + 1
	}

	target := scores[idx]
	ahead := 0
	for j, s := range scores {
		if j == idx {
			continue
		}
		switch c := cmp.Compare(s, target); {
		case c > 0:
			ahead++
		case c == 0 && r.beforeOnTie(j, idx, classes):
			ahead++
		}
	}
	return ahead + 1
}

func (r Ranker) beforeOnTie(j, idx int, classes []string) bool {
	if r.TieBreak == NameDescending {
		if classes[j] != classes[idx] {
			return classes[j] > classes[idx]
		}
	}
	return j < idx
}

// TopN reports whether correct ranks within the first n classes. It is
// always false when correct is not a class.
func (r Ranker) TopN(scores []float64, correct string, classes []string, n int) bool {
	return r.Rank(scores, correct, classes) <= min(n, len(classes))
}

// MeanReciprocalRank averages 1/rank over the rows of matrix. An empty
// matrix yields NaN.
func (r Ranker) MeanReciprocalRank(matrix [][]float64, labels []string, classes []string) float64 {
	ranks := r.ranks(matrix, labels, classes)
	sum := 0.0
	for _, rk := range ranks {
		sum += 1.0 / float64(rk)
	}
	return meanOf(sum, len(ranks))
}

// TopNAccuracy is the fraction of rows whose label ranks within the first n.
// An empty matrix yields NaN.
func (r Ranker) TopNAccuracy(matrix [][]float64, labels []string, classes []string, n int) float64 {
	ranks := r.ranks(matrix, labels, classes)
	return topNFraction(ranks, n, len(classes))
}

// Evaluate returns MRR, top-1 and top-5 accuracy, ranking each row once.
func (r Ranker) Evaluate(matrix [][]float64, labels []string, classes []string) Triple {
	ranks := r.ranks(matrix, labels, classes)
	sum := 0.0
	for _, rk := range ranks {
		sum += 1.0 / float64(rk)
	}
	return Triple{
		MRR:  meanOf(sum, len(ranks)),
		Top1: topNFraction(ranks, 1, len(classes)),
		Top5: topNFraction(ranks, 5, len(classes)),
	}
}

func (r Ranker) ranks(matrix [][]float64, labels []string, classes []string) []int {
	if len(matrix) != len(labels) {
		panic(fmt.Sprintf("rank: score matrix has %d rows, label list has %d", len(matrix), len(labels)))
	}
	out := make([]int, len(matrix))
	for i, row := range matrix {
		out[i] = r.Rank(row, labels[i], classes)
	}
	return out
}

func topNFraction(ranks []int, n, numClasses int) float64 {
	limit := min(n, numClasses)
	hits := 0
	for _, rk := range ranks {
		if rk <= limit {
			hits++
		}
	}
	return meanOf(float64(hits), len(ranks))
}

func meanOf(sum float64, n int) float64 {
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

var defaultRanker Ranker

// Rank ranks with the ClassOrder tie-break. See Ranker.Rank.
func Rank(scores []float64, correct string, classes []string) int {
	return defaultRanker.Rank(scores, correct, classes)
}

// TopN is Ranker.TopN with the ClassOrder tie-break.
func TopN(scores []float64, correct string, classes []string, n int) bool {
	return defaultRanker.TopN(scores, correct, classes, n)
}

// MeanReciprocalRank is Ranker.MeanReciprocalRank with the ClassOrder tie-break.
func MeanReciprocalRank(matrix [][]float64, labels []string, classes []string) float64 {
	return defaultRanker.MeanReciprocalRank(matrix, labels, classes)
}

// TopNAccuracy is Ranker.TopNAccuracy with the ClassOrder tie-break.
func TopNAccuracy(matrix [][]float64, labels []string, classes []string, n int) float64 {
	return defaultRanker.TopNAccuracy(matrix, labels, classes, n)
}

// Evaluate is Ranker.Evaluate with the ClassOrder tie-break.
func Evaluate(matrix [][]float64, labels []string, classes []string) Triple {
	return defaultRanker.Evaluate(matrix, labels, classes)
}
