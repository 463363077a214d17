// Package features turns raw issue text into sparse bag-of-words vectors.
//
// A Vectorizer is fit once on training text. Its vocabulary is frozen after
// Fit: Transform ignores tokens it has not seen, so test text can never leak
// into the feature space.
package features

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// Norm selects how raw term counts are normalised per document.
type Norm string

const (
	// NormL2 scales each row to unit Euclidean length.
	NormL2 Norm = "l2"
	// NormL1 divides counts by the number of in-vocabulary tokens.
	NormL1 Norm = "l1"
	// NormNone keeps raw counts.
	NormNone Norm = "none"
)

// ParseNorm validates a normalisation name.
func ParseNorm(s string) (Norm, error) {
	switch Norm(s) {
	case "":
		return NormL2, nil
	case NormL2, NormL1, NormNone:
		return Norm(s), nil
	}
	return "", fmt.Errorf("unknown norm %q (want l2, l1, none)", s)
}

// tokenPattern keeps maximal runs of two or more Unicode word characters.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Tokenize lowercases s and splits it into word tokens of length >= 2.
func Tokenize(s string) []string {
	return tokenPattern.FindAllString(strings.ToLower(s), -1)
}

// Options configures a Vectorizer.
type Options struct {
	Norm Norm
}

// Vectorizer maps documents onto a fixed vocabulary.
type Vectorizer struct {
	vocab map[string]int
	terms []string
	norm  Norm
}

// Fit builds a vocabulary from docs plus any auxiliary documents. Auxiliary
// documents only widen the vocabulary; they are never transformed as rows.
// Columns are assigned in sorted term order.
func Fit(opts Options, docs []string, aux ...string) *Vectorizer {
	seen := make(map[string]struct{})
	add := func(text string) {
		for _, tok := range Tokenize(text) {
			seen[tok] = struct{}{}
		}
	}
	for _, d := range docs {
		add(d)
	}
	for _, d := range aux {
		add(d)
	}

	terms := make([]string, 0, len(seen))
	for tok := range seen {
		terms = append(terms, tok)
	}
	sort.Strings(terms)

	vocab := make(map[string]int, len(terms))
	for i, tok := range terms {
		vocab[tok] = i
	}
	norm := opts.Norm
	if norm == "" {
		norm = NormL2
	}
	return &Vectorizer{vocab: vocab, terms: terms, norm: norm}
}

// Dim is the width of every vector this Vectorizer produces.
func (v *Vectorizer) Dim() int { return len(v.terms) }

// Terms returns the vocabulary in column order.
func (v *Vectorizer) Terms() []string { return v.terms }

// Transform maps docs to normalised term-frequency vectors. It does not
// modify the vocabulary.
func (v *Vectorizer) Transform(docs []string) Matrix {
	rows := make([]Vector, len(docs))
	for i, d := range docs {
		rows[i] = v.transformOne(d)
	}
	return Matrix{Rows: rows, Cols: len(v.terms)}
}

func (v *Vectorizer) transformOne(doc string) Vector {
	counts := make(map[int]float64)
	for _, tok := range Tokenize(doc) {
		if idx, ok := v.vocab[tok]; ok {
			counts[idx]++
		}
	}
	vec := fromMap(counts)

	switch v.norm {
	case NormL2:
		if n := math.Sqrt(vec.Dot(vec)); n > 0 {
			vec.Scale(1 / n)
		}
	case NormL1:
		total := 0.0
		for _, c := range vec.Values {
			total += c
		}
		if total > 0 {
			vec.Scale(1 / total)
		}
	}
	return vec
}
