package features

import "sort"

// Vector is a sparse row: Indices are strictly increasing column numbers,
// Values the matching non-zero entries.
type Vector struct {
	Indices []int
	Values  []float64
}

// Matrix is a list of sparse rows sharing a column count.
type Matrix struct {
	Rows []Vector
	Cols int
}

// Len is the number of rows.
func (m Matrix) Len() int { return len(m.Rows) }

func fromMap(m map[int]float64) Vector {
	idx := make([]int, 0, len(m))
	for i := range m {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	vals := make([]float64, len(idx))
	for k, i := range idx {
		vals[k] = m[i]
	}
	return Vector{Indices: idx, Values: vals}
}

// NewVector builds a Vector from a column -> value map, dropping zeros.
func NewVector(m map[int]float64) Vector {
	clean := make(map[int]float64, len(m))
	for i, v := range m {
		if v != 0 {
			clean[i] = v
		}
	}
	return fromMap(clean)
}

// Dot is the inner product of two sparse vectors.
func (v Vector) Dot(o Vector) float64 {
	sum := 0.0
	i, j := 0, 0
	for i < len(v.Indices) && j < len(o.Indices) {
		switch {
		case v.Indices[i] == o.Indices[j]:
			sum += v.Values[i] * o.Values[j]
			i++
			j++
		case v.Indices[i] < o.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// DotDense is the inner product with a dense vector of at least the
// vector's highest column + 1 entries.
func (v Vector) DotDense(w []float64) float64 {
	sum := 0.0
	for k, i := range v.Indices {
		sum += v.Values[k] * w[i]
	}
	return sum
}

// AddTo adds scale*v into the dense vector w.
func (v Vector) AddTo(w []float64, scale float64) {
	for k, i := range v.Indices {
		w[i] += scale * v.Values[k]
	}
}

// Scale multiplies every value in place.
func (v Vector) Scale(f float64) {
	for k := range v.Values {
		v.Values[k] *= f
	}
}

// SquaredNorm is v·v.
func (v Vector) SquaredNorm() float64 {
	sum := 0.0
	for _, x := range v.Values {
		sum += x * x
	}
	return sum
}
