package distance

import (
	"fmt"
	"slices"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Matrix is an immutable, symmetric, zero-diagonal distance matrix whose rows
// and columns are both indexed by record label in input order. Labels need
// not be unique; Lookup resolves to the first match.
type Matrix struct {
	labels []string
	sym    *mat.SymDense
}

// NewMatrix wraps precomputed values. values must be n×n with n == len(labels);
// only the upper triangle is read. It is used to rebuild matrices received
// over the wire.
func NewMatrix(labels []string, values [][]float64) (*Matrix, error) {
	n := len(labels)
	if len(values) != n {
		return nil, fmt.Errorf("matrix has %d rows, want %d", len(values), n)
	}
	if n == 0 {
		return &Matrix{}, nil
	}
	sym := mat.NewSymDense(n, nil)
	for i, row := range values {
		if len(row) != n {
			return nil, fmt.Errorf("matrix row %d has %d columns, want %d", i, len(row), n)
		}
		for j := i + 1; j < n; j++ {
			sym.SetSym(i, j, row[j])
		}
	}
	return &Matrix{labels: slices.Clone(labels), sym: sym}, nil
}

// Len returns the number of records n.
func (m *Matrix) Len() int {
	return len(m.labels)
}

// Labels returns a copy of the axis labels.
func (m *Matrix) Labels() []string {
	return slices.Clone(m.labels)
}

// Label returns the label of row i.
func (m *Matrix) Label(i int) string {
	return m.labels[i]
}

// At returns the distance between records i and j.
func (m *Matrix) At(i, j int) float64 {
	if i == j {
		return 0
	}
	return m.sym.At(i, j)
}

// Distance is At; it lets a Matrix serve wherever a Len/Distance pair is expected.
func (m *Matrix) Distance(i, j int) float64 {
	return m.At(i, j)
}

// Row returns a copy of row i.
func (m *Matrix) Row(i int) []float64 {
	out := make([]float64, m.Len())
	for j := range out {
		out[j] = m.At(i, j)
	}
	return out
}

// Rows returns a copy of the full matrix as row slices.
func (m *Matrix) Rows() [][]float64 {
	out := make([][]float64, m.Len())
	for i := range out {
		out[i] = m.Row(i)
	}
	return out
}

// Lookup returns the distance between the first records labeled a and b.
func (m *Matrix) Lookup(a, b string) (float64, bool) {
	i := slices.Index(m.labels, a)
	j := slices.Index(m.labels, b)
	if i < 0 || j < 0 {
		return 0, false
	}
	return m.At(i, j), true
}

// Dense returns a copy of the matrix as a gonum dense matrix.
func (m *Matrix) Dense() *mat.Dense {
	n := m.Len()
	if n == 0 {
		return &mat.Dense{}
	}
	d := mat.NewDense(n, n, nil)
	d.Copy(m.sym)
	return d
}

// Pair is one unordered pair of distinct records.
type Pair struct {
	I, J     int
	A, B     string
	Distance float64
}

// Pairs returns all n(n-1)/2 unordered pairs sorted by ascending distance,
// ties broken by (I, J).
func (m *Matrix) Pairs() []Pair {
	n := m.Len()
	out := make([]Pair, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			out = append(out, Pair{I: i, J: j, A: m.labels[i], B: m.labels[j], Distance: m.At(i, j)})
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Distance < out[b].Distance
	})
	return out
}

// Nearest returns the closest other record to record i. ok is false when
// the matrix holds a single record.
func (m *Matrix) Nearest(i int) (j int, d float64, ok bool) {
	j = -1
	for k := 0; k < m.Len(); k++ {
		if k == i {
			continue
		}
		if dk := m.At(i, k); j < 0 || dk < d {
			j, d = k, dk
		}
	}
	return j, d, j >= 0
}
