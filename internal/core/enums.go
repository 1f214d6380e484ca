package core

// DegeneratePolicy selects how min-max normalization treats a column whose
// minimum equals its maximum.
type DegeneratePolicy string

const (
	// PolicyError fails normalization with ErrDegenerateColumn.
	PolicyError DegeneratePolicy = "error"
	// PolicyZero maps every value of a degenerate column to 0.
	PolicyZero DegeneratePolicy = "zero"
)

// Valid reports whether p is a known policy.
func (p DegeneratePolicy) Valid() bool {
	return p == PolicyError || p == PolicyZero
}
