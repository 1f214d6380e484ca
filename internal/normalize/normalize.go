// Package normalize rescales feature columns of a record set to [0, 1] with
// min-max normalization.
package normalize

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/23skdu/proximity/internal/core"
	"github.com/23skdu/proximity/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Range is the observed [Min, Max] of one feature column.
type Range struct {
	Column string
	Min    float64
	Max    float64
}

// Span returns Max - Min.
func (r Range) Span() float64 {
	return r.Max - r.Min
}

// Degenerate reports whether every value of the column is identical.
func (r Range) Degenerate() bool {
	return r.Min == r.Max
}

// Scale maps v into [0, 1] relative to the range. The minimum maps to
// exactly 0 and the maximum to exactly 1. Scale must not be called on a
// degenerate range.
func (r Range) Scale(v float64) float64 {
	switch v {
	case r.Min:
		return 0
	case r.Max:
		return 1
	}
	s := (v - r.Min) / r.Span()
	// rounding can push an interior value a hair outside the interval
	return min(max(s, 0), 1)
}

// Options configures MinMax.
type Options struct {
	// Policy decides what happens to degenerate columns. Empty means PolicyError.
	Policy core.DegeneratePolicy
	// Workers bounds the parallel column passes. <= 0 means GOMAXPROCS.
	Workers int
}

func (o Options) workers() int {
	if o.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return o.Workers
}

func (o Options) policy() core.DegeneratePolicy {
	if o.Policy == "" {
		return core.PolicyError
	}
	return o.Policy
}

// Ranges reduces every named column to its [min, max] in parallel. An empty
// set has no ranges and yields ErrEmptyInput.
func Ranges(ctx context.Context, set *core.RecordSet, columns []string, workers int) ([]Range, error) {
	if set.Len() == 0 {
		return nil, core.NewEmptyInputError("normalize")
	}
	idx, err := resolve(set, columns)
	if err != nil {
		return nil, err
	}
	if err := checkDims(set); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	ranges := make([]Range, len(columns))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for c, k := range idx {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			lo, hi := set.Records[0].Features[k], set.Records[0].Features[k]
			for _, r := range set.Records[1:] {
				v := r.Features[k]
				lo = min(lo, v)
				hi = max(hi, v)
			}
			ranges[c] = Range{Column: columns[c], Min: lo, Max: hi}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return ranges, nil
}

// MinMax returns a new record set in which every named column is rescaled
// with (v - min) / (max - min). Columns not named are copied unchanged.
// All ranges are reduced before any value is rescaled.
func MinMax(ctx context.Context, set *core.RecordSet, columns []string, opts Options) (*core.RecordSet, error) {
	ranges, err := Ranges(ctx, set, columns, opts.workers())
	if err != nil {
		return nil, err
	}
	return Apply(ctx, set, ranges, opts)
}

// Apply rescales the columns named by ranges using those precomputed ranges
// and returns a new record set. Degenerate ranges follow opts.Policy.
func Apply(ctx context.Context, set *core.RecordSet, ranges []Range, opts Options) (*core.RecordSet, error) {
	start := time.Now()
	defer func() {
		metrics.StageDurationSeconds.WithLabelValues("normalize").Observe(time.Since(start).Seconds())
	}()

	policy := opts.policy()
	if !policy.Valid() {
		return nil, core.NewInvalidArgumentError("policy", string(policy))
	}
	if set.Len() == 0 {
		return nil, core.NewEmptyInputError("normalize")
	}

	columns := make([]string, len(ranges))
	for c, r := range ranges {
		columns[c] = r.Column
	}
	idx, err := resolve(set, columns)
	if err != nil {
		return nil, err
	}
	if err := checkDims(set); err != nil {
		return nil, err
	}

	for _, r := range ranges {
		if !r.Degenerate() {
			continue
		}
		metrics.DegenerateColumnsTotal.WithLabelValues(string(policy)).Inc()
		if policy == core.PolicyError {
			return nil, core.NewDegenerateColumnError(r.Column, r.Min)
		}
	}

	out := set.Clone()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())
	for c, k := range idx {
		r := ranges[c]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := range out.Records {
				if r.Degenerate() {
					out.Records[i].Features[k] = 0
					continue
				}
				out.Records[i].Features[k] = r.Scale(set.Records[i].Features[k])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// All normalizes every column of the set.
func All(ctx context.Context, set *core.RecordSet, opts Options) (*core.RecordSet, error) {
	if set == nil {
		return nil, core.NewEmptyInputError("normalize")
	}
	return MinMax(ctx, set, set.Columns, opts)
}

func resolve(set *core.RecordSet, columns []string) ([]int, error) {
	idx := make([]int, len(columns))
	seen := make(map[int]struct{}, len(columns))
	for c, name := range columns {
		k := set.ColumnIndex(name)
		if k < 0 {
			return nil, core.NewUnknownColumnError(name)
		}
		if _, dup := seen[k]; dup {
			return nil, core.NewInvalidArgumentError("columns", fmt.Sprintf("column %q listed twice", name))
		}
		seen[k] = struct{}{}
		idx[c] = k
	}
	return idx, nil
}

func checkDims(set *core.RecordSet) error {
	want := len(set.Columns)
	for i, r := range set.Records {
		if r.Dim() != want {
			return core.NewDimensionMismatchError(i, r.Label, want, r.Dim())
		}
	}
	return nil
}
