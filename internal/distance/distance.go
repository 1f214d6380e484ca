// Package distance builds labeled pairwise Euclidean distance matrices over
// normalized feature vectors.
package distance

import (
	"context"
	"runtime"
	"time"

	"github.com/23skdu/proximity/internal/core"
	"github.com/23skdu/proximity/internal/metrics"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Euclidean returns sqrt(sum((a[k]-b[k])^2)).
// Assumes vectors are the same length (caller's responsibility).
func Euclidean(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

// Build computes the n×n distance matrix of records. Only the upper triangle
// is computed, one row per task on up to workers goroutines (GOMAXPROCS when
// workers <= 0); the lower triangle is its mirror and the diagonal is 0.
//
// Build fails with ErrEmptyInput for zero records and with
// ErrDimensionMismatch when any record's vector length differs from the
// first record's.
func Build(ctx context.Context, records []core.Record, workers int) (*Matrix, error) {
	n := len(records)
	if n == 0 {
		return nil, core.NewEmptyInputError("distance matrix")
	}
	dim := records[0].Dim()
	for i, r := range records {
		if r.Dim() != dim {
			return nil, core.NewDimensionMismatchError(i, r.Label, dim, r.Dim())
		}
	}

	start := time.Now()
	defer func() {
		metrics.StageDurationSeconds.WithLabelValues("matrix").Observe(time.Since(start).Seconds())
	}()

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	labels := make([]string, n)
	for i, r := range records {
		labels[i] = r.Label
	}

	// Each task writes a disjoint set of upper-triangle cells.
	sym := mat.NewSymDense(n, nil)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n-1; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a := records[i].Features
			for j := i + 1; j < n; j++ {
				sym.SetSym(i, j, Euclidean(a, records[j].Features))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	metrics.MatrixCellsComputedTotal.Add(float64(n * (n - 1) / 2))
	metrics.MatrixRecords.Set(float64(n))
	return &Matrix{labels: labels, sym: sym}, nil
}

// FromSet builds the matrix of a record set.
func FromSet(ctx context.Context, set *core.RecordSet, workers int) (*Matrix, error) {
	if set == nil {
		return nil, core.NewEmptyInputError("distance matrix")
	}
	return Build(ctx, set.Records, workers)
}
