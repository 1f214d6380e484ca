// Package coerce turns tokenized rows with decorated numeric fields into
// labeled feature vectors.
package coerce

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/23skdu/proximity/internal/core"
	"github.com/23skdu/proximity/internal/metrics"
	"golang.org/x/sync/errgroup"
)

// Schema validation errors
var (
	ErrNoLabel         = errors.New("label column cannot be empty")
	ErrNoColumns       = errors.New("at least one feature column is required")
	ErrDuplicateColumn = errors.New("duplicate feature column")
	ErrLabelAsFeature  = errors.New("label column cannot be a feature column")
)

// Column is a named feature column and the decoration its raw values carry.
type Column struct {
	Name string
	Rule Rule
}

// Schema declares the label column and the ordered feature columns of an
// input table. The column order fixes the feature vector layout.
type Schema struct {
	Label   string
	Columns []Column
}

// Names returns the feature column names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Validate checks the schema for structural errors.
func (s Schema) Validate() error {
	if s.Label == "" {
		return ErrNoLabel
	}
	if len(s.Columns) == 0 {
		return ErrNoColumns
	}
	seen := make(map[string]struct{}, len(s.Columns))
	for _, c := range s.Columns {
		if c.Name == s.Label {
			return fmt.Errorf("%w: %q", ErrLabelAsFeature, c.Name)
		}
		if _, ok := seen[c.Name]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateColumn, c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	return nil
}

// Record coerces one raw row into a labeled feature vector.
func (s Schema) Record(row core.RawRecord) (core.Record, error) {
	label, ok := row.Field(s.Label)
	if !ok {
		return core.Record{}, core.NewMissingFieldError(row.Index, s.Label)
	}
	features := make([]float64, len(s.Columns))
	for k, c := range s.Columns {
		raw, ok := row.Field(c.Name)
		if !ok {
			return core.Record{}, core.NewMissingFieldError(row.Index, c.Name)
		}
		v, err := Coerce(raw, c.Rule)
		if err != nil {
			return core.Record{}, core.NewParseError(row.Index, label, c.Name, raw, err)
		}
		features[k] = v
	}
	return core.Record{Label: label, Features: features}, nil
}

// Records coerces every row independently on up to workers goroutines
// (GOMAXPROCS when workers <= 0). The result keeps input order. The first
// failing row aborts the whole set.
func Records(ctx context.Context, rows []core.RawRecord, schema Schema, workers int) (*core.RecordSet, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() {
		metrics.StageDurationSeconds.WithLabelValues("coerce").Observe(time.Since(start).Seconds())
	}()

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := &core.RecordSet{
		Columns: schema.Names(),
		Records: make([]core.Record, len(rows)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range rows {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec, err := schema.Record(rows[i])
			if err != nil {
				var pe *core.ErrParse
				if errors.As(err, &pe) {
					metrics.ParseErrorsTotal.WithLabelValues(pe.Column).Inc()
				}
				return err
			}
			out.Records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	metrics.RecordsCoercedTotal.Add(float64(len(rows)))
	return out, nil
}
