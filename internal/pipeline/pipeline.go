// Package pipeline runs coercion, normalization and matrix construction over
// one in-memory batch of raw records.
package pipeline

import (
	"context"
	"time"

	"github.com/23skdu/proximity/internal/coerce"
	"github.com/23skdu/proximity/internal/core"
	"github.com/23skdu/proximity/internal/distance"
	perrors "github.com/23skdu/proximity/internal/errors"
	"github.com/23skdu/proximity/internal/metrics"
	"github.com/23skdu/proximity/internal/normalize"
	"github.com/23skdu/proximity/internal/table"
	"github.com/rs/zerolog"
)

// Options configures a Pipeline.
type Options struct {
	Schema  coerce.Schema
	Policy  core.DegeneratePolicy
	Workers int
}

// Result is everything one run produced. Coerced and Normalized are
// independent copies; Matrix is immutable.
type Result struct {
	Coerced    *core.RecordSet
	Ranges     []normalize.Range
	Normalized *core.RecordSet
	Matrix     *distance.Matrix
}

// Pipeline is stateless between runs; one value may serve concurrent runs.
type Pipeline struct {
	opts   Options
	logger zerolog.Logger
}

// New validates opts and returns a Pipeline.
//
//nolint:gocritic // Logger passed by value for constructor simplicity
func New(opts Options, logger zerolog.Logger) (*Pipeline, error) {
	if err := opts.Schema.Validate(); err != nil {
		return nil, perrors.WrapConfigurationError(err, "pipeline", "invalid schema")
	}
	if opts.Policy == "" {
		opts.Policy = core.PolicyError
	}
	if !opts.Policy.Valid() {
		return nil, perrors.NewConfigurationError("pipeline", "unknown degenerate policy "+string(opts.Policy))
	}
	return &Pipeline{
		opts:   opts,
		logger: logger.With().Str("component", "pipeline").Logger(),
	}, nil
}

// Run computes the distance matrix of rows. Each stage completes over the
// whole batch before the next one starts; the first error aborts the run
// and no partial result is returned.
func (p *Pipeline) Run(ctx context.Context, rows []core.RawRecord) (*Result, error) {
	start := time.Now()
	res, err := p.run(ctx, rows)
	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues("error").Inc()
		p.logger.Error().Err(err).Int("rows", len(rows)).Msg("pipeline failed")
		return nil, err
	}
	metrics.PipelineRunsTotal.WithLabelValues("ok").Inc()
	p.logger.Info().
		Int("records", res.Matrix.Len()).
		Int("features", len(res.Normalized.Columns)).
		Dur("duration", time.Since(start)).
		Msg("distance matrix built")
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, rows []core.RawRecord) (*Result, error) {
	if len(rows) == 0 {
		return nil, perrors.WrapStage(core.NewEmptyInputError("pipeline"), "coerce")
	}

	coerced, err := coerce.Records(ctx, rows, p.opts.Schema, p.opts.Workers)
	if err != nil {
		return nil, perrors.WrapStage(err, "coerce")
	}
	p.logger.Debug().Int("records", coerced.Len()).Msg("records coerced")

	ranges, err := normalize.Ranges(ctx, coerced, coerced.Columns, p.opts.Workers)
	if err != nil {
		return nil, perrors.WrapStage(err, "normalize")
	}
	for _, r := range ranges {
		p.logger.Debug().Str("column", r.Column).Float64("min", r.Min).Float64("max", r.Max).Msg("column range")
		if r.Degenerate() && p.opts.Policy == core.PolicyZero && coerced.Len() > 1 {
			p.logger.Warn().Str("column", r.Column).Float64("value", r.Min).Msg("degenerate column mapped to zero")
		}
	}

	// A lone record has no pair whose distance depends on scaling, yet every
	// column reads as degenerate. Its features map to 0 under either policy.
	policy := p.opts.Policy
	if coerced.Len() == 1 {
		policy = core.PolicyZero
	}
	normalized, err := normalize.Apply(ctx, coerced, ranges, normalize.Options{
		Policy:  policy,
		Workers: p.opts.Workers,
	})
	if err != nil {
		return nil, perrors.WrapStage(err, "normalize")
	}

	m, err := distance.FromSet(ctx, normalized, p.opts.Workers)
	if err != nil {
		return nil, perrors.WrapStage(err, "matrix")
	}

	return &Result{
		Coerced:    coerced,
		Ranges:     ranges,
		Normalized: normalized,
		Matrix:     m,
	}, nil
}

// RunFile loads path and runs the pipeline over its rows.
func (p *Pipeline) RunFile(ctx context.Context, path string, format table.Format) (*Result, error) {
	rows, err := table.Load(ctx, path, format)
	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues("error").Inc()
		p.logger.Error().Err(err).Str("path", path).Msg("load failed")
		return nil, perrors.WrapStorageError(err, "load", path)
	}
	p.logger.Debug().Str("path", path).Int("rows", len(rows)).Msg("table loaded")
	return p.Run(ctx, rows)
}
