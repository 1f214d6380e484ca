package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/23skdu/proximity/internal/basket"
	"github.com/23skdu/proximity/internal/core"
	"github.com/23skdu/proximity/internal/distance"
	"github.com/23skdu/proximity/internal/export"
	pflight "github.com/23skdu/proximity/internal/flight"
	"github.com/23skdu/proximity/internal/limiter"
	"github.com/23skdu/proximity/internal/logging"
	"github.com/23skdu/proximity/internal/metrics"
	"github.com/23skdu/proximity/internal/pipeline"
	"github.com/23skdu/proximity/internal/table"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	mode := flag.String("mode", "", "Override PROXIMITY_MODE (matrix, baskets, serve)")
	envFile := flag.String("env", ".env", "Optional env file loaded before the environment")
	flag.Parse()

	cfg, err := LoadConfig(*envFile)
	if err == nil && *mode != "" {
		cfg.Mode = *mode
		err = ValidateConfig(&cfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	logger, err := logging.NewLogger(logging.Config{Format: cfg.LogFormat, Level: cfg.LogLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid logger configuration: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, &cfg, os.Stdout, logger); err != nil {
		logger.Error().Err(err).Str("mode", cfg.Mode).Msg("proximity failed")
		stop()
		os.Exit(1)
	}
}

// run executes the configured mode. Matrix output goes to stdout unless an
// output path is configured.
//
//nolint:gocritic // Logger passed by value for simplicity
func run(ctx context.Context, cfg *Config, stdout io.Writer, logger zerolog.Logger) error {
	switch cfg.Mode {
	case ModeMatrix:
		return runMatrix(ctx, cfg, stdout, logger)
	case ModeBaskets:
		return runBaskets(ctx, cfg, logger)
	case ModeServe:
		return runServe(ctx, cfg, logger)
	default:
		return ErrInvalidMode
	}
}

//nolint:gocritic // Logger passed by value for simplicity
func newPipeline(cfg *Config, logger zerolog.Logger) (*pipeline.Pipeline, error) {
	schema, err := cfg.Schema()
	if err != nil {
		return nil, err
	}
	return pipeline.New(pipeline.Options{
		Schema:  schema,
		Policy:  core.DegeneratePolicy(cfg.DegeneratePolicy),
		Workers: cfg.Workers,
	}, logger)
}

//nolint:gocritic // Logger passed by value for simplicity
func runMatrix(ctx context.Context, cfg *Config, stdout io.Writer, logger zerolog.Logger) error {
	p, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}
	res, err := p.RunFile(ctx, cfg.Input, table.Format(cfg.InputFormat))
	if err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		metrics.StageDurationSeconds.WithLabelValues("export").Observe(time.Since(start).Seconds())
	}()

	if cfg.Output == "" {
		return writeMatrix(stdout, cfg, res.Matrix)
	}
	err = export.WriteFile(cfg.Output, func(w io.Writer) error {
		return writeMatrix(w, cfg, res.Matrix)
	})
	if err != nil {
		return fmt.Errorf("write %s output: %w", cfg.OutputFormat, err)
	}
	logger.Info().Str("path", cfg.Output).Str("format", cfg.OutputFormat).Int("records", res.Matrix.Len()).Msg("matrix written")
	return nil
}

func writeMatrix(w io.Writer, cfg *Config, m *distance.Matrix) error {
	switch cfg.OutputFormat {
	case OutputCSV:
		return export.CSV(w, m, cfg.Precision, ',')
	case OutputParquet:
		return export.Parquet(w, m)
	case OutputPairs:
		return export.Pairs(w, m, cfg.Precision)
	default:
		return export.Text(w, m, cfg.Precision)
	}
}

//nolint:gocritic // Logger passed by value for simplicity
func runBaskets(ctx context.Context, cfg *Config, logger zerolog.Logger) error {
	logger.Info().Str("path", cfg.BasketInput).Msg("reading transactions")
	rows, err := table.Load(ctx, cfg.BasketInput, table.FormatAuto)
	if err != nil {
		return err
	}
	txs, err := basket.Transactions(rows, cfg.BasketNumberColumn, cfg.BasketItemColumn)
	if err != nil {
		return err
	}
	baskets := basket.Group(txs)
	if err := basket.WriteFile(cfg.BasketOutput, baskets); err != nil {
		return err
	}
	logger.Info().
		Int("transactions", len(txs)).
		Int("baskets", len(baskets)).
		Str("path", cfg.BasketOutput).
		Msg("transactions written")
	return nil
}

//nolint:gocritic // Logger passed by value for simplicity
func runServe(ctx context.Context, cfg *Config, logger zerolog.Logger) error {
	p, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}

	srv := pflight.NewServer(memory.NewGoAllocator(), logger, cfg.FlightConfig())
	srv.Register(cfg.Dataset, func(ctx context.Context) (*distance.Matrix, error) {
		res, err := p.RunFile(ctx, cfg.Input, table.Format(cfg.InputFormat))
		if err != nil {
			return nil, err
		}
		return res.Matrix, nil
	})

	rl := limiter.NewRateLimiter(cfg.Config)
	opts := append(cfg.BuildGRPCServerOptions(), rl.ServerOptions()...)
	grpcServer := grpc.NewServer(opts...)
	flight.RegisterFlightServiceServer(grpcServer, srv)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info().Str("address", cfg.MetricsAddr).Msg("Starting metrics server")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("address", lis.Addr().String()).
			Str("dataset", cfg.Dataset).
			Bool("rate_limited", rl.Enabled()).
			Msg("Flight server starting")
		serveErr <- grpcServer.Serve(lis)
	}()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	select {
	case err = <-serveErr:
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		healthServer.Shutdown()
		grpcServer.GracefulStop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
	return err
}
