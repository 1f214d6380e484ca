// Package flight serves distance matrices over Arrow Flight.
package flight

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/23skdu/proximity/internal/breaker"
	"github.com/23skdu/proximity/internal/cache"
	"github.com/23skdu/proximity/internal/core"
	"github.com/23skdu/proximity/internal/distance"
	"github.com/23skdu/proximity/internal/export"
	"github.com/23skdu/proximity/internal/metrics"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Source computes the matrix of one dataset.
type Source func(ctx context.Context) (*distance.Matrix, error)

// Config configures a Server.
type Config struct {
	Chunks ChunkConfig
	// CacheCapacity bounds the number of cached matrices.
	CacheCapacity int
	// CacheTTL expires cached matrices. Zero keeps them until Refresh.
	CacheTTL time.Duration
	// BreakerFailures consecutive source failures open a dataset's breaker.
	BreakerFailures uint32
	// BreakerCooldown is how long an open breaker refuses recomputation.
	BreakerCooldown time.Duration
}

// DefaultConfig returns the server defaults.
func DefaultConfig() Config {
	return Config{
		Chunks:          DefaultChunkConfig(),
		CacheCapacity:   16,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	}
}

// Server implements flight.FlightServer. A dataset's matrix is computed on
// first request and cached until Refresh or expiry; tickets are dataset
// names. Each dataset has its own circuit breaker around its source.
type Server struct {
	flight.BaseFlightServer

	mem    memory.Allocator
	logger zerolog.Logger
	cfg    Config
	cache  *cache.Cache[*distance.Matrix]

	mu       sync.RWMutex
	sources  map[string]Source
	breakers map[string]*breaker.Breaker
}

// NewServer creates a server with no datasets.
//
//nolint:gocritic // Logger passed by value for constructor simplicity
func NewServer(mem memory.Allocator, logger zerolog.Logger, cfg Config) *Server {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &Server{
		mem:      mem,
		logger:   logger.With().Str("component", "flight").Logger(),
		cfg:      cfg,
		cache:    cache.New[*distance.Matrix](cfg.CacheCapacity, cfg.CacheTTL),
		sources:  make(map[string]Source),
		breakers: make(map[string]*breaker.Breaker),
	}
}

// Register adds or replaces a dataset and drops any cached matrix for it.
func (s *Server) Register(name string, src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[name] = src
	s.breakers[name] = breaker.New(breaker.Settings{
		Name:     name,
		Failures: s.cfg.BreakerFailures,
		Cooldown: s.cfg.BreakerCooldown,
		OnStateChange: func(name string, from, to breaker.State) {
			s.logger.Warn().Str("dataset", name).Stringer("from", from).Stringer("to", to).Msg("source breaker changed state")
		},
	})
	s.cache.Delete(name)
}

// Refresh drops the cached matrix of name and closes its breaker so the
// next request recomputes it.
func (s *Server) Refresh(name string) {
	s.mu.RLock()
	b := s.breakers[name]
	s.mu.RUnlock()
	if b != nil {
		b.Reset()
	}
	s.cache.Delete(name)
}

// Datasets returns the registered dataset names in sorted order.
func (s *Server) Datasets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.sources))
	for name := range s.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Matrix returns the matrix of name, computing it if it is not cached.
// Concurrent first requests may compute it more than once; the last result
// wins and every caller gets a complete matrix.
func (s *Server) Matrix(ctx context.Context, name string) (*distance.Matrix, error) {
	if m, ok := s.cache.Get(name); ok {
		return m, nil
	}
	s.mu.RLock()
	src, ok := s.sources[name]
	b := s.breakers[name]
	s.mu.RUnlock()
	if !ok {
		return nil, status.Errorf(codes.NotFound, "dataset %q not found", name)
	}

	m, err := breaker.Execute(b, func() (*distance.Matrix, error) { return src(ctx) })
	if errors.Is(err, breaker.ErrOpen) {
		return nil, status.Errorf(codes.Unavailable, "dataset %q: %v", name, err)
	}
	if err != nil {
		return nil, toStatus(err)
	}

	s.mu.RLock()
	_, still := s.sources[name]
	s.mu.RUnlock()
	if still {
		s.cache.Put(name, m)
	}
	return m, nil
}

// DoGet streams the matrix named by the ticket as Arrow record batches, one
// row per record, in chunks chosen by the server's ChunkConfig.
func (s *Server) DoGet(tkt *flight.Ticket, stream flight.FlightService_DoGetServer) (err error) {
	start := time.Now()
	defer func() { observe("DoGet", start, err) }()

	name := string(tkt.GetTicket())
	ctx := stream.Context()
	m, err := s.Matrix(ctx, name)
	if err != nil {
		s.logger.Warn().Err(err).Str("dataset", name).Msg("DoGet failed")
		return err
	}

	rec := export.Record(s.mem, m)
	defer rec.Release()

	w := flight.NewRecordWriter(stream, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(s.mem))
	defer func() { _ = w.Close() }()

	total := rec.NumRows()
	strategy := s.cfg.Chunks.New()
	for off := int64(0); off < total; {
		if err := ctx.Err(); err != nil {
			return status.FromContextError(err).Err()
		}
		end := min(off+int64(strategy.NextChunkSize()), total)
		slice := rec.NewSlice(off, end)
		err := w.Write(slice)
		slice.Release()
		if err != nil {
			return err
		}
		metrics.FlightRowsSent.Add(float64(end - off))
		off = end
	}

	s.logger.Debug().Str("dataset", name).Int64("rows", total).Msg("DoGet completed")
	return nil
}

// GetSchema returns the Arrow schema of the matrix named by the descriptor's
// first path element.
func (s *Server) GetSchema(ctx context.Context, desc *flight.FlightDescriptor) (res *flight.SchemaResult, err error) {
	start := time.Now()
	defer func() { observe("GetSchema", start, err) }()

	name, err := descriptorName(desc)
	if err != nil {
		return nil, err
	}
	m, err := s.Matrix(ctx, name)
	if err != nil {
		return nil, err
	}
	return &flight.SchemaResult{Schema: flight.SerializeSchema(export.Schema(m), s.mem)}, nil
}

// ListFlights lists every registered dataset. The criteria expression is
// ignored.
func (s *Server) ListFlights(_ *flight.Criteria, stream flight.FlightService_ListFlightsServer) (err error) {
	start := time.Now()
	defer func() { observe("ListFlights", start, err) }()

	for _, name := range s.Datasets() {
		info := &flight.FlightInfo{
			FlightDescriptor: &flight.FlightDescriptor{Type: flight.DescriptorPATH, Path: []string{name}},
			Endpoint:         []*flight.FlightEndpoint{{Ticket: &flight.Ticket{Ticket: []byte(name)}}},
			TotalRecords:     -1,
			TotalBytes:       -1,
		}
		if err := stream.Send(info); err != nil {
			return err
		}
	}
	return nil
}

func descriptorName(desc *flight.FlightDescriptor) (string, error) {
	if desc == nil {
		return "", status.Error(codes.InvalidArgument, "missing flight descriptor")
	}
	switch desc.GetType() {
	case flight.DescriptorPATH:
		if len(desc.GetPath()) == 0 {
			return "", status.Error(codes.InvalidArgument, "empty descriptor path")
		}
		return desc.GetPath()[0], nil
	case flight.DescriptorCMD:
		return string(desc.GetCmd()), nil
	default:
		return "", status.Error(codes.InvalidArgument, "unsupported descriptor type")
	}
}

// toStatus maps pipeline failures onto gRPC codes.
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	var (
		degen *core.ErrDegenerateColumn
		parse *core.ErrParse
		miss  *core.ErrMissingField
		empty *core.ErrEmptyInput
		dim   *core.ErrDimensionMismatch
	)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.As(err, &degen):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.As(err, &parse), errors.As(err, &miss), errors.As(err, &empty), errors.As(err, &dim):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func observe(method string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.FlightOperationsTotal.WithLabelValues(method, result).Inc()
	metrics.FlightDurationSeconds.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
