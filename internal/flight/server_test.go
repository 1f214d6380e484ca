package flight

import (
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/23skdu/proximity/internal/core"
	"github.com/23skdu/proximity/internal/distance"
	"github.com/23skdu/proximity/internal/export"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

const testBufSize = 1 << 20

func lineMatrix(t *testing.T, n int) *distance.Matrix {
	t.Helper()
	recs := make([]core.Record, n)
	for i := range recs {
		recs[i] = core.Record{Label: string(rune('a' + i)), Features: []float64{float64(i) / float64(max(n-1, 1))}}
	}
	m, err := distance.Build(context.Background(), recs, 1)
	require.NoError(t, err)
	return m
}

func setupServer(t *testing.T, srv *Server) flight.Client {
	t.Helper()
	lis := bufconn.Listen(testBufSize)
	s := grpc.NewServer()
	flight.RegisterFlightServiceServer(s, srv)
	go func() {
		_ = s.Serve(lis)
	}()

	dialer := func(ctx context.Context, address string) (net.Conn, error) {
		return lis.Dial()
	}
	client, err := flight.NewClientWithMiddleware(
		"passthrough:///bufnet",
		nil,
		nil,
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
		s.Stop()
		_ = lis.Close()
	})
	return client
}

func TestServer_MatrixCachesUntilRefresh(t *testing.T) {
	var calls atomic.Int32
	srv := NewServer(nil, zerolog.Nop(), DefaultConfig())
	srv.Register("segments", func(ctx context.Context) (*distance.Matrix, error) {
		calls.Add(1)
		return lineMatrix(t, 3), nil
	})

	for i := 0; i < 3; i++ {
		m, err := srv.Matrix(context.Background(), "segments")
		require.NoError(t, err)
		assert.Equal(t, 3, m.Len())
	}
	assert.Equal(t, int32(1), calls.Load())

	srv.Refresh("segments")
	_, err := srv.Matrix(context.Background(), "segments")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestServer_MatrixNotFound(t *testing.T) {
	srv := NewServer(nil, zerolog.Nop(), DefaultConfig())
	_, err := srv.Matrix(context.Background(), "nope")
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestServer_SourceErrorNotCached(t *testing.T) {
	var calls atomic.Int32
	srv := NewServer(nil, zerolog.Nop(), DefaultConfig())
	srv.Register("flat", func(ctx context.Context) (*distance.Matrix, error) {
		calls.Add(1)
		return nil, core.NewDegenerateColumnError("Age", 30)
	})

	_, err := srv.Matrix(context.Background(), "flat")
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	_, err = srv.Matrix(context.Background(), "flat")
	assert.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestServer_Datasets(t *testing.T) {
	srv := NewServer(nil, zerolog.Nop(), DefaultConfig())
	src := func(ctx context.Context) (*distance.Matrix, error) { return lineMatrix(t, 2), nil }
	srv.Register("b", src)
	srv.Register("a", src)
	assert.Equal(t, []string{"a", "b"}, srv.Datasets())
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"Canceled", context.Canceled, codes.Canceled},
		{"Deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"Degenerate", core.NewDegenerateColumnError("x", 1), codes.FailedPrecondition},
		{"Parse", core.NewParseError(0, "a", "x", "?", errors.New("bad")), codes.InvalidArgument},
		{"Missing", core.NewMissingFieldError(0, "x"), codes.InvalidArgument},
		{"Empty", core.NewEmptyInputError("pipeline"), codes.InvalidArgument},
		{"Dimension", core.NewDimensionMismatchError(1, "b", 2, 1), codes.InvalidArgument},
		{"Other", errors.New("boom"), codes.Internal},
		{"Status", status.Error(codes.Unavailable, "down"), codes.Unavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, status.Code(toStatus(tt.err)))
		})
	}
}

func TestDescriptorName(t *testing.T) {
	name, err := descriptorName(&flight.FlightDescriptor{Type: flight.DescriptorPATH, Path: []string{"segments", "x"}})
	require.NoError(t, err)
	assert.Equal(t, "segments", name)

	name, err = descriptorName(&flight.FlightDescriptor{Type: flight.DescriptorCMD, Cmd: []byte("segments")})
	require.NoError(t, err)
	assert.Equal(t, "segments", name)

	_, err = descriptorName(nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	_, err = descriptorName(&flight.FlightDescriptor{Type: flight.DescriptorPATH})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestServer_DoGetStreamsChunks(t *testing.T) {
	srv := NewServer(nil, zerolog.Nop(), Config{Chunks: ChunkConfig{MinRows: 2, MaxRows: 4, Growth: 2}})
	want := lineMatrix(t, 9)
	srv.Register("line", func(ctx context.Context) (*distance.Matrix, error) { return want, nil })
	client := setupServer(t, srv)

	stream, err := client.DoGet(context.Background(), &flight.Ticket{Ticket: []byte("line")})
	require.NoError(t, err)
	r, err := flight.NewRecordReader(stream, ipc.WithAllocator(memory.NewGoAllocator()))
	require.NoError(t, err)
	defer r.Release()

	var (
		sizes []int64
		recs  []arrow.Record
	)
	for r.Next() {
		rec := r.Record()
		rec.Retain()
		recs = append(recs, rec)
		sizes = append(sizes, rec.NumRows())
	}
	require.NoError(t, r.Err())
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()

	assert.Equal(t, []int64{2, 4, 3}, sizes)
	got, err := export.FromRecords(recs)
	require.NoError(t, err)
	assert.Equal(t, want.Labels(), got.Labels())
	assert.Equal(t, want.Rows(), got.Rows())
}

func TestServer_DoGetUnknownDataset(t *testing.T) {
	client := setupServer(t, NewServer(nil, zerolog.Nop(), DefaultConfig()))

	stream, err := client.DoGet(context.Background(), &flight.Ticket{Ticket: []byte("missing")})
	require.NoError(t, err)
	_, err = stream.Recv()
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestServer_GetSchemaAndListFlights(t *testing.T) {
	srv := NewServer(nil, zerolog.Nop(), DefaultConfig())
	srv.Register("line", func(ctx context.Context) (*distance.Matrix, error) { return lineMatrix(t, 3), nil })
	client := setupServer(t, srv)

	res, err := client.GetSchema(context.Background(), &flight.FlightDescriptor{Type: flight.DescriptorPATH, Path: []string{"line"}})
	require.NoError(t, err)
	schema, err := flight.DeserializeSchema(res.GetSchema(), memory.NewGoAllocator())
	require.NoError(t, err)
	assert.Equal(t, []string{"label", "a", "b", "c"}, fieldNames(schema))

	lf, err := client.ListFlights(context.Background(), &flight.Criteria{})
	require.NoError(t, err)
	var names []string
	for {
		info, err := lf.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		names = append(names, string(info.GetEndpoint()[0].GetTicket().GetTicket()))
	}
	assert.Equal(t, []string{"line"}, names)
}

func fieldNames(s *arrow.Schema) []string {
	out := make([]string, s.NumFields())
	for i := range out {
		out[i] = s.Field(i).Name
	}
	return out
}

func TestServer_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	srv := NewServer(nil, zerolog.Nop(), Config{BreakerFailures: 2, BreakerCooldown: time.Hour})
	srv.Register("broken", func(ctx context.Context) (*distance.Matrix, error) {
		calls.Add(1)
		return nil, core.NewEmptyInputError("pipeline")
	})

	for i := 0; i < 2; i++ {
		_, err := srv.Matrix(context.Background(), "broken")
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	}
	_, err := srv.Matrix(context.Background(), "broken")
	assert.Equal(t, codes.Unavailable, status.Code(err))
	assert.Equal(t, int32(2), calls.Load())

	srv.Refresh("broken")
	_, err = srv.Matrix(context.Background(), "broken")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestServer_CanceledCallersDoNotOpenBreaker(t *testing.T) {
	srv := NewServer(nil, zerolog.Nop(), Config{BreakerFailures: 2, BreakerCooldown: time.Hour})
	srv.Register("d", func(ctx context.Context) (*distance.Matrix, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return lineMatrix(t, 3), nil
	})

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		_, err := srv.Matrix(canceled, "d")
		assert.Equal(t, codes.Canceled, status.Code(err))
	}

	m, err := srv.Matrix(context.Background(), "d")
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())
}

func TestServer_RegisterReplacesCachedMatrix(t *testing.T) {
	srv := NewServer(nil, zerolog.Nop(), DefaultConfig())
	srv.Register("line", func(ctx context.Context) (*distance.Matrix, error) { return lineMatrix(t, 2), nil })
	m, err := srv.Matrix(context.Background(), "line")
	require.NoError(t, err)
	require.Equal(t, 2, m.Len())

	srv.Register("line", func(ctx context.Context) (*distance.Matrix, error) { return lineMatrix(t, 5), nil })
	m, err = srv.Matrix(context.Background(), "line")
	require.NoError(t, err)
	assert.Equal(t, 5, m.Len())
}
