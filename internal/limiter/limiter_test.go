package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestNewRateLimiter(t *testing.T) {
	l := NewRateLimiter(Config{RPS: 0})
	assert.False(t, l.Enabled())

	l = NewRateLimiter(Config{RPS: 10, Burst: 20})
	require.True(t, l.Enabled())
	assert.Equal(t, float64(10), float64(l.limiter.Limit()))
	assert.Equal(t, 20, l.limiter.Burst())

	l = NewRateLimiter(Config{RPS: 5})
	assert.Equal(t, 5, l.limiter.Burst())
}

func TestRateLimiter_Disabled(t *testing.T) {
	l := NewRateLimiter(Config{})
	for i := 0; i < 100; i++ {
		assert.NoError(t, l.Wait(context.Background()))
	}
}

func TestRateLimiter_UnaryInterceptor(t *testing.T) {
	l := NewRateLimiter(Config{RPS: 1, Burst: 1})
	interceptor := l.UnaryInterceptor()

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	}

	resp, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, handler)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)

	// The bucket is empty; a short deadline cannot be met.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = interceptor(ctx, nil, &grpc.UnaryServerInfo{}, handler)
	require.Error(t, err)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

type fakeStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f *fakeStream) Context() context.Context { return f.ctx }

func TestRateLimiter_StreamInterceptor(t *testing.T) {
	l := NewRateLimiter(Config{RPS: 1, Burst: 1})
	interceptor := l.StreamInterceptor()

	calls := 0
	handler := func(srv interface{}, stream grpc.ServerStream) error {
		calls++
		return nil
	}

	require.NoError(t, interceptor(nil, &fakeStream{ctx: context.Background()}, &grpc.StreamServerInfo{}, handler))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := interceptor(nil, &fakeStream{ctx: ctx}, &grpc.StreamServerInfo{}, handler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
	assert.Equal(t, 1, calls)
}

func TestRateLimiter_CanceledContext(t *testing.T) {
	l := NewRateLimiter(Config{RPS: 1, Burst: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Wait(ctx)
	assert.Equal(t, codes.Canceled, status.Code(err))
}

func TestRateLimiter_ServerOptions(t *testing.T) {
	assert.Len(t, NewRateLimiter(Config{RPS: 1}).ServerOptions(), 2)
}
