// Package client fetches distance matrices from a proximity Flight server.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/23skdu/proximity/internal/distance"
	"github.com/23skdu/proximity/internal/export"
	"github.com/23skdu/proximity/internal/resilience"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client is a thin wrapper around flight.Client that decodes matrix streams.
type Client struct {
	conn    flight.Client
	mem     memory.Allocator
	timeout time.Duration
	retry   *resilience.RetryPolicy
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds every call that is not already bounded by its context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithAllocator sets the allocator used to decode record batches.
func WithAllocator(mem memory.Allocator) Option {
	return func(c *Client) { c.mem = mem }
}

// WithRetry replaces the retry policy applied to transient failures. A nil
// policy disables retries.
func WithRetry(p *resilience.RetryPolicy) Option {
	return func(c *Client) {
		if p == nil {
			p = &resilience.RetryPolicy{MaxAttempts: 1}
		}
		c.retry = p
	}
}

// New dials addr without transport security.
func New(addr string, opts ...Option) (*Client, error) {
	conn, err := flight.NewClientWithMiddleware(addr, nil, nil,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(1024*1024*100), // 100MB
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	c := &Client{
		conn:    conn,
		mem:     memory.NewGoAllocator(),
		timeout: 30 * time.Second,
		retry:   resilience.DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// Matrix fetches and decodes the distance matrix of dataset.
func (c *Client) Matrix(ctx context.Context, dataset string) (*distance.Matrix, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	m, err := resilience.Retry(ctx, c.retry, func() (*distance.Matrix, error) {
		return c.fetchMatrix(ctx, dataset)
	})
	return m, translateError(err)
}

func (c *Client) fetchMatrix(ctx context.Context, dataset string) (*distance.Matrix, error) {
	stream, err := c.conn.DoGet(ctx, &flight.Ticket{Ticket: []byte(dataset)})
	if err != nil {
		return nil, err
	}
	r, err := flight.NewRecordReader(stream, ipc.WithAllocator(c.mem))
	if err != nil {
		return nil, err
	}
	defer r.Release()

	var recs []arrow.Record
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()
	for r.Next() {
		rec := r.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := r.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return export.FromRecords(recs)
}

// Datasets lists the dataset names the server offers.
func (c *Client) Datasets(ctx context.Context) ([]string, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	names, err := resilience.Retry(ctx, c.retry, func() ([]string, error) {
		return c.listDatasets(ctx)
	})
	return names, translateError(err)
}

func (c *Client) listDatasets(ctx context.Context) ([]string, error) {
	stream, err := c.conn.ListFlights(ctx, &flight.Criteria{})
	if err != nil {
		return nil, err
	}
	var names []string
	for {
		info, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return names, nil
		}
		if err != nil {
			return nil, err
		}
		if path := info.GetFlightDescriptor().GetPath(); len(path) > 0 {
			names = append(names, path[0])
		}
	}
}

// Schema returns the Arrow schema of dataset's matrix.
func (c *Client) Schema(ctx context.Context, dataset string) (*arrow.Schema, error) {
	ctx, cancel := c.bound(ctx)
	defer cancel()

	res, err := resilience.Retry(ctx, c.retry, func() (*flight.SchemaResult, error) {
		return c.conn.GetSchema(ctx, &flight.FlightDescriptor{
			Type: flight.DescriptorPATH,
			Path: []string{dataset},
		})
	})
	if err != nil {
		return nil, translateError(err)
	}
	return flight.DeserializeSchema(res.GetSchema(), c.mem)
}
