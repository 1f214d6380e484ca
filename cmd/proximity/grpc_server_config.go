package main

import (
	"errors"

	pflight "github.com/23skdu/proximity/internal/flight"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

// BuildGRPCServerOptions returns the grpc.ServerOption slice for the Flight
// server: keepalive, stream concurrency and message size limits.
func (c *Config) BuildGRPCServerOptions() []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    c.KeepAliveTime,
			Timeout: c.KeepAliveTimeout,
		}),
		grpc.MaxConcurrentStreams(c.GRPCMaxConcurrentStreams),
		grpc.MaxRecvMsgSize(c.GRPCMaxRecvMsgSize),
		grpc.MaxSendMsgSize(c.GRPCMaxSendMsgSize),
	}
}

// FlightConfig returns the Flight server settings: chunking, matrix cache
// and source breaker.
func (c *Config) FlightConfig() pflight.Config {
	return pflight.Config{
		Chunks: pflight.ChunkConfig{
			MinRows: c.ChunkMinRows,
			MaxRows: c.ChunkMaxRows,
			Growth:  2.0,
		},
		CacheCapacity:   c.CacheCapacity,
		CacheTTL:        c.CacheTTL,
		BreakerFailures: c.BreakerFailures,
		BreakerCooldown: c.BreakerCooldown,
	}
}

// ValidateGRPCConfig checks if the gRPC configuration is valid.
func (c *Config) ValidateGRPCConfig() error {
	if c.KeepAliveTime <= 0 {
		return ErrInvalidKeepAliveTime
	}
	if c.GRPCMaxRecvMsgSize <= 0 {
		return ErrInvalidMaxRecvMsgSize
	}
	if c.GRPCMaxConcurrentStreams == 0 {
		return errors.New("grpc_max_concurrent_streams must be > 0")
	}
	if c.GRPCMaxSendMsgSize <= 0 {
		return errors.New("grpc_max_send_msg_size must be > 0")
	}
	if c.ChunkMinRows <= 0 || c.ChunkMaxRows < c.ChunkMinRows {
		return errors.New("chunk_min_rows must be > 0 and <= chunk_max_rows")
	}
	if c.CacheCapacity <= 0 {
		return errors.New("cache_capacity must be > 0")
	}
	if c.CacheTTL < 0 || c.BreakerCooldown < 0 {
		return errors.New("cache_ttl and breaker_cooldown cannot be negative")
	}
	return nil
}
