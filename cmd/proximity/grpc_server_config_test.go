package main

import (
	"testing"
	"time"
)

func TestBuildGRPCServerOptions(t *testing.T) {
	cfg := DefaultConfig()
	opts := cfg.BuildGRPCServerOptions()
	if len(opts) != 4 {
		t.Errorf("BuildGRPCServerOptions() returned %d options, want 4", len(opts))
	}
}

func TestGRPCServerConfigEnvVars(t *testing.T) {
	t.Setenv("PROXIMITY_MODE", "serve")
	t.Setenv("PROXIMITY_GRPC_MAX_RECV_MSG_SIZE", "33554432")
	t.Setenv("PROXIMITY_GRPC_MAX_SEND_MSG_SIZE", "16777216")
	t.Setenv("PROXIMITY_GRPC_MAX_CONCURRENT_STREAMS", "500")
	t.Setenv("PROXIMITY_KEEPALIVE_TIME", "30m")

	cfg, err := LoadConfig(t.TempDir() + "/missing.env")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.GRPCMaxRecvMsgSize != 33554432 {
		t.Errorf("GRPCMaxRecvMsgSize = %d, want 33554432", cfg.GRPCMaxRecvMsgSize)
	}
	if cfg.GRPCMaxSendMsgSize != 16777216 {
		t.Errorf("GRPCMaxSendMsgSize = %d, want 16777216", cfg.GRPCMaxSendMsgSize)
	}
	if cfg.GRPCMaxConcurrentStreams != 500 {
		t.Errorf("GRPCMaxConcurrentStreams = %d, want 500", cfg.GRPCMaxConcurrentStreams)
	}
	if cfg.KeepAliveTime != 30*time.Minute {
		t.Errorf("KeepAliveTime = %v, want 30m", cfg.KeepAliveTime)
	}
}

func TestValidateGRPCConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"Defaults", func(c *Config) {}, false},
		{"ZeroKeepAlive", func(c *Config) { c.KeepAliveTime = 0 }, true},
		{"ZeroRecv", func(c *Config) { c.GRPCMaxRecvMsgSize = 0 }, true},
		{"ZeroSend", func(c *Config) { c.GRPCMaxSendMsgSize = 0 }, true},
		{"ZeroStreams", func(c *Config) { c.GRPCMaxConcurrentStreams = 0 }, true},
		{"ZeroChunk", func(c *Config) { c.ChunkMinRows = 0 }, true},
		{"InvertedChunk", func(c *Config) { c.ChunkMinRows = 100; c.ChunkMaxRows = 10 }, true},
		{"ZeroCache", func(c *Config) { c.CacheCapacity = 0 }, true},
		{"NegativeTTL", func(c *Config) { c.CacheTTL = -time.Second }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.ValidateGRPCConfig()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateGRPCConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFlightConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheTTL = time.Minute
	fc := cfg.FlightConfig()
	if fc.Chunks.MinRows != 64 || fc.Chunks.MaxRows != 4096 {
		t.Errorf("Chunks = %+v, want 64..4096", fc.Chunks)
	}
	if fc.CacheCapacity != 16 || fc.CacheTTL != time.Minute {
		t.Errorf("cache = %d/%v, want 16/1m", fc.CacheCapacity, fc.CacheTTL)
	}
	if fc.BreakerFailures != 5 || fc.BreakerCooldown != 30*time.Second {
		t.Errorf("breaker = %d/%v, want 5/30s", fc.BreakerFailures, fc.BreakerCooldown)
	}
}
