package server

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type probe struct {
	serving atomic.Bool
}

func (p *probe) Serving() bool { return p.serving.Load() }

func TestHealthServer_FollowsProbe(t *testing.T) {
	req := require.New(t)
	p := &probe{}
	s := NewHealthServer(logs.GetLoggerFromLevel(slog.LevelDebug), p, time.Hour)

	// Given the hub is not running
	req.Equal(healthpb.HealthCheckResponse_NOT_SERVING, s.Refresh())
	status, err := s.Check(context.Background(), ServiceName)
	req.NoError(err)
	req.Equal(healthpb.HealthCheckResponse_NOT_SERVING, status)

	// When it starts
	p.serving.Store(true)
	s.Refresh()

	// Then both service names report SERVING
	status, err = s.Check(context.Background(), "")
	req.NoError(err)
	req.Equal(healthpb.HealthCheckResponse_SERVING, status)
	status, err = s.Check(context.Background(), ServiceName)
	req.NoError(err)
	req.Equal(healthpb.HealthCheckResponse_SERVING, status)
}

func TestHealthServer_ShutdownOnCancel(t *testing.T) {
	req := require.New(t)
	p := &probe{}
	p.serving.Store(true)
	s := NewHealthServer(logs.GetLoggerFromLevel(slog.LevelDebug), p, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	req.Eventually(func() bool {
		status, err := s.Check(context.Background(), ServiceName)
		return err == nil && status == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 5*time.Millisecond)

	// When the worker stops
	cancel()
	req.NoError(<-done)

	// Then the service reports NOT_SERVING even though the probe is still up
	status, err := s.Check(context.Background(), ServiceName)
	req.NoError(err)
	req.Equal(healthpb.HealthCheckResponse_NOT_SERVING, status)
}
