package server

import (
	"context"
	"log/slog"
	"time"

	grpc3 "github.com/mama165/sdk-go/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	ServiceName           = "bridge.Hub"
	DefaultHealthInterval = time.Second
)

// ServingProbe is implemented by the hub.
type ServingProbe interface {
	Serving() bool
}

// HealthServer reports the hub state through grpc.health.v1.Health, both for
// the empty service name and for ServiceName.
type HealthServer struct {
	health   *health.Server
	probe    ServingProbe
	interval time.Duration
	log      *slog.Logger
}

func NewHealthServer(log *slog.Logger, probe ServingProbe, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	return &HealthServer{health: health.NewServer(), probe: probe, interval: interval, log: log}
}

// NewGRPCServer builds a server with request logging.
func NewGRPCServer(log *slog.Logger) *grpc.Server {
	return grpc.NewServer(grpc.ChainUnaryInterceptor(grpc3.UnaryLoggingInterceptor(log)))
}

func (s *HealthServer) Register(server *grpc.Server) {
	healthpb.RegisterHealthServer(server, s.health)
}

// Refresh copies the probe state into the health service.
func (s *HealthServer) Refresh() healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s.probe.Serving() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

func (s *HealthServer) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.Status, nil
}

// Run refreshes the status until ctx is done, then reports NOT_SERVING for good.
func (s *HealthServer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	last := s.Refresh()
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return nil
		case <-ticker.C:
			if status := s.Refresh(); status != last {
				s.log.Info("Health status changed", "status", status.String())
				last = status
			}
		}
	}
}
