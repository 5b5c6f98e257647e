package health

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is reported alongside the overall ("") service.
const ServiceName = "shophours"

type check struct {
	name string
	fn   func(ctx context.Context) error
}

// GRPCHealth serves grpc.health.v1 with a status derived from
// dependency checks re-run on an interval.
type GRPCHealth struct {
	server   *grpc.Server
	health   *health.Server
	interval time.Duration
	logger   *zerolog.Logger

	mu     sync.Mutex
	checks []check
}

func NewGRPCHealth(interval time.Duration, logger *zerolog.Logger) *GRPCHealth {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	h := &GRPCHealth{
		server:   grpc.NewServer(),
		health:   health.NewServer(),
		interval: interval,
		logger:   logger,
	}
	healthpb.RegisterHealthServer(h.server, h.health)
	return h
}

// AddCheck registers a dependency; any failing check marks the service
// NOT_SERVING.
func (h *GRPCHealth) AddCheck(name string, fn func(ctx context.Context) error) {
	h.mu.Lock()
	h.checks = append(h.checks, check{name: name, fn: fn})
	h.mu.Unlock()
}

// Refresh runs every check once and publishes the result.
func (h *GRPCHealth) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	h.mu.Lock()
	checks := append([]check(nil), h.checks...)
	h.mu.Unlock()

	status := healthpb.HealthCheckResponse_SERVING
	for _, c := range checks {
		ctxCheck, cancel := context.WithTimeout(ctx, time.Second)
		err := c.fn(ctxCheck)
		cancel()
		if err != nil {
			h.logger.Warn().Err(err).Str("check", c.name).Msg("health check failed")
			status = healthpb.HealthCheckResponse_NOT_SERVING
			break
		}
	}

	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
	return status
}

// Serve accepts connections on lis until ctx is done.
func (h *GRPCHealth) Serve(ctx context.Context, lis net.Listener) error {
	h.Refresh(ctx)

	go func() {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				h.health.Shutdown()
				h.server.GracefulStop()
				return
			case <-ticker.C:
				h.Refresh(ctx)
			}
		}
	}()

	h.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC health service listening")
	return h.server.Serve(lis)
}
