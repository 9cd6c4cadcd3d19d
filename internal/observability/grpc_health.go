package observability

import (
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer publishes per-capability serving status over the standard
// gRPC health protocol, for orchestrators that probe with grpc_health_probe.
type HealthServer struct {
	server *grpc.Server
	health *health.Server
}

// NewHealthServer creates a gRPC server with the health service registered
func NewHealthServer() *HealthServer {
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &HealthServer{server: srv, health: hs}
}

// SetServing marks a capability (or "" for the whole gateway) as serving or not
func (h *HealthServer) SetServing(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus(service, status)
}

// Serve listens on addr and blocks until Stop is called
func (h *HealthServer) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for grpc health on %s: %w", addr, err)
	}
	return h.ServeListener(lis)
}

// ServeListener serves on an existing listener
func (h *HealthServer) ServeListener(lis net.Listener) error {
	return h.server.Serve(lis)
}

// Stop marks everything not serving and stops the server
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.server.GracefulStop()
}
