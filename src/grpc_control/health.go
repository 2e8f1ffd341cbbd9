package grpc_control

import (
	"fmt"
	"net"

	"capture-tool/src/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ChartServicePrefix namespaces per-chart health service names.
const ChartServicePrefix = "chart/"

// ServiceName returns the health service name of a signal's chart.
func ServiceName(signal string) string {
	return ChartServicePrefix + signal
}

// -----------------------------------------------------------------------------

// HealthReporter mirrors chart readiness into the standard gRPC health
// service. The empty service name reports the session as a whole.
type HealthReporter struct {
	health *health.Server
	Logger *logger.Logger
}

func NewHealthReporter(log *logger.Logger) *HealthReporter {
	if log == nil {
		log = logger.Nop()
	}
	return &HealthReporter{health: health.NewServer(), Logger: log}
}

// -----------------------------------------------------------------------------

func (h *HealthReporter) ChartScheduled(signal string) {
	h.health.SetServingStatus(ServiceName(signal), healthpb.HealthCheckResponse_SERVICE_UNKNOWN)
}

func (h *HealthReporter) ChartReady(signal string) {
	h.health.SetServingStatus(ServiceName(signal), healthpb.HealthCheckResponse_SERVING)
}

func (h *HealthReporter) ChartFailed(signal string, err error) {
	h.Logger.Warning("Chart %s unhealthy: %v", signal, err)
	h.health.SetServingStatus(ServiceName(signal), healthpb.HealthCheckResponse_NOT_SERVING)
}

func (h *HealthReporter) ChartRemoved(signal string) {
	h.health.SetServingStatus(ServiceName(signal), healthpb.HealthCheckResponse_NOT_SERVING)
}

// -----------------------------------------------------------------------------

// Server returns the underlying health implementation.
func (h *HealthReporter) Server() *health.Server {
	return h.health
}

// Shutdown marks every service NOT_SERVING; later updates are ignored.
func (h *HealthReporter) Shutdown() {
	h.health.Shutdown()
}

// -----------------------------------------------------------------------------

// ControlServer is the session's gRPC endpoint.
type ControlServer struct {
	grpc     *grpc.Server
	reporter *HealthReporter
	Logger   *logger.Logger
}

func NewControlServer(reporter *HealthReporter, log *logger.Logger) *ControlServer {
	if log == nil {
		log = logger.Nop()
	}
	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, reporter.Server())
	return &ControlServer{grpc: s, reporter: reporter, Logger: log}
}

// -----------------------------------------------------------------------------

// Listen opens host:port and serves until Stop.
func (s *ControlServer) Listen(host string, port int) error {
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return fmt.Errorf("failed to listen for gRPC: %w", err)
	}
	s.Logger.Info("Starting gRPC control server on %s", lis.Addr())
	return s.Serve(lis)
}

// Serve blocks serving lis.
func (s *ControlServer) Serve(lis net.Listener) error {
	s.reporter.Server().SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	if err := s.grpc.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

// Stop reports NOT_SERVING then drains active RPCs.
func (s *ControlServer) Stop() {
	s.reporter.Shutdown()
	s.grpc.GracefulStop()
}
