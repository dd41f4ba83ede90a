package handler

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/inventory-reservation/internal/resilience"
)

// PaymentHealthService is the gRPC health service name whose status follows
// the payment breaker.
const PaymentHealthService = "inventory.Payment"

// HealthReporter serves grpc.health.v1 for the process and the payment
// dependency.
type HealthReporter struct {
	server *health.Server
}

func NewHealthReporter() *HealthReporter {
	s := health.NewServer()
	s.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.SetServingStatus(PaymentHealthService, healthpb.HealthCheckResponse_SERVING)
	return &HealthReporter{server: s}
}

func (h *HealthReporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
}

// OnPaymentState is registered as a breaker listener. Half-open still serves
// since a trial call is being let through.
func (h *HealthReporter) OnPaymentState(_, to resilience.State) {
	status := healthpb.HealthCheckResponse_SERVING
	if to == resilience.StateOpen {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.server.SetServingStatus(PaymentHealthService, status)
}

// Shutdown marks every service NOT_SERVING ahead of a graceful stop.
func (h *HealthReporter) Shutdown() {
	h.server.Shutdown()
}
