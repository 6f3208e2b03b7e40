package main

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/askcv/askcv/engine/index"
)

// chatService is the service name reported by the gRPC health server.
const chatService = "askcv.Chat"

// newHealthServer returns a gRPC server exposing grpc.health.v1, SERVING
// once h holds an index.
func newHealthServer(h *index.Handle) (*grpc.Server, *health.Server) {
	hs := health.NewServer()
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if h.Ready() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	hs.SetServingStatus("", status)
	hs.SetServingStatus(chatService, status)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	return gs, hs
}
