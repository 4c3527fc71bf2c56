package server

import "google.golang.org/grpc"

// Registrar is a common interface for all gRPC service registrars.
// *grpc.Server satisfies grpc.ServiceRegistrar.
type Registrar interface {
	Register(s grpc.ServiceRegistrar)
}
