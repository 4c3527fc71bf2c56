package consent

import (
	"google.golang.org/grpc"

	"github.com/oggyb/muzz-consent/internal/app"
)

// Registrar ties the Consent service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the Consent service
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the Consent service implementation to the gRPC server
func (r *Registrar) Register(s grpc.ServiceRegistrar) {
	RegisterConsentServer(s, NewConsentService(r.appCtx))
}
