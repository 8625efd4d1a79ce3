// Package webhook provides the payment provider webhook listener module.
package webhook

import (
	"datavend_backend/internal/events"
	apphttp "datavend_backend/internal/http"
	"datavend_backend/platform/logger"
)

// LegacyWebhookPath is the delivery URL registered with the provider before /api/v1.
const LegacyWebhookPath = "/.netlify/functions/webhook"

// Module is the webhook bounded context module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates and initializes the webhook module. deduper and archiver are optional.
func NewModule(auth Authenticator, deduper Deduper, archiver Archiver, eventBus events.Bus, log *logger.Logger) *Module {
	service := NewService(deduper, archiver, eventBus, log)
	return &Module{handler: NewHandler(auth, service, log)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts webhook routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.POST("/webhook/flutterwave", m.handler.HandleFlutterwave)
	ctx.Engine.POST(LegacyWebhookPath, m.handler.HandleFlutterwave)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
