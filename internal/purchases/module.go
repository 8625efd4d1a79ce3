// Package purchases provides the purchase bounded context module.
package purchases

import (
	"datavend_backend/internal/catalog"
	"datavend_backend/internal/events"
	apphttp "datavend_backend/internal/http"
	"datavend_backend/internal/purchases/handler"
	"datavend_backend/internal/purchases/repository"
	"datavend_backend/internal/purchases/service"
	"datavend_backend/platform/logger"
	"datavend_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LegacyPurchasePath is where existing clients post purchases.
const LegacyPurchasePath = "/.netlify/functions/purchase"

// Module is the purchases bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the purchases module with all its dependencies.
func NewModule(
	pool *pgxpool.Pool,
	plans *catalog.Catalog,
	verifier service.Verifier,
	dispenser service.Dispenser,
	eventBus events.Bus,
	val *validator.Validator,
	log *logger.Logger,
	phoneRegion string,
) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, verifier, dispenser, plans, eventBus, log, phoneRegion)
	h := handler.New(svc, val, log)

	return &Module{handler: h, service: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "purchases"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts purchase routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	var limit []gin.HandlerFunc
	if ctx.PurchaseRateLimiter != nil {
		limit = append(limit, ctx.PurchaseRateLimiter.RateLimit())
	}

	m.handler.RegisterRoutes(ctx.V1, limit...)
	ctx.Engine.POST(LegacyPurchasePath, append(limit, m.handler.Purchase)...)

	if ctx.Admin != nil {
		m.handler.RegisterAdminRoutes(ctx.Admin)
	}
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
