package handler

import (
	"context"
	"net/http"

	"datavend_backend/internal/purchases/service"
	"datavend_backend/internal/purchases/transport"
	"datavend_backend/platform/apperr"
	"datavend_backend/platform/httpkit"
	"datavend_backend/platform/logger"
	"datavend_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const msgInvalidRequest = "Invalid request body"

// PurchaseService is the workflow behind the purchase endpoints.
type PurchaseService interface {
	Purchase(ctx context.Context, req transport.PurchaseRequest) (string, error)
	GetTransaction(ctx context.Context, reference string) (transport.TransactionResponse, error)
}

// Handler handles HTTP requests for purchases.
type Handler struct {
	svc PurchaseService
	val *validator.Validator
	log *logger.Logger
}

// New creates a new purchases handler.
func New(svc PurchaseService, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{svc: svc, val: val, log: log}
}

// RegisterRoutes registers the public purchase route.
func (h *Handler) RegisterRoutes(rg gin.IRoutes, middleware ...gin.HandlerFunc) {
	rg.POST("/purchase", append(middleware, h.Purchase)...)
}

// RegisterAdminRoutes registers the ledger lookup.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("/transactions/:reference", h.GetTransaction)
}

func (h *Handler) Purchase(c *gin.Context) {
	var req transport.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		err = apperr.Internal(msgInvalidRequest, err)
		h.logFailure(c, err)
		httpkit.HandleError(c, err)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.HandleError(c, service.ErrMissingDetails)
		return
	}

	message, err := h.svc.Purchase(c.Request.Context(), req)
	if err != nil {
		h.logFailure(c, err)
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OK(c, message)
}

func (h *Handler) GetTransaction(c *gin.Context) {
	result, err := h.svc.GetTransaction(c.Request.Context(), c.Param("reference"))
	if err != nil {
		h.logFailure(c, err)
		httpkit.HandleError(c, err)
		return
	}

	httpkit.OKData(c, result)
}

// logFailure records infrastructure failures with their cause. Rejections
// are logged by the service.
func (h *Handler) logFailure(c *gin.Context, err error) {
	switch apperr.GetKind(err) {
	case apperr.KindInternal, apperr.KindUnknown:
		h.log.WithContext(c.Request.Context()).HTTPError(c.Request.Method, c.Request.URL.Path,
			http.StatusInternalServerError, err, c.ClientIP())
	}
}
