package webhook

import (
	"io"
	"net/http"

	"datavend_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

const (
	maxBodyBytes = 1 << 20

	respOK          = "OK"
	respUnverified  = "Unverified"
	respServerError = "Server Error"
)

// Handler handles payment provider webhook deliveries.
type Handler struct {
	auth Authenticator
	svc  *Service
	log  *logger.Logger
}

// NewHandler creates a new webhook handler.
func NewHandler(auth Authenticator, svc *Service, log *logger.Logger) *Handler {
	return &Handler{auth: auth, svc: svc, log: log}
}

// HandleFlutterwave authenticates the delivery before reading its body.
func (h *Handler) HandleFlutterwave(c *gin.Context) {
	log := h.log.WithContext(c.Request.Context())

	if err := h.auth.Authenticate(c.Request.Header); err != nil {
		log.AuthEvent("webhook", false, err.Error())
		c.String(http.StatusUnauthorized, respUnverified)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		log.Error("webhook body read failed", "error", err)
		c.String(http.StatusInternalServerError, respServerError)
		return
	}

	if err := h.svc.HandleNotification(c.Request.Context(), body); err != nil {
		log.Error("webhook processing failed", "error", err)
		c.String(http.StatusInternalServerError, respServerError)
		return
	}

	c.String(http.StatusOK, respOK)
}
