// Package httpkit provides HTTP response utilities.
// This is part of the platform layer and contains no business logic.
package httpkit

import (
	"errors"
	"net/http"

	"datavend_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

// genericFailure is returned for errors that carry no safe message.
const genericFailure = "Internal server error"

// Envelope is the response body shared by the public JSON endpoints.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// OK sends a 200 success envelope with a message.
func OK(c *gin.Context, message string) {
	c.JSON(http.StatusOK, Envelope{Success: true, Message: message})
}

// OKData sends a 200 success envelope carrying data.
func OKData(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Error sends a failure envelope with the given status code and message.
func Error(c *gin.Context, status int, message string) {
	c.JSON(status, Envelope{Success: false, Error: message})
}

// HandleError maps domain errors to HTTP responses.
// Typed *apperr.Error values use their Kind for the status and their Message
// for the body; the wrapped cause is never sent to the client.
// Untyped errors become a 500 with a generic message.
// Returns true if an error was handled, false otherwise.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	var domainErr *apperr.Error
	if errors.As(err, &domainErr) {
		message := domainErr.Message
		if message == "" {
			message = genericFailure
		}
		c.JSON(domainErr.HTTPStatus(), Envelope{Success: false, Error: message})
		return true
	}

	c.JSON(http.StatusInternalServerError, Envelope{Success: false, Error: genericFailure})
	return true
}
