package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eventbooking/bookingcore/internal/http/middlewares"
)

// APIError is the error envelope every endpoint returns. The requestId echoes
// the X-Request-Id header so a client report can be matched to server logs.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
	Details   any    `json:"details,omitempty"`
}

func RespondError(c *gin.Context, status int, code, message string, details any) {
	apiErr := APIError{
		Code:    code,
		Message: message,
		Details: details,
	}

	if rid, ok := c.Get(middlewares.CtxRequestID); ok {
		if s, ok := rid.(string); ok {
			apiErr.RequestID = s
		}
	}

	c.AbortWithStatusJSON(status, gin.H{"error": apiErr})
}

func RespondBadRequest(c *gin.Context, message string, details any) {
	RespondError(c, http.StatusBadRequest, "bad_request", message, details)
}

func RespondUnAuthorized(c *gin.Context, message string) {
	RespondError(c, http.StatusUnauthorized, "unauthorized", message, nil)
}

func RespondForbidden(c *gin.Context, message string) {
	RespondError(c, http.StatusForbidden, "forbidden", message, nil)
}

func RespondNotFound(c *gin.Context, message string) {
	RespondError(c, http.StatusNotFound, "not_found", message, nil)
}

func RespondConflict(c *gin.Context, code, message string) {
	RespondError(c, http.StatusConflict, code, message, nil)
}

func RespondUnprocessable(c *gin.Context, code, message string) {
	RespondError(c, http.StatusUnprocessableEntity, code, message, nil)
}

func RespondUnavailable(c *gin.Context, code, message string) {
	RespondError(c, http.StatusServiceUnavailable, code, message, nil)
}

func RespondInternal(c *gin.Context) {
	RespondError(c, http.StatusInternalServerError, "internal_error", "Something went wrong. Please try again later.", nil)
}
