// Package handler implements the HTTP handlers for the REST API. Handlers
// bind and validate request payloads, resolve the acting user from the
// request context, and delegate to the service layer; all authorization
// decisions live in the services.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/splitledger/splitledger/internal/service"
)

// Handler bundles the service dependencies of the API handlers.
type Handler struct {
	Auth          *service.AuthService
	Groups        *service.GroupService
	Expenses      *service.ExpenseService
	Settlements   *service.SettlementService
	Reports       *service.ReportService
	Notifications *service.NotificationService
}

// respondErr writes the error as `{"error": msg}` with the status code the
// error's kind maps to. Internal causes are logged, never leaked.
func respondErr(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()

	switch service.KindOf(err) {
	case service.KindBadRequest:
		status = http.StatusBadRequest
	case service.KindUnauthorized:
		status = http.StatusUnauthorized
	case service.KindForbidden:
		status = http.StatusForbidden
	case service.KindNotFound:
		status = http.StatusNotFound
	default:
		slog.Error("Handler error", "path", c.Request.URL.Path, "error", err)
		msg = "internal error"
	}

	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// bindJSON binds the request body, responding 400 itself on failure.
func bindJSON(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}
