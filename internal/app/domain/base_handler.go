package domain

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wanderer-app/wanderer/internal/app/models"
)

// BaseHandler carries the pieces every domain handler shares.
type BaseHandler struct {
	Logger *zap.Logger
}

func NewBaseHandler(logger *zap.Logger) *BaseHandler {
	return &BaseHandler{Logger: logger}
}

// RespondError maps the failure taxonomy onto HTTP statuses and writes a
// JSON error body. Superseded operations resolve silently with 409 so a
// stale client request never masquerades as a server fault.
func (h *BaseHandler) RespondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, models.ErrUnsupported):
		status = http.StatusServiceUnavailable
	case errors.Is(err, models.ErrNetworkError):
		status = http.StatusBadGateway
	case errors.Is(err, models.ErrParse):
		status = http.StatusBadGateway
	case errors.Is(err, models.ErrSuperseded):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.Logger.Error("Request failed", zap.Error(err))
	} else {
		h.Logger.Debug("Request resolved with error", zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// RespondBadRequest writes a 400 for malformed client input.
func (h *BaseHandler) RespondBadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
