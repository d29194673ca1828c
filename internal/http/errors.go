package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"synergysphere/internal/domain"
)

// writeError traduce la clase del error a un status HTTP.
func writeError(c *gin.Context, logger *zap.Logger, msg string, err error) {
	kind := domain.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindUnauthorized:
		status = http.StatusUnauthorized
	case domain.KindConflict:
		status = http.StatusConflict
	case domain.KindInvalid:
		status = http.StatusBadRequest
	case domain.KindTransient:
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		logger.Error(msg, zap.Error(err))
	}
	if kind == domain.KindInvalid || kind == domain.KindConflict {
		msg = err.Error()
	}
	c.JSON(status, gin.H{"error": msg, "kind": kind.String()})
}
