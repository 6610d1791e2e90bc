package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"eventhub/api/apperr"
	"eventhub/api/logger"
)

func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondDataMeta(c *gin.Context, status int, data any, meta gin.H) {
	c.JSON(status, gin.H{"success": true, "data": data, "meta": meta})
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": true, "message": message})
}

func respondFail(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   gin.H{"code": code, "message": message},
	})
}

func badRequest(c *gin.Context, err error) {
	respondFail(c, http.StatusBadRequest, "validation_error", "Invalid request: "+err.Error())
}

// respondError maps the apperr taxonomy onto HTTP statuses. Internal errors
// are logged and answered with a generic message.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	var compErr *apperr.ComplianceError
	switch {
	case errors.As(err, &compErr):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"success": false,
			"error": gin.H{
				"code":       "compliance_rejected",
				"message":    compErr.Error(),
				"resourceId": compErr.ResourceID,
				"riskLevel":  compErr.RiskLevel,
				"flags":      compErr.Flags,
			},
		})
	case errors.Is(err, apperr.ErrNotFound):
		respondFail(c, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, apperr.ErrInvalidStateTransition):
		respondFail(c, http.StatusConflict, "invalid_state_transition", err.Error())
	case errors.Is(err, apperr.ErrConflict):
		respondFail(c, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, apperr.ErrUnauthorized):
		respondFail(c, http.StatusUnauthorized, "unauthorized", err.Error())
	case errors.Is(err, apperr.ErrForbidden):
		respondFail(c, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, apperr.ErrValidation):
		respondFail(c, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, apperr.ErrDependencyUnavailable):
		log.Error("Dependency unavailable", "path", c.FullPath(), "error", err)
		respondFail(c, http.StatusServiceUnavailable, "unavailable", "A backing service is unavailable, retry later")
	default:
		log.Error("Unhandled error", "path", c.FullPath(), "error", err)
		_ = c.Error(err)
		respondFail(c, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// queryInt parses an optional integer query parameter.
func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Validation("%s must be an integer", key)
	}
	return n, nil
}
