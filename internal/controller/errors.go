package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"shared-tasks/internal/models"
)

// respondError maps the error taxonomy to a status and a structured body.
func respondError(c *gin.Context, err error) {
	status, code, msg := http.StatusInternalServerError, "internal_error", "internal error"
	switch {
	case errors.Is(err, models.ErrValidation):
		status, code, msg = http.StatusBadRequest, "validation_error", err.Error()
	case errors.Is(err, models.ErrNotFound):
		status, code, msg = http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, models.ErrStoreUnavailable):
		status, code, msg = http.StatusServiceUnavailable, "store_unavailable", "store unavailable, retry later"
	}
	c.JSON(status, gin.H{"error": code, "message": msg})
}
