package api

import (
	"errors"
	"net/http"

	"api_pos/internal/auth"
	"api_pos/internal/catalog"
	"api_pos/internal/payment"
	"api_pos/internal/sales"
	"api_pos/internal/staff"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// statusFor maps service errors to an HTTP status and a client-safe message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, sales.ErrValidation),
		errors.Is(err, catalog.ErrValidation),
		errors.Is(err, payment.ErrValidation),
		errors.Is(err, auth.ErrValidation),
		errors.Is(err, sales.ErrProductMissing),
		errors.Is(err, catalog.ErrCategoryMissing),
		errors.Is(err, staff.ErrValidation),
		errors.Is(err, staff.ErrReferenceMissing):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, sales.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, payment.ErrNotFound),
		errors.Is(err, auth.ErrNotFound),
		errors.Is(err, staff.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, catalog.ErrInUse),
		errors.Is(err, auth.ErrUsernameTaken),
		errors.Is(err, staff.ErrInUse),
		errors.Is(err, staff.ErrDuplicate):
		return http.StatusConflict, err.Error()
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInactive),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, payment.ErrGateway):
		return http.StatusBadGateway, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeError(c *gin.Context, logger *zap.Logger, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(status, gin.H{"error": msg})
}

// writeSaveFailure answers the till's save endpoints, which expect
// {"status":"success"} or {"status":"failed","msg":...}.
func writeSaveFailure(c *gin.Context, logger *zap.Logger, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("save failed", zap.String("request_id", c.GetString(requestIDKey)), zap.Error(err))
	}
	c.JSON(status, gin.H{"status": "failed", "msg": msg})
}
