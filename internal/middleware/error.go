package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/helpdesk-api/pkg/errors"
)

// ErrorHandler maps AppError codes set during handling to HTTP statuses.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			c.JSON(statusFor(appErr.Code), gin.H{"status": "error", "message": appErr.Message})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": "internal server error"})
	}
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrBadRequest:
		return http.StatusBadRequest
	case apperrors.ErrUnauthorized:
		return http.StatusUnauthorized
	case apperrors.ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
