package http_api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/core-coin/adsponsor/internal/models"
)

var (
	notFoundErrors = []error{
		models.ErrNotInitialized,
		models.ErrAdNotFound,
		models.ErrRequestNotFound,
	}
	badRequestErrors = []error{
		models.ErrInvalidAmount,
		models.ErrInvalidFee,
		models.ErrInvalidRecipient,
		models.ErrInvalidAdID,
		models.ErrInvalidAdURL,
		models.ErrInvalidAdContent,
		models.ErrInvalidDisplayTime,
		models.ErrRewardTooLow,
		models.ErrAdMismatch,
		models.ErrAdNotStarted,
		models.ErrInsufficientViewTime,
	}
	conflictErrors = []error{
		models.ErrAlreadyInitialized,
		models.ErrAdExists,
		models.ErrRequestExists,
		models.ErrInvalidStatus,
		models.ErrRequestExpired,
		models.ErrProgramPaused,
		models.ErrAdNotActive,
		models.ErrInsufficientProgramFunds,
		models.ErrInsufficientBalance,
		models.ErrMathOverflow,
		models.ErrMathUnderflow,
	}
)

func isAny(err error, kinds []error) bool {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

// statusFor maps a service error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrUnauthorized), errors.Is(err, models.ErrInvalidAuthority):
		return http.StatusForbidden
	case isAny(err, notFoundErrors):
		return http.StatusNotFound
	case isAny(err, badRequestErrors):
		return http.StatusBadRequest
	case isAny(err, conflictErrors):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the error kind so clients can tell causes apart.
func (s *HTTPServer) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", c.FullPath(), "error", err)
		message = "internal error"
	}
	c.JSON(status, gin.H{
		"success": false,
		"code":    models.ErrorCode(err),
		"error":   message,
	})
}

func (s *HTTPServer) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"code":    "bad_request",
		"error":   message,
	})
}
