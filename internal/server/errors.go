package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shiftbd/agenthub/internal/notify"
	requestdomain "github.com/shiftbd/agenthub/internal/request/domain"
	voucherdomain "github.com/shiftbd/agenthub/internal/voucher/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, requestdomain.ErrNotFound),
		errors.Is(err, voucherdomain.ErrNotFound):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: "resource not found"}

	case errors.Is(err, requestdomain.ErrInvalidTransition):
		return http.StatusUnprocessableEntity, errorPayload{Type: "invalid_transition", Message: "requested status is not reachable from the current one"}

	case errors.Is(err, requestdomain.ErrConflict):
		return http.StatusConflict, errorPayload{Type: "conflict", Message: "the record changed concurrently, re-read and retry"}

	case errors.Is(err, requestdomain.ErrDuplicateTransaction):
		return http.StatusConflict, errorPayload{Type: "duplicate_transaction", Message: "transaction reference already recorded"}

	case errors.Is(err, voucherdomain.ErrAlreadyUsed):
		return http.StatusConflict, errorPayload{Type: "already_used", Message: "voucher has already been redeemed"}

	case errors.Is(err, voucherdomain.ErrExpired):
		return http.StatusGone, errorPayload{Type: "expired", Message: "voucher validity window has passed"}

	case errors.Is(err, requestdomain.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{Type: "rate_limited", Message: "too many submissions, slow down"}

	case errors.Is(err, requestdomain.ErrInvalidKind),
		errors.Is(err, requestdomain.ErrInvalidOwner),
		errors.Is(err, requestdomain.ErrInvalidID),
		errors.Is(err, requestdomain.ErrInvalidStatus),
		errors.Is(err, voucherdomain.ErrInvalidCode),
		errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{Type: "invalid_request", Message: err.Error()}

	case errors.Is(err, ErrUnauthorized), errors.Is(err, notify.ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: "invalid credential"}

	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal error"}
	}
}
