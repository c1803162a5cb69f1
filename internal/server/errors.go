package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	authdomain "github.com/metergate/metergate/internal/authsig/domain"
	balancedomain "github.com/metergate/metergate/internal/balance/domain"
	gatewaydomain "github.com/metergate/metergate/internal/gateway/domain"
	historydomain "github.com/metergate/metergate/internal/history/domain"
	"github.com/metergate/metergate/internal/identity"
	registrydomain "github.com/metergate/metergate/internal/registry/domain"
	revenuedomain "github.com/metergate/metergate/internal/revenue/domain"
	treasurydomain "github.com/metergate/metergate/internal/treasury/domain"
	usagedomain "github.com/metergate/metergate/internal/usage/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
)

// ErrorHandlingMiddleware converts errors collected on the gin context
// into JSON responses. Handlers report failures with AbortWithError and
// never write error bodies themselves.
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
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		return status, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
	return status, errorPayload{
		Type:    codeFor(err),
		Message: err.Error(),
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, identity.ErrInvalidAddress),
		errors.Is(err, identity.ErrInvalidApiID),
		errors.Is(err, identity.ErrInvalidUsageID),
		errors.Is(err, registrydomain.ErrInvalidPaymentUnit),
		errors.Is(err, registrydomain.ErrInvalidPrice),
		errors.Is(err, registrydomain.ErrInvalidCaller),
		errors.Is(err, balancedomain.ErrInvalidUnits),
		errors.Is(err, balancedomain.ErrInvalidConsumer),
		errors.Is(err, balancedomain.ErrInvalidPayer),
		errors.Is(err, usagedomain.ErrInvalidUnits),
		errors.Is(err, revenuedomain.ErrInvalidAmount),
		errors.Is(err, revenuedomain.ErrInvalidDestination),
		errors.Is(err, treasurydomain.ErrInvalidUnit),
		errors.Is(err, treasurydomain.ErrInvalidAccount),
		errors.Is(err, treasurydomain.ErrInvalidAmount),
		errors.Is(err, historydomain.ErrInvalidPageToken),
		errors.Is(err, gatewaydomain.ErrUnitsOutOfRange):
		return http.StatusBadRequest

	case errors.Is(err, authdomain.ErrMalformed),
		errors.Is(err, authdomain.ErrExpired),
		errors.Is(err, authdomain.ErrInvalidSignature),
		errors.Is(err, authdomain.ErrNonceUsed):
		return http.StatusUnauthorized

	case errors.Is(err, registrydomain.ErrUnauthorized):
		return http.StatusForbidden

	case errors.Is(err, registrydomain.ErrNotFound),
		errors.Is(err, usagedomain.ErrNotFound),
		errors.Is(err, gatewaydomain.ErrUnknownBackend):
		return http.StatusNotFound

	case errors.Is(err, registrydomain.ErrAlreadyExists),
		errors.Is(err, registrydomain.ErrInactive),
		errors.Is(err, usagedomain.ErrDuplicateUsage),
		errors.Is(err, usagedomain.ErrInvalidState),
		errors.Is(err, balancedomain.ErrInsufficientBalance),
		errors.Is(err, revenuedomain.ErrInsufficientRevenue):
		return http.StatusConflict

	case errors.Is(err, gatewaydomain.ErrRateLimited):
		return http.StatusTooManyRequests

	case errors.Is(err, treasurydomain.ErrTransferFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func codeFor(err error) string {
	type coded interface{ Error() string }
	var c coded = err
	for {
		unwrapped := errors.Unwrap(c)
		if unwrapped == nil {
			return c.Error()
		}
		c = unwrapped
	}
}

// classifyErrorForLog buckets request errors for the access log.
func classifyErrorForLog(err error) (string, string) {
	status := statusFor(err)
	switch {
	case status == http.StatusTooManyRequests:
		return "throttled", codeFor(err)
	case status == http.StatusBadGateway:
		return "upstream", codeFor(err)
	case status >= 500:
		return "internal", "internal_error"
	case status >= 400:
		return "client", codeFor(err)
	}
	return "none", ""
}
