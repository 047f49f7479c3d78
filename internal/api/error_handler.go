package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/lolerskatez/jellyconnect/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	// Known domain errors map to deterministic HTTP codes.
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, domain.ErrDownstreamUserNotFound):
		return http.StatusNotFound, "downstream account not found"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "access forbidden"
	case errors.Is(err, domain.ErrUsernameTaken):
		return http.StatusConflict, "username already taken"
	case errors.Is(err, domain.ErrLoginInProgress):
		return http.StatusConflict, "login already in progress, retry shortly"
	}

	var provErr *domain.ProvisioningError
	if errors.As(err, &provErr) {
		log.Error().Err(err).Str("username", provErr.Username).Msg("provisioning failed")
		return http.StatusBadGateway, "failed to provision downstream account"
	}

	var pairErr *domain.PairingApprovalError
	if errors.As(err, &pairErr) {
		log.Warn().Err(err).Str("last_strategy", pairErr.LastStrategy).Msg("pairing approval exhausted")
		return http.StatusBadGateway, "pairing approval failed on every strategy"
	}

	var downErr *domain.DownstreamUnavailable
	if errors.As(err, &downErr) {
		log.Error().Err(err).Str("op", downErr.Op).Msg("downstream media service unavailable")
		return http.StatusServiceUnavailable, "downstream media service unavailable"
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}
