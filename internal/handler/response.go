package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/roamium/discovery/internal/logging"
	"github.com/roamium/discovery/internal/service"
)

// APIResponse describes the standard envelope returned by the API.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Success sends a successful response using the shared envelope format.
func Success(c echo.Context, status int, message string, data any) error {
	if status == 0 {
		status = http.StatusOK
	}
	payload := APIResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	}
	return c.JSON(status, payload)
}

// Error sends an error response using the shared envelope format.
func Error(c echo.Context, status int, message string) error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	payload := APIResponse{
		Status:  "error",
		Message: message,
	}
	return c.JSON(status, payload)
}

// ServiceError maps pipeline errors onto HTTP statuses: invalid input is 400,
// external source failures are 502 and everything else is 500.
func ServiceError(c echo.Context, err error) error {
	var invalid *service.InvalidParameterError
	var external *service.ExternalSourceError
	ctx := c.Request().Context()

	switch {
	case errors.As(err, &invalid):
		return Error(c, http.StatusBadRequest, invalid.Error())
	case errors.As(err, &external):
		logging.Ctx(ctx).Warn().Err(err).Str("source", external.Source).Msg("external place source failed")
		return Error(c, http.StatusBadGateway, "external place source unavailable")
	case errors.Is(err, context.Canceled):
		return Error(c, http.StatusServiceUnavailable, "request cancelled")
	default:
		logging.Ctx(ctx).Error().Err(err).Msg("request failed")
		return Error(c, http.StatusInternalServerError, "internal error")
	}
}
