package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/GriffinCanCode/monview/internal/client"
	"github.com/GriffinCanCode/monview/internal/domain/acquire"
	"github.com/GriffinCanCode/monview/internal/domain/registry"
	"github.com/GriffinCanCode/monview/internal/domain/render"
	"github.com/GriffinCanCode/monview/internal/domain/session"
)

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrUnknownMonitor), errors.Is(err, render.ErrNoFrame):
		return http.StatusNotFound
	case errors.Is(err, session.ErrClosed), errors.Is(err, client.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, registry.ErrRegistryFetch), errors.Is(err, acquire.ErrConnection):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
