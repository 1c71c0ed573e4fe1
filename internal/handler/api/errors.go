package api

import (
	"context"
	"errors"
	"net/http"

	"BrentCast/internal/domain/models"
	xhttp "BrentCast/pkg/http"
)

// toAppError maps domain errors onto HTTP statuses. Unavailable is checked
// before unknown because an unavailable model also matches ErrUnknownModelKind.
func toAppError(err error) *xhttp.AppError {
	var (
		field string
		kind  models.ModelKind
	)
	var fe *models.ForecastError
	if errors.As(err, &fe) {
		field, kind = fe.Field, fe.Kind
	}

	var appErr *xhttp.AppError
	switch {
	case errors.Is(err, models.ErrInvalidParameter):
		appErr = xhttp.NewAppError("ERR_INVALID_PARAMETER", field, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrShape):
		appErr = xhttp.NewAppError("ERR_SHAPE", field, err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrModelUnavailable):
		appErr = xhttp.NewAppError("ERR_MODEL_UNAVAILABLE", "", err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, models.ErrUnknownModelKind):
		appErr = xhttp.NewAppError("ERR_UNKNOWN_MODEL", "", err.Error(), http.StatusNotFound)
	case errors.Is(err, models.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		appErr = xhttp.GatewayTimeoutError(err.Error())
	case errors.Is(err, models.ErrInference):
		appErr = xhttp.NewAppError("ERR_INFERENCE", "", err.Error(), http.StatusInternalServerError)
	default:
		appErr = xhttp.InternalError("Something went wrong")
	}
	if kind != "" {
		appErr.WithParam("kind", string(kind))
	}
	return appErr.WithError(err)
}
