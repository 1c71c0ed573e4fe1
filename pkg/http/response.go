package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

const barePayloadKey = "bare_payload"

func barePayloads(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Set(barePayloadKey, true)
		return next(c)
	}
}

// DataResponse writes the envelope with statusCode as both the HTTP status
// and the body status. Successful bodies go out bare when the server runs
// WithBarePayloads.
func DataResponse(c echo.Context, statusCode int, data any) error {
	if bare, _ := c.Get(barePayloadKey).(bool); bare && statusCode < http.StatusBadRequest {
		return c.JSON(statusCode, data)
	}
	return c.JSON(statusCode, APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

// SuccessResponse writes success response.
func SuccessResponse(c echo.Context, data any) error {
	return DataResponse(c, http.StatusOK, data)
}

// BadRequestResponse writes bad request error.
func BadRequestResponse(c echo.Context, data any) error {
	return DataResponse(c, http.StatusBadRequest, data)
}

// InternalServerErrorResponse writes internal server error.
func InternalServerErrorResponse(c echo.Context) error {
	return DataResponse(c, http.StatusInternalServerError, "Something went wrong")
}

// AppErrorResponse writes application error response.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return DataResponse(c, appErr.Status, []*AppError{appErr})
	}
	return InternalServerErrorResponse(c)
}

// HTTPErrorHandler renders echo errors (unknown routes, bad methods) in the
// same envelope as handler errors.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		_ = DataResponse(c, he.Code, []*AppError{NewAppError("ERR_HTTP", "", msg, he.Code)})
		return
	}
	_ = AppErrorResponse(c, err)
}
