package api

import (
	"net/http"
	"strconv"

	"BrentCast/internal/domain/models"
	domrepo "BrentCast/internal/domain/repository"
	"BrentCast/internal/service/ratelimit"
	"BrentCast/internal/usecase"
	xhttp "BrentCast/pkg/http"
	xlogger "BrentCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ForecastEchoHandler exposes history, forecasts and model metadata over Echo.
type ForecastEchoHandler struct {
	logger   *xlogger.Logger
	forecast *usecase.ForecastUseCase
	history  *usecase.HistoryUseCase
	metrics  *usecase.MetricsUseCase
	registry domrepo.ModelRegistry
	limiter  *ratelimit.Limiter
}

// NewForecastEchoHandler builds the handler; limiter may be nil to disable rate limiting.
func NewForecastEchoHandler(
	logger *xlogger.Logger,
	forecast *usecase.ForecastUseCase,
	history *usecase.HistoryUseCase,
	metrics *usecase.MetricsUseCase,
	registry domrepo.ModelRegistry,
	limiter *ratelimit.Limiter,
) *ForecastEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &ForecastEchoHandler{
		logger:   logger,
		forecast: forecast,
		history:  history,
		metrics:  metrics,
		registry: registry,
		limiter:  limiter,
	}
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.GET("/historical", h.Historical)
	g.GET("/historical/summary", h.Summary)
	g.GET("/metrics", h.Metrics)
	g.GET("/models", h.Models)

	p := g.Group("/predict")
	if h.limiter != nil {
		p.Use(h.limiter.Middleware())
	}
	p.POST("/arima", h.horizon(models.KindARIMA))
	p.POST("/garch", h.horizon(models.KindGARCH))
	p.POST("/var", h.horizon(models.KindVAR))
	p.POST("/lstm", h.LSTM)
	p.GET("/all", h.All)
}

func (h *ForecastEchoHandler) Historical(c echo.Context) error {
	points, err := h.history.GetAll(c.Request().Context())
	if err != nil {
		h.logger.Error("historical usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("historical data unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, toPricePoints(points))
}

func (h *ForecastEchoHandler) Summary(c echo.Context) error {
	window, err := optionalIntQuery(c, "window")
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	s, err := h.history.Summary(c.Request().Context(), window)
	if err != nil {
		if appErr := toAppError(err); appErr.Status < 500 {
			return xhttp.AppErrorResponse(c, appErr)
		}
		h.logger.Error("summary usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("historical data unavailable").WithError(err))
	}
	return xhttp.SuccessResponse(c, toSummaryView(s))
}

func (h *ForecastEchoHandler) Metrics(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.metrics.GetMetrics())
}

func (h *ForecastEchoHandler) Models(c echo.Context) error {
	return xhttp.SuccessResponse(c, toModelStatusViews(h.registry.Status()))
}

// Health reports "ok" when every model loaded and "degraded" otherwise; it
// answers 200 either way since the service still serves what it has.
func (h *ForecastEchoHandler) Health(c echo.Context) error {
	statuses := h.registry.Status()
	status := "ok"
	for _, s := range statuses {
		if !s.Available {
			status = "degraded"
			break
		}
	}
	return xhttp.SuccessResponse(c, map[string]any{
		"status": status,
		"models": toModelStatusViews(statuses),
	})
}

func (h *ForecastEchoHandler) horizon(kind models.ModelKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := &models.HorizonRequest{}
		if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
			return xhttp.BadRequestResponse(c, verr)
		}
		steps, err := usecase.ParseSteps(kind, req.Steps)
		if err != nil {
			return xhttp.AppErrorResponse(c, toAppError(err))
		}
		return h.respond(c, models.ForecastRequest{Kind: kind, Steps: steps})
	}
}

func (h *ForecastEchoHandler) LSTM(c echo.Context) error {
	req := &models.LSTMRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return h.respond(c, models.ForecastRequest{Kind: models.KindLSTM, Input: req.Input, Raw: req.Raw})
}

func (h *ForecastEchoHandler) respond(c echo.Context, req models.ForecastRequest) error {
	res, err := h.forecast.Handle(c.Request().Context(), req)
	if err != nil {
		appErr := toAppError(err)
		if appErr.Status >= 500 {
			h.logger.Error("forecast usecase error",
				xlogger.String("kind", string(req.Kind)),
				xlogger.Error(err),
			)
		}
		return xhttp.AppErrorResponse(c, appErr)
	}
	return xhttp.SuccessResponse(c, forecastBody(res))
}

func (h *ForecastEchoHandler) All(c echo.Context) error {
	steps, err := optionalIntQuery(c, "steps")
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	batch, err := h.forecast.HandleAll(c.Request().Context(), steps)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, toBatchView(batch))
}

// optionalIntQuery returns nil when the parameter is absent.
func optionalIntQuery(c echo.Context, name string) (*int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, xhttp.NewAppError("ERR_INVALID_PARAMETER", name, name+" must be an integer", http.StatusBadRequest).WithError(err)
	}
	return &n, nil
}
