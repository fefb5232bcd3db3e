package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"FinCast/internal/domain/models"
	xhttp "FinCast/pkg/http"
	"FinCast/pkg/http/middleware"
	xlogger "FinCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Error codes for the data class. All of them are sent with status 400.
const (
	CodeInsufficientHistory = "ERR_INSUFFICIENT_HISTORY"
	CodeDataUnavailable     = "ERR_DATA_UNAVAILABLE"
	CodeUpstreamTimeout     = "ERR_UPSTREAM_TIMEOUT"
)

// Forecaster is the use case behind the prediction routes.
type Forecaster interface {
	Predict(ctx context.Context, instrument string) (*models.PredictionResponse, error)
	Instruments() ([]models.InstrumentInfo, error)
}

// HealthChecker reports whether the artifact store is usable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// PredictEchoHandler serves forecasts over HTTP.
type PredictEchoHandler struct {
	logger  *xlogger.Logger
	fc      Forecaster
	health  HealthChecker
	timeout time.Duration
}

func NewPredictEchoHandler(logger *xlogger.Logger, fc Forecaster, health HealthChecker, timeout time.Duration) *PredictEchoHandler {
	if logger == nil {
		logger = xlogger.NewNop()
	}
	return &PredictEchoHandler{logger: logger, fc: fc, health: health, timeout: timeout}
}

func (h *PredictEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/predict", h.Predict)
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.POST("/predict", h.Predict)
	g.GET("/instruments", h.Instruments)
}

func (h *PredictEchoHandler) Predict(c echo.Context) error {
	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationErrorResponse(c, verr)
	}

	ctx := c.Request().Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	resp, err := h.fc.Predict(ctx, req.Ticker)
	if err != nil {
		appErr := toAppError(req.Ticker, err)
		if appErr.Status >= http.StatusInternalServerError {
			h.logger.Error("predict failed",
				xlogger.String("ticker", req.Ticker),
				xlogger.String("request_id", middleware.GetRequestID(c)),
				xlogger.Error(err),
			)
		}
		return xhttp.AppErrorResponse(c, appErr)
	}
	return xhttp.SuccessResponse(c, resp)
}

func (h *PredictEchoHandler) Instruments(c echo.Context) error {
	list, err := h.fc.Instruments()
	if err != nil {
		h.logger.Error("list instruments failed", xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	if list == nil {
		list = []models.InstrumentInfo{}
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=30")
	return xhttp.SuccessResponse(c, map[string]any{"instruments": list})
}

func (h *PredictEchoHandler) Health(c echo.Context) error {
	if h.health != nil {
		if err := h.health.Health(c.Request().Context()); err != nil {
			h.logger.Warn("health check failed",
				xlogger.String("request_id", middleware.GetRequestID(c)),
				xlogger.Error(err),
			)
			return xhttp.JSONResponse(c, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

// toAppError is the only place pipeline error kinds become HTTP statuses.
func toAppError(ticker string, err error) *xhttp.AppError {
	switch models.KindOf(err) {
	case models.KindNotFound:
		return xhttp.NotFoundErrorf("model for %s not available", ticker).WithError(err)
	case models.KindInsufficientHistory:
		var he *models.HistoryError
		if errors.As(err, &he) {
			return xhttp.DataErrorf(CodeInsufficientHistory, "not enough market data for %s: got %d bars, need %d",
				ticker, he.Got, he.Need).WithError(err)
		}
		return xhttp.DataErrorf(CodeInsufficientHistory, "not enough market data for %s", ticker).WithError(err)
	case models.KindTimeout:
		return xhttp.DataErrorf(CodeUpstreamTimeout, "market data request timed out for %s", ticker).WithError(err)
	case models.KindDataUnavailable:
		return xhttp.DataErrorf(CodeDataUnavailable, "market data unavailable for %s", ticker).WithError(err)
	case models.KindArtifactLoad:
		return xhttp.NewAppError("ERR_ARTIFACT", "model artifacts for "+ticker+" could not be loaded",
			http.StatusInternalServerError).WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
