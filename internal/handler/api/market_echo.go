package api

import (
	"errors"
	"net/http"
	"time"

	"MandiCast/internal/domain/models"
	domrepo "MandiCast/internal/domain/repository"
	"MandiCast/internal/service/metrics"
	"MandiCast/internal/service/ratelimit"
	"MandiCast/internal/usecase"
	xhttp "MandiCast/pkg/http"
	xlogger "MandiCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// MarketDeps groups the collaborators of MarketEchoHandler.
type MarketDeps struct {
	Forecast    *usecase.ForecastService
	Aggregate   *usecase.AggregateUseCase
	History     *usecase.HistoryUseCase
	Predictions *usecase.PredictionsUseCase
	Series      domrepo.SeriesSource
	Registry    domrepo.ModelRegistry
	Limiter     *ratelimit.Limiter
}

// MarketEchoHandler serves the market price API.
type MarketEchoHandler struct {
	logger  *xlogger.Logger
	catalog *models.Catalog
	deps    MarketDeps
}

func NewMarketEchoHandler(logger *xlogger.Logger, deps MarketDeps) *MarketEchoHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.NewNop()
	}
	return &MarketEchoHandler{logger: logger, catalog: deps.Forecast.Catalog(), deps: deps}
}

func (h *MarketEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Root)
	e.GET("/health", h.Health)

	g := e.Group("/api/market")
	g.GET("/districts", h.Districts)
	g.GET("/district/:district", h.District)
	g.GET("/prices/:market/:crop", h.Prices)
	g.GET("/market/:market", h.Market, h.rateLimit("market"))
	g.GET("/district-all/:district", h.DistrictAll, h.rateLimit("district_all"))
	g.GET("/history/:market/:crop", h.History)
	g.GET("/predictions/:market/:crop", h.Predictions)
	g.GET("/health", h.MarketHealth)
}

func (h *MarketEchoHandler) Root(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{
		"message": "MandiCast market price API",
		"status":  "running",
	})
}

func (h *MarketEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "healthy"})
}

func (h *MarketEchoHandler) Districts(c echo.Context) error {
	names := h.catalog.Names()
	return xhttp.SuccessResponse(c, DistrictsResponse{Districts: names, Total: len(names)})
}

func (h *MarketEchoHandler) District(c echo.Context) error {
	req := &models.DistrictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	d, err := h.catalog.District(req.District)
	if err != nil {
		return h.fail(c, "district", err)
	}
	return xhttp.SuccessResponse(c, DistrictResponse{
		District:     d.Name,
		Markets:      d.Markets,
		Crops:        d.Crops,
		TotalMarkets: len(d.Markets),
	})
}

func (h *MarketEchoHandler) Prices(c echo.Context) error {
	defer metrics.Observe("prices", time.Now())
	req := &models.PriceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	f, err := h.deps.Forecast.Forecast(c.Request().Context(), req.Market, req.Crop)
	if err != nil {
		return h.fail(c, "prices", err)
	}
	return xhttp.SuccessResponse(c, toForecastResponse(f))
}

func (h *MarketEchoHandler) Market(c echo.Context) error {
	defer metrics.Observe("market", time.Now())
	req := &models.MarketRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.deps.Aggregate.MarketForecasts(c.Request().Context(), req.Market)
	if err != nil {
		return h.fail(c, "market", err)
	}
	return xhttp.SuccessResponse(c, MarketPricesResponse{
		District:   res.District,
		Market:     res.Market,
		CropsCount: len(res.Crops),
		Prices:     toQuotes(res.Crops),
	})
}

func (h *MarketEchoHandler) DistrictAll(c echo.Context) error {
	defer metrics.Observe("district_all", time.Now())
	req := &models.DistrictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.deps.Aggregate.DistrictForecasts(c.Request().Context(), req.District)
	if err != nil {
		return h.fail(c, "district_all", err)
	}
	out := DistrictPricesResponse{District: res.District, Markets: make([]DistrictMarketResponse, 0, len(res.Markets))}
	for _, m := range res.Markets {
		out.Markets = append(out.Markets, DistrictMarketResponse{Market: m.Market, Crops: toQuotes(m.Crops)})
	}
	return xhttp.SuccessResponse(c, out)
}

func (h *MarketEchoHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.deps.History.GetHistory(c.Request().Context(), usecase.GetHistoryParams{
		Market: req.Market,
		Crop:   req.Crop,
		Limit:  req.Limit,
	})
	if err != nil {
		return h.fail(c, "history", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=300")
	return xhttp.SuccessResponse(c, toHistoryResponse(res))
}

func (h *MarketEchoHandler) Predictions(c echo.Context) error {
	req := &models.PriceRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rec, err := h.deps.Predictions.Latest(c.Request().Context(), req.Market, req.Crop)
	if err != nil {
		return h.fail(c, "predictions", err)
	}
	return xhttp.SuccessResponse(c, rec)
}

func (h *MarketEchoHandler) MarketHealth(c echo.Context) error {
	res := HealthResponse{Status: "Market API running", Database: "disabled"}
	if h.deps.Series != nil {
		res.CSVLoaded = h.deps.Series.Loaded()
		res.Records = h.deps.Series.Len()
	}
	if h.deps.Registry != nil {
		res.ModelsLoaded = h.deps.Registry.Loaded()
	}
	if h.deps.Predictions != nil {
		res.Database = h.deps.Predictions.Health(c.Request().Context())
	}
	return xhttp.SuccessResponse(c, res)
}

// rateLimit guards the fan-out endpoints per client IP.
func (h *MarketEchoHandler) rateLimit(endpoint string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if h.deps.Limiter == nil || h.deps.Limiter.Allow(c.RealIP()+":"+endpoint) {
				return next(c)
			}
			h.logger.Warn("rate limited",
				xlogger.String("endpoint", endpoint),
				xlogger.String("remote", c.RealIP()))
			metrics.Fail(endpoint, "ERR_RATE_LIMITED")
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("too many requests"))
		}
	}
}

func (h *MarketEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	appErr := toAppError(err)
	metrics.Fail(endpoint, appErr.Code)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(endpoint+" usecase error", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func toAppError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, models.ErrCropNotServed):
		return xhttp.NewAppError("ERR_CROP_NOT_SERVED", "crop", err.Error(), http.StatusNotFound).WithError(err)
	case errors.Is(err, models.ErrNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	default:
		return xhttp.InternalError("Something went wrong").WithError(err)
	}
}
