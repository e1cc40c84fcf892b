package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"MandiCast/internal/domain/models"
	domrepo "MandiCast/internal/domain/repository"
	"MandiCast/internal/services/window"
	applogger "MandiCast/pkg/logger"
	xutil "MandiCast/pkg/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ForecastConfig carries the tunables of ForecastService.
type ForecastConfig struct {
	Lookback     int
	DefaultPrice float64
	Currency     string
	Unit         string
	FeedTimeout  time.Duration
}

func (c *ForecastConfig) normalize() {
	if c.Lookback <= 0 {
		c.Lookback = window.DefaultLookback
	}
	if c.DefaultPrice <= 0 {
		c.DefaultPrice = models.DefaultPrice
	}
	if c.Currency == "" {
		c.Currency = "INR"
	}
	if c.Unit == "" {
		c.Unit = "per quintal"
	}
	if c.FeedTimeout <= 0 {
		c.FeedTimeout = 10 * time.Second
	}
}

// ForecastService answers price forecasts for catalog (market, crop) pairs.
type ForecastService struct {
	catalog  *models.Catalog
	series   domrepo.SeriesSource
	feed     domrepo.PriceFeed
	registry domrepo.ModelRegistry
	pool     *InferencePool
	audit    domrepo.AuditSink
	metrics  domrepo.Metrics
	logger   *applogger.Logger
	cfg      ForecastConfig
	now      func() time.Time
}

// NewForecastService wires the forecast pipeline. audit may be nil.
func NewForecastService(
	catalog *models.Catalog,
	series domrepo.SeriesSource,
	feed domrepo.PriceFeed,
	registry domrepo.ModelRegistry,
	pool *InferencePool,
	audit domrepo.AuditSink,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	cfg ForecastConfig,
) *ForecastService {
	cfg.normalize()
	if l == nil {
		l = applogger.NewNop()
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &ForecastService{
		catalog:  catalog,
		series:   series,
		feed:     feed,
		registry: registry,
		pool:     pool,
		audit:    audit,
		metrics:  metrics,
		logger:   l,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Catalog exposes the static district catalog.
func (s *ForecastService) Catalog() *models.Catalog { return s.catalog }

// Forecast returns the current price and 30/60/90-day forecasts for market
// and crop. Only models.ErrNotFound and models.ErrCropNotServed surface.
func (s *ForecastService) Forecast(ctx context.Context, market, crop string) (*models.PriceForecast, error) {
	start := s.now()
	defer func() { s.metrics.RecordLatency("forecast", time.Since(start).Seconds()) }()

	district, err := s.catalog.Resolve(market, crop)
	if err != nil {
		s.metrics.RecordError(errorKind(err))
		return nil, err
	}

	current, currentSource := s.currentPrice(ctx, market, crop)
	day30, predSource := s.resolveDay30(ctx, district, market, crop, current)

	f := &models.PriceForecast{
		Market:           market,
		Crop:             crop,
		District:         district,
		Current:          round2(current),
		Day30:            round2(day30),
		Day60:            round2(current * models.TrendDay60),
		Day90:            round2(current * models.TrendDay90),
		Currency:         s.cfg.Currency,
		Unit:             s.cfg.Unit,
		CurrentSource:    currentSource,
		PredictionSource: predSource,
		Timestamp:        s.now().UTC(),
	}

	s.metrics.RecordForecast(currentSource, predSource)
	s.metrics.RecordCurrentPrice(market, crop, f.Current)
	s.emit(f)
	return f, nil
}

// currentPrice walks feed, dataset, default in that order.
func (s *ForecastService) currentPrice(ctx context.Context, market, crop string) (float64, string) {
	if s.feed != nil {
		fctx, cancel := context.WithTimeout(ctx, s.cfg.FeedTimeout)
		p, err := s.feed.CurrentPrice(fctx, crop, market)
		cancel()
		if err == nil && p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p) {
			return p, models.SourceLiveFeed
		}
		if err != nil && !errors.Is(err, models.ErrFeedUnavailable) {
			s.logger.Warn("feed returned unexpected error", applogger.Error(err))
		}
	}

	if s.series != nil {
		p, err := s.series.LatestPrice(market, crop)
		if err == nil {
			return p, models.SourceHistorical
		}
		s.logger.Debug("no historical price",
			applogger.String("market", market),
			applogger.String("crop", crop),
			applogger.Error(err))
	}
	return s.cfg.DefaultPrice, models.SourceHistorical
}

// resolveDay30 returns the model forecast when one can be produced, else the
// trend figure. Every recoverable failure lands on trend.
func (s *ForecastService) resolveDay30(ctx context.Context, district, market, crop string, current float64) (float64, string) {
	v, err := s.predict(ctx, district, market, crop)
	if err == nil {
		return v, models.SourceModel
	}

	switch {
	case errors.Is(err, models.ErrModelAbsent),
		errors.Is(err, models.ErrInsufficientData),
		errors.Is(err, models.ErrNoData):
		s.logger.Debug("trend forecast",
			applogger.String("market", market),
			applogger.String("crop", crop),
			applogger.String("reason", err.Error()))
	default:
		s.metrics.RecordError("prediction")
		s.logger.Warn("model prediction failed, using trend",
			applogger.String("market", market),
			applogger.String("crop", crop),
			applogger.Error(err))
	}
	return current * models.TrendDay30, models.SourceTrend
}

func (s *ForecastService) predict(ctx context.Context, district, market, crop string) (float64, error) {
	if s.registry == nil {
		return 0, models.ErrModelAbsent
	}
	model, err := s.registry.Get(district, market, crop)
	if err != nil {
		return 0, err
	}
	if s.series == nil {
		return 0, models.ErrNoData
	}
	series, err := s.series.Series(market, crop)
	if err != nil {
		return 0, err
	}
	win, sc, err := window.Recent(series, s.cfg.Lookback)
	if err != nil {
		return 0, err
	}

	run := func() (float64, error) { return model.Predict(win) }
	var scaled float64
	if s.pool != nil {
		scaled, err = s.pool.Run(ctx, run)
	} else {
		scaled, err = run()
	}
	if err != nil {
		return 0, fmt.Errorf("predict: %w", err)
	}

	v := sc.Inverse(scaled)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("predict: non-finite output: %w", models.ErrModelNotReady)
	}
	return v, nil
}

func (s *ForecastService) emit(f *models.PriceForecast) {
	if s.audit == nil {
		return
	}
	s.audit.Emit(&models.PredictionRecord{
		ID:           uuid.NewString(),
		Market:       f.Market,
		Crop:         f.Crop,
		Date:         xutil.Day(f.Timestamp),
		CurrentPrice: f.Current,
		Price30:      f.Day30,
		Price60:      f.Day60,
		Price90:      f.Day90,
		CreatedAt:    f.Timestamp,
	})
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return "not_found"
	case errors.Is(err, models.ErrCropNotServed):
		return "crop_not_served"
	default:
		return "internal"
	}
}

type nopMetrics struct{}

func (nopMetrics) RecordForecast(string, string)              {}
func (nopMetrics) RecordError(string)                         {}
func (nopMetrics) RecordCurrentPrice(string, string, float64) {}
func (nopMetrics) RecordLatency(string, float64)              {}
func (nopMetrics) SetModelsCached(int)                        {}
