package usecase

import (
	"context"
	"sync"
	"time"

	"MandiCast/internal/domain/models"
	applogger "MandiCast/pkg/logger"
)

// Forecaster is the per-pair operation the aggregates fan out over.
type Forecaster interface {
	Forecast(ctx context.Context, market, crop string) (*models.PriceForecast, error)
}

// AggregateUseCase answers market-wide and district-wide forecast queries.
type AggregateUseCase struct {
	catalog  *models.Catalog
	forecast Forecaster
	logger   *applogger.Logger
	timeout  time.Duration
}

func NewAggregateUseCase(catalog *models.Catalog, f Forecaster, l *applogger.Logger, timeout time.Duration) *AggregateUseCase {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &AggregateUseCase{catalog: catalog, forecast: f, logger: l, timeout: timeout}
}

type pair struct {
	market string
	crop   string
}

// MarketForecasts returns one quote per crop served by market, in catalog order.
func (uc *AggregateUseCase) MarketForecasts(ctx context.Context, market string) (*models.MarketQuotes, error) {
	d, err := uc.catalog.MarketDistrict(market)
	if err != nil {
		return nil, err
	}

	pairs := make([]pair, 0, len(d.Crops))
	for _, c := range d.Crops {
		pairs = append(pairs, pair{market, c})
	}
	quotes := uc.fanOut(ctx, pairs)

	return &models.MarketQuotes{District: d.Name, Market: market, Crops: quotes}, nil
}

// DistrictForecasts returns every market x crop quote of district.
func (uc *AggregateUseCase) DistrictForecasts(ctx context.Context, district string) (*models.DistrictQuotes, error) {
	d, err := uc.catalog.District(district)
	if err != nil {
		return nil, err
	}

	pairs := make([]pair, 0, len(d.Markets)*len(d.Crops))
	for _, m := range d.Markets {
		for _, c := range d.Crops {
			pairs = append(pairs, pair{m, c})
		}
	}
	quotes := uc.fanOut(ctx, pairs)

	res := &models.DistrictQuotes{District: d.Name, Markets: make([]models.MarketQuotes, 0, len(d.Markets))}
	for i, m := range d.Markets {
		res.Markets = append(res.Markets, models.MarketQuotes{
			District: d.Name,
			Market:   m,
			Crops:    quotes[i*len(d.Crops) : (i+1)*len(d.Crops)],
		})
	}
	return res, nil
}

// fanOut forecasts every pair concurrently. The result slice keeps input
// order and failed pairs carry the placeholder quote.
func (uc *AggregateUseCase) fanOut(ctx context.Context, pairs []pair) []models.CropQuote {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	out := make([]models.CropQuote, len(pairs))
	var wg sync.WaitGroup
	for i, p := range pairs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, err := uc.forecast.Forecast(ctx, p.market, p.crop)
			if err != nil {
				uc.logger.Warn("aggregate entry failed",
					applogger.String("market", p.market),
					applogger.String("crop", p.crop),
					applogger.Error(err))
				out[i] = models.PlaceholderQuote(p.crop)
				return
			}
			out[i] = f.Quote()
		}()
	}
	wg.Wait()
	return out
}
