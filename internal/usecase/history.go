package usecase

import (
	"context"
	"errors"
	"fmt"

	"MandiCast/internal/domain/models"
	domrepo "MandiCast/internal/domain/repository"
)

// Bounds for history queries.
const (
	DefaultHistoryLimit = 90
	MaxHistoryLimit     = 5000
)

// HistoryUseCase serves the extracted historical series of a catalog pair.
type HistoryUseCase struct {
	catalog *models.Catalog
	series  domrepo.SeriesSource
}

func NewHistoryUseCase(catalog *models.Catalog, series domrepo.SeriesSource) *HistoryUseCase {
	return &HistoryUseCase{catalog: catalog, series: series}
}

type GetHistoryParams struct {
	Market string
	Crop   string
	Limit  int
}

type GetHistoryResult struct {
	District string
	Market   string
	Crop     string
	Count    int
	Points   []models.PricePoint
}

// GetHistory returns up to Limit of the most recent points, oldest first.
// A pair with no rows in the dataset yields an empty result.
func (uc *HistoryUseCase) GetHistory(ctx context.Context, p GetHistoryParams) (*GetHistoryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	district, err := uc.catalog.Resolve(p.Market, p.Crop)
	if err != nil {
		return nil, err
	}
	if p.Limit <= 0 {
		p.Limit = DefaultHistoryLimit
	}
	if p.Limit > MaxHistoryLimit {
		p.Limit = MaxHistoryLimit
	}

	res := &GetHistoryResult{District: district, Market: p.Market, Crop: p.Crop, Points: []models.PricePoint{}}
	if uc.series == nil {
		return res, nil
	}
	s, err := uc.series.Series(p.Market, p.Crop)
	if err != nil {
		if errors.Is(err, models.ErrNoData) {
			return res, nil
		}
		return nil, fmt.Errorf("get history: %w", err)
	}
	res.Points = s.Tail(p.Limit).Points
	res.Count = len(res.Points)
	return res, nil
}

// PredictionsUseCase reads back served forecasts from the audit store.
type PredictionsUseCase struct {
	store domrepo.AuditStore
}

func NewPredictionsUseCase(store domrepo.AuditStore) *PredictionsUseCase {
	return &PredictionsUseCase{store: store}
}

// Latest returns the newest stored record for market and crop.
func (uc *PredictionsUseCase) Latest(ctx context.Context, market, crop string) (*models.PredictionRecord, error) {
	if uc.store == nil {
		return nil, fmt.Errorf("audit store disabled: %w", models.ErrNotFound)
	}
	return uc.store.Latest(ctx, market, crop)
}

// Health pings the audit store. A missing store reports "disabled".
func (uc *PredictionsUseCase) Health(ctx context.Context) string {
	if uc.store == nil {
		return "disabled"
	}
	if err := uc.store.Health(ctx); err != nil {
		return "unavailable"
	}
	return "connected"
}
