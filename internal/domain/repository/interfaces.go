package repository

import (
	"context"

	"MandiCast/internal/domain/models"
	domsvc "MandiCast/internal/domain/service"
)

// SeriesSource answers per-(market, crop) queries over the historical dataset.
type SeriesSource interface {
	Series(market, crop string) (models.PriceSeries, error)
	LatestPrice(market, crop string) (float64, error)
	Loaded() bool
	Len() int
}

// PriceFeed is the live price collaborator. Any failure is reported as
// models.ErrFeedUnavailable.
type PriceFeed interface {
	CurrentPrice(ctx context.Context, crop, market string) (float64, error)
}

// ModelStore persists trained models by registry key.
type ModelStore interface {
	Load(key string) (domsvc.PriceModel, error)
	Save(key string, m domsvc.PersistentModel) error
	Path(key string) string
}

// ModelRegistry hands out cached models, or models.ErrModelAbsent.
type ModelRegistry interface {
	Get(district, market, crop string) (domsvc.PriceModel, error)
	Loaded() int
}

// AuditSink receives served forecasts. Used by the background pipeline only.
type AuditSink interface {
	Emit(rec *models.PredictionRecord)
}

// AuditPublisher ships prediction records to a message broker.
type AuditPublisher interface {
	Publish(ctx context.Context, rec *models.PredictionRecord) error
	Close() error
}

// AuditStore persists prediction records and answers latest-record queries.
type AuditStore interface {
	Init(ctx context.Context) error
	Append(ctx context.Context, rec *models.PredictionRecord) error
	Latest(ctx context.Context, market, crop string) (*models.PredictionRecord, error)
	Health(ctx context.Context) error
	Close() error
}

type Metrics interface {
	RecordForecast(currentSource, predictionSource string)
	RecordError(kind string)
	RecordCurrentPrice(market, crop string, price float64)
	RecordLatency(op string, seconds float64)
	SetModelsCached(n int)
}
