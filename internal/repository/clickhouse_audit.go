package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"MandiCast/internal/domain/models"
	domrepo "MandiCast/internal/domain/repository"
	pkgch "MandiCast/pkg/clickhouse"
	applogger "MandiCast/pkg/logger"
)

// ClickHouseSchema creates the audit table. Table names are qualified by
// database at construction time.
func ClickHouseSchema(database string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.market_data (
			id String,
			market LowCardinality(String),
			crop LowCardinality(String),
			date Date,
			current_price Float64,
			price_30 Float64,
			price_60 Float64,
			price_90 Float64,
			created_at DateTime64(3, 'UTC')
		) ENGINE = MergeTree
		ORDER BY (market, crop, date, created_at)`, database),
	}
}

// ClickHouseAuditStore keeps prediction records in ClickHouse.
type ClickHouseAuditStore struct {
	ch       *pkgch.Client
	db       *sql.DB
	database string
	table    string
	l        *applogger.Logger
}

func NewClickHouseAuditStore(ch *pkgch.Client, database string, l *applogger.Logger) *ClickHouseAuditStore {
	return &ClickHouseAuditStore{ch: ch, db: ch.DB(), database: database, table: database + ".market_data", l: l}
}

func (s *ClickHouseAuditStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, ClickHouseSchema(s.database))
}

func (s *ClickHouseAuditStore) Append(ctx context.Context, rec *models.PredictionRecord) error {
	return s.AppendBatch(ctx, []*models.PredictionRecord{rec})
}

// AppendBatch inserts records in multi-row VALUES chunks.
func (s *ClickHouseAuditStore) AppendBatch(ctx context.Context, recs []*models.PredictionRecord) error {
	const chunkSize = 1000
	start := time.Now()
	written := 0
	for lo := 0; lo < len(recs); lo += chunkSize {
		hi := min(lo+chunkSize, len(recs))

		values := make([]string, 0, hi-lo)
		args := make([]interface{}, 0, (hi-lo)*9)
		for _, r := range recs[lo:hi] {
			if r == nil || r.Market == "" || r.Crop == "" {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				r.ID, r.Market, r.Crop, r.Date.UTC(),
				r.CurrentPrice, r.Price30, r.Price60, r.Price90,
				r.CreatedAt.UTC(),
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf(`INSERT INTO %s
			(id, market, crop, date, current_price, price_30, price_60, price_90, created_at)
			VALUES %s`, s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse append failed",
					applogger.String("table", s.table),
					applogger.Int("rows", len(values)),
					applogger.Error(err),
				)
			}
			return fmt.Errorf("append predictions: %w", err)
		}
		written += len(values)
	}
	if s.l != nil && written > 0 {
		s.l.Debug("clickhouse append ok",
			applogger.String("table", s.table),
			applogger.Int("rows", written),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

// Latest returns the newest record for (market, crop) or models.ErrNotFound.
func (s *ClickHouseAuditStore) Latest(ctx context.Context, market, crop string) (*models.PredictionRecord, error) {
	q := fmt.Sprintf(`
		SELECT id, market, crop, date, current_price, price_30, price_60, price_90, created_at
		FROM %s
		WHERE market = ? AND crop = ?
		ORDER BY date DESC, created_at DESC
		LIMIT 1`, s.table)

	var rec models.PredictionRecord
	err := s.db.QueryRowContext(ctx, q, market, crop).Scan(
		&rec.ID, &rec.Market, &rec.Crop, &rec.Date,
		&rec.CurrentPrice, &rec.Price30, &rec.Price60, &rec.Price90,
		&rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no prediction for %s/%s: %w", market, crop, models.ErrNotFound)
	}
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse latest query error",
				applogger.String("market", market),
				applogger.String("crop", crop),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("latest prediction: %w", err)
	}
	return &rec, nil
}

func (s *ClickHouseAuditStore) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

// Close is a no-op; the client is closed by its owner.
func (s *ClickHouseAuditStore) Close() error {
	return nil
}

var _ domrepo.AuditStore = (*ClickHouseAuditStore)(nil)
