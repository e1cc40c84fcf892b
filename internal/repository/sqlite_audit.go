package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"MandiCast/internal/domain/models"
	domrepo "MandiCast/internal/domain/repository"
	applogger "MandiCast/pkg/logger"

	_ "modernc.org/sqlite"
)

const (
	sqliteDateLayout = "2006-01-02"

	// fixed width so created_at sorts lexically
	sqliteTSLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS market_data (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		market TEXT NOT NULL,
		crop TEXT NOT NULL,
		date TEXT NOT NULL,
		current_price REAL,
		price_30 REAL,
		price_60 REAL,
		price_90 REAL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_market_data_key ON market_data (market, crop, date)`,
}

// SQLiteAuditStore keeps prediction records in a local SQLite file.
type SQLiteAuditStore struct {
	db *sql.DB
	l  *applogger.Logger
}

// OpenSQLiteAuditStore opens (or creates) the database at path.
func OpenSQLiteAuditStore(path string, l *applogger.Logger) (*SQLiteAuditStore, error) {
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// one writer; WAL lets readers proceed alongside it
	db.SetMaxOpenConns(1)
	for _, p := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite %s: %w", p, err)
		}
	}
	return &SQLiteAuditStore{db: db, l: l}, nil
}

func (s *SQLiteAuditStore) Init(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteAuditStore) Append(ctx context.Context, rec *models.PredictionRecord) error {
	const q = `INSERT INTO market_data
		(id, market, crop, date, current_price, price_30, price_60, price_90, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		rec.ID,
		rec.Market,
		rec.Crop,
		rec.Date.UTC().Format(sqliteDateLayout),
		rec.CurrentPrice,
		rec.Price30,
		rec.Price60,
		rec.Price90,
		rec.CreatedAt.UTC().Format(sqliteTSLayout),
	)
	if err != nil {
		if s.l != nil {
			s.l.Error("sqlite append failed",
				applogger.String("market", rec.Market),
				applogger.String("crop", rec.Crop),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("append prediction: %w", err)
	}
	return nil
}

// Latest returns the newest record for (market, crop) or models.ErrNotFound.
func (s *SQLiteAuditStore) Latest(ctx context.Context, market, crop string) (*models.PredictionRecord, error) {
	const q = `SELECT id, market, crop, date, current_price, price_30, price_60, price_90, created_at
		FROM market_data
		WHERE market = ? AND crop = ?
		ORDER BY date DESC, created_at DESC, seq DESC
		LIMIT 1`
	var (
		rec           models.PredictionRecord
		date, created string
	)
	err := s.db.QueryRowContext(ctx, q, market, crop).Scan(
		&rec.ID, &rec.Market, &rec.Crop, &date,
		&rec.CurrentPrice, &rec.Price30, &rec.Price60, &rec.Price90,
		&created,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no prediction for %s/%s: %w", market, crop, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest prediction: %w", err)
	}
	if rec.Date, err = time.Parse(sqliteDateLayout, date); err != nil {
		return nil, fmt.Errorf("latest prediction date: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(sqliteTSLayout, created); err != nil {
		return nil, fmt.Errorf("latest prediction created_at: %w", err)
	}
	return &rec, nil
}

func (s *SQLiteAuditStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteAuditStore) Close() error {
	return s.db.Close()
}

var _ domrepo.AuditStore = (*SQLiteAuditStore)(nil)
