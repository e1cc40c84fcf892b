package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"MandiCast/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteAuditStore {
	t.Helper()
	s, err := OpenSQLiteAuditStore(filepath.Join(t.TempDir(), "db", "mandi.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Init(context.Background()))
	return s
}

func record(id string, date, created time.Time, p30 float64) *models.PredictionRecord {
	return &models.PredictionRecord{
		ID:           id,
		Market:       "Kolar Mandi",
		Crop:         "Ragi",
		Date:         date,
		CurrentPrice: 2000,
		Price30:      p30,
		Price60:      2160,
		Price90:      2240,
		CreatedAt:    created,
	}
}

func TestSQLiteAuditStore_Latest(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	day1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	t0 := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)

	_, err := s.Latest(ctx, "Kolar Mandi", "Ragi")
	require.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, s.Append(ctx, record("a", day2, t0, 2080)))
	require.NoError(t, s.Append(ctx, record("b", day2, t0.Add(time.Second), 2090)))
	// older date, newest insert
	require.NoError(t, s.Append(ctx, record("c", day1, t0.Add(time.Hour), 1000)))

	got, err := s.Latest(ctx, "Kolar Mandi", "Ragi")
	require.NoError(t, err)
	assert.Equal(t, "b", got.ID)
	assert.Equal(t, 2090.0, got.Price30)
	assert.True(t, got.Date.Equal(day2))
	assert.True(t, got.CreatedAt.Equal(t0.Add(time.Second)))

	_, err = s.Latest(ctx, "Kolar Mandi", "Rice")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, s.Health(ctx))
}

func TestSQLiteAuditStore_DuplicateID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Append(ctx, record("dup", now, now, 1)))
	assert.Error(t, s.Append(ctx, record("dup", now, now, 2)))
}

func TestSQLiteAuditStore_InitIdempotent(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.Init(context.Background()))
}
