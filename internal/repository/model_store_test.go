package repository

import (
	"encoding/json"
	"io"
	"os"
	"testing"

	"MandiCast/internal/domain/models"
	domsvc "MandiCast/internal/domain/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scalarModel struct {
	V float64 `json:"v"`
}

func (m scalarModel) Predict([]float64) (float64, error) { return m.V, nil }
func (m scalarModel) Save(w io.Writer) error             { return json.NewEncoder(w).Encode(m) }

func decodeScalar(r io.Reader) (domsvc.PriceModel, error) {
	var m scalarModel
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

func TestFileModelStore(t *testing.T) {
	dir := t.TempDir()
	s := NewFileModelStore(dir+"/models", decodeScalar)
	key := "Kolar_Kolar_Mandi_Ragi"

	_, err := s.Load(key)
	require.ErrorIs(t, err, models.ErrModelAbsent)

	require.NoError(t, s.Save(key, scalarModel{V: 0.42}))
	m, err := s.Load(key)
	require.NoError(t, err)
	got, err := m.Predict(nil)
	require.NoError(t, err)
	assert.Equal(t, 0.42, got)

	entries, err := os.ReadDir(dir + "/models")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, key+".json", entries[0].Name())
}

func TestFileModelStore_Corrupt(t *testing.T) {
	s := NewFileModelStore(t.TempDir(), decodeScalar)
	require.NoError(t, os.WriteFile(s.Path("k"), []byte("{"), 0o644))

	_, err := s.Load("k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrModelAbsent)
}
