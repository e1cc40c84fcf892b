package repository

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"MandiCast/internal/domain/models"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = "\ufeffState Name,District Name,Market Name,Variety,Group,Arrivals (Tonnes),Modal Price (Rs./Quintal),Reported Date\n" +
	"Karnataka,Bangalore,Bangalore Central,Sona Masuri,Cereals,12.5,\"2,100\",2024-01-02\n" +
	"Karnataka,Bangalore,Bangalore Central,Sona Masuri,Cereals,,NaN,03-01-2024\n" +
	"Karnataka,Kolar,Kolar Mandi,Local,Pulses,4,1800,not a date\n" +
	"Karnataka,Kolar,Kolar Mandi,Local,Pulses,4,1750.25,04 Jan 2024\n"

func TestReadDataset(t *testing.T) {
	tbl, skipped, err := ReadDataset(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Equal(t, 3, tbl.Len())
	assert.True(t, tbl.HasColumn(models.ColMarket))
	assert.False(t, tbl.HasColumn("Min Price"))

	want := models.RawRecord{
		Market:   "Bangalore Central",
		Variety:  "Sona Masuri",
		Group:    "Cereals",
		District: "Bangalore",
		Date:     time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Price:    2100,
		HasPrice: true,
		Extra:    map[string]string{"State Name": "Karnataka", "Arrivals (Tonnes)": "12.5"},
	}
	if diff := cmp.Diff(want, tbl.Records[0]); diff != "" {
		t.Errorf("first record mismatch (-want +got):\n%s", diff)
	}

	assert.False(t, tbl.Records[1].HasPrice)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), tbl.Records[1].Date)
	assert.Equal(t, 1750.25, tbl.Records[2].Price)
}

func TestReadDataset_Errors(t *testing.T) {
	_, _, err := ReadDataset(strings.NewReader(""))
	assert.Error(t, err)

	_, _, err = ReadDataset(strings.NewReader("Market Name,Modal Price (Rs./Quintal)\nKolar,100\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), models.ColDate)
}

func TestLoadDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prices.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	tbl, err := LoadDataset(path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, tbl.Source)
	assert.Equal(t, 3, tbl.Len())

	_, err = LoadDataset(filepath.Join(t.TempDir(), "missing.csv"), nil)
	assert.Error(t, err)
}
