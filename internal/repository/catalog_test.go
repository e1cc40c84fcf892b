package repository

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalog_Embedded(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bangalore", "Kolar", "Chikkaballapura", "Tumkur"}, c.Names())

	d, err := c.MarketDistrict("Mulbagal")
	require.NoError(t, err)
	assert.Equal(t, "Kolar", d.Name)
}

func TestLoadCatalog_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := "districts:\n  - name: Mysore\n    markets: [\"Mysore APMC\"]\n    crops: [\"Ragi\"]\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mysore"}, c.Names())

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}

func TestParseCatalog_Invalid(t *testing.T) {
	tests := map[string]string{
		"empty":            "districts: []\n",
		"no name":          "districts:\n  - markets: [a]\n    crops: [b]\n",
		"no crops":         "districts:\n  - name: A\n    markets: [a]\n",
		"duplicate market": "districts:\n  - name: A\n    markets: [m]\n    crops: [c]\n  - name: B\n    markets: [m]\n    crops: [c]\n",
		"bad yaml":         "districts: [\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(doc))
			assert.Error(t, err)
		})
	}
}
