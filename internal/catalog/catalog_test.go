package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `[
  {"brand_name": "Paracip 500", "composition": "Paracetamol 500mg", "price": 30, "keywords": ["fever", "paracetamol"]},
  {"brand_name": "Coldact", "composition": "Chlorpheniramine + Phenylephrine", "price": "45.50", "keywords": ["cold", "SNEEZING"]},
  {"brand_name": "  ", "composition": "ignored", "price": null, "keywords": []}
]`

func TestDecodeSkipsBlankBrands(t *testing.T) {
	c, err := Decode(strings.NewReader(sampleCatalog))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
}

func TestLookup(t *testing.T) {
	c, err := Decode(strings.NewReader(sampleCatalog))
	require.NoError(t, err)

	tests := []struct {
		query string
		want  []string
	}{
		{"What does Paracip 500 cost?", []string{"Paracip 500"}},
		{"paracip", []string{"Paracip 500"}},
		{"medicine for constant sneezing", []string{"Coldact"}},
		{"I have fever and a cold", []string{"Paracip 500", "Coldact"}},
		{"hello", nil},
		{"   ", nil},
	}
	for _, tt := range tests {
		var got []string
		for _, p := range c.Lookup(tt.query) {
			got = append(got, p.BrandName)
		}
		assert.Equal(t, tt.want, got, "query %q", tt.query)
	}
}

func TestPriceAcceptsNumbersAndStrings(t *testing.T) {
	c, err := Decode(strings.NewReader(sampleCatalog))
	require.NoError(t, err)
	products := c.Lookup("fever cold")
	require.Len(t, products, 2)
	assert.Equal(t, Price("30"), products[0].Price)
	assert.Equal(t, Price("45.50"), products[1].Price)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "products.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	missing, err := Load(filepath.Join(dir, "nope.json"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Equal(t, 0, missing.Len())
	assert.Empty(t, missing.Lookup("fever"))
}

func TestNilCatalogIsSafe(t *testing.T) {
	var c *Catalog
	assert.Equal(t, 0, c.Len())
	assert.Nil(t, c.Lookup("fever"))
}
