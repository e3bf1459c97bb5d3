package seed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProducts(t *testing.T) {
	products, err := DefaultProducts()
	require.NoError(t, err)
	require.Len(t, products, 9)
	assert.Equal(t, int64(1), products[0].ID)
	assert.Equal(t, "89.00", products[0].Price.StringFixed(2))
}

func TestDecodeProducts_Invalid(t *testing.T) {
	tests := map[string]string{
		"not json":     `{`,
		"zero id":      `[{"id":0,"name":"x","price":"1"}]`,
		"no name":      `[{"id":1,"name":" ","price":"1"}]`,
		"negative":     `[{"id":1,"name":"x","price":"-1"}]`,
		"duplicate id": `[{"id":1,"name":"x","price":"1"},{"id":1,"name":"y","price":"2"}]`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeProducts(strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}

func TestReadProducts_Gzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "products.json.gz")

	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(`[{"id":5,"name":"Cable","price":"3.20"}]`))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	products, err := ReadProducts(path)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Cable", products[0].Name)

	plain := filepath.Join(dir, "products.json")
	require.NoError(t, os.WriteFile(plain, []byte(`[{"id":6,"name":"Hub","price":"10"}]`), 0o600))
	products, err = ReadProducts(plain)
	require.NoError(t, err)
	assert.Equal(t, int64(6), products[0].ID)

	_, err = ReadProducts(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	products, err = ReadProducts("")
	require.NoError(t, err)
	assert.Len(t, products, 9)
}
