// Package seed loads catalog fixtures for the seed tool and the in-memory
// storage driver.
package seed

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"

	_ "embed"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/orderdesk/internal/domain/product"
)

//go:embed products.json
var defaultProducts []byte

type productJSON struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
}

// DefaultProducts returns the built-in demo catalog.
func DefaultProducts() ([]product.Product, error) {
	return DecodeProducts(bytes.NewReader(defaultProducts))
}

// DecodeProducts parses a JSON array of products. Every product needs a
// positive id, a name and a non-negative price.
func DecodeProducts(r io.Reader) ([]product.Product, error) {
	var raw []productJSON
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decode products")
	}

	out := make([]product.Product, len(raw))
	seen := make(map[int64]struct{}, len(raw))
	for i, p := range raw {
		switch {
		case p.ID <= 0:
			return nil, errors.Errorf("product #%d: id must be positive", i)
		case strings.TrimSpace(p.Name) == "":
			return nil, errors.Errorf("product %d: name is required", p.ID)
		case p.Price.IsNegative():
			return nil, errors.Errorf("product %d: price is negative", p.ID)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, errors.Errorf("product %d: duplicate id", p.ID)
		}
		seen[p.ID] = struct{}{}
		out[i] = product.Product{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Price:       p.Price,
		}
	}
	return out, nil
}

// ReadProducts loads products from path. Files ending in .gz are
// decompressed with pgzip. An empty path yields the built-in catalog.
func ReadProducts(path string) ([]product.Product, error) {
	if path == "" {
		return DefaultProducts()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	products, err := DecodeProducts(r)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return products, nil
}
