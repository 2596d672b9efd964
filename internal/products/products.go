package products

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrNotFound       = errors.New("product not found")
	ErrInvalidBarcode = errors.New("barcode is invalid")
)

// Product is the subset of catalog data needed to analyze a scan.
type Product struct {
	Barcode     string   `json:"barcode"`
	Name        string   `json:"name"`
	Brand       string   `json:"brand,omitempty"`
	Ingredients []string `json:"ingredients"`
}

// Lookup resolves a barcode into a product.
type Lookup interface {
	Lookup(ctx context.Context, barcode string) (Product, error)
}

// NormalizeBarcode strips spaces and dashes and checks for 8 to 14 digits
// (EAN-8 through GTIN-14).
func NormalizeBarcode(raw string) (string, error) {
	code := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(raw))
	if len(code) < 8 || len(code) > 14 {
		return "", fmt.Errorf("%w: %q", ErrInvalidBarcode, raw)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q", ErrInvalidBarcode, raw)
		}
	}
	return code, nil
}

// MemoryCatalog is an in-memory Lookup, used in development and tests.
type MemoryCatalog struct {
	mu    sync.RWMutex
	items map[string]Product
}

// NewMemoryCatalog constructs a catalog seeded with products.
func NewMemoryCatalog(products ...Product) *MemoryCatalog {
	c := &MemoryCatalog{items: make(map[string]Product)}
	for _, p := range products {
		c.Add(p)
	}
	return c
}

// Add stores or replaces a product.
func (c *MemoryCatalog) Add(p Product) {
	code, err := NormalizeBarcode(p.Barcode)
	if err != nil {
		code = strings.TrimSpace(p.Barcode)
	}
	p.Barcode = code
	p.Ingredients = append([]string(nil), p.Ingredients...)
	c.mu.Lock()
	c.items[code] = p
	c.mu.Unlock()
}

// Lookup returns the product for barcode.
func (c *MemoryCatalog) Lookup(ctx context.Context, barcode string) (Product, error) {
	if err := ctx.Err(); err != nil {
		return Product{}, err
	}
	code, err := NormalizeBarcode(barcode)
	if err != nil {
		return Product{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.items[code]
	if !ok {
		return Product{}, ErrNotFound
	}
	p.Ingredients = append([]string(nil), p.Ingredients...)
	return p, nil
}

var _ Lookup = (*MemoryCatalog)(nil)
