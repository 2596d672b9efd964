package products

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"foodsafe-backend/internal/analysis"
	"foodsafe-backend/internal/shared/telemetry"
)

const (
	DefaultOpenFoodFactsURL = "https://world.openfoodfacts.org"
	defaultLookupTimeout    = 10 * time.Second
	userAgent               = "foodsafe-backend/1.0"
)

// OpenFoodFactsClient looks products up through the Open Food Facts v2 API.
type OpenFoodFactsClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewOpenFoodFactsClient constructs a client. An empty baseURL uses the
// public Open Food Facts host.
func NewOpenFoodFactsClient(baseURL string, timeout time.Duration) *OpenFoodFactsClient {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultOpenFoodFactsURL
	}
	if timeout <= 0 {
		timeout = defaultLookupTimeout
	}
	return &OpenFoodFactsClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type offResponse struct {
	Status  int `json:"status"`
	Product struct {
		ProductName     string `json:"product_name"`
		Brands          string `json:"brands"`
		IngredientsText string `json:"ingredients_text"`
		Ingredients     []struct {
			Text string `json:"text"`
		} `json:"ingredients"`
	} `json:"product"`
}

// Lookup fetches the product for barcode.
func (c *OpenFoodFactsClient) Lookup(ctx context.Context, barcode string) (Product, error) {
	code, err := NormalizeBarcode(barcode)
	if err != nil {
		return Product{}, err
	}

	endpoint := fmt.Sprintf("%s/api/v2/product/%s.json?fields=product_name,brands,ingredients_text,ingredients", c.baseURL, url.PathEscape(code))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Product{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Product{}, fmt.Errorf("product lookup: %w", err)
	}
	defer resp.Body.Close()

	telemetry.Info("product.lookup", map[string]any{
		"barcode":     code,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode == http.StatusNotFound {
		return Product{}, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Product{}, fmt.Errorf("product lookup http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed offResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Product{}, fmt.Errorf("product lookup decode: %w", err)
	}
	if parsed.Status != 1 {
		return Product{}, ErrNotFound
	}

	ingredients := analysis.SplitIngredientText(parsed.Product.IngredientsText)
	if len(ingredients) == 0 {
		for _, ing := range parsed.Product.Ingredients {
			if text := strings.TrimSpace(ing.Text); text != "" {
				ingredients = append(ingredients, text)
			}
		}
	}
	return Product{
		Barcode:     code,
		Name:        strings.TrimSpace(parsed.Product.ProductName),
		Brand:       strings.TrimSpace(parsed.Product.Brands),
		Ingredients: ingredients,
	}, nil
}

// IsNotFound reports whether err means the barcode is unknown.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

var _ Lookup = (*OpenFoodFactsClient)(nil)
