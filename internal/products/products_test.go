package products

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"

	"foodsafe-backend/internal/shared/telemetry"
)

func TestMain(m *testing.M) {
	telemetry.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func TestNormalizeBarcode(t *testing.T) {
	code, err := NormalizeBarcode(" 0123-4567 8905 ")
	if err != nil {
		t.Fatalf("NormalizeBarcode: %v", err)
	}
	if code != "012345678905" {
		t.Fatalf("unexpected code %q", code)
	}
	for _, bad := range []string{"", "1234", "12345678901234567", "12345abc"} {
		if _, err := NormalizeBarcode(bad); !errors.Is(err, ErrInvalidBarcode) {
			t.Fatalf("expected %q to be rejected, got %v", bad, err)
		}
	}
}

func TestMemoryCatalogLookup(t *testing.T) {
	catalog := NewMemoryCatalog(Product{Barcode: "737628064502", Name: "Peanut Bar", Ingredients: []string{"peanuts", "sugar"}})

	p, err := catalog.Lookup(context.Background(), "737628064502")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if p.Name != "Peanut Bar" || len(p.Ingredients) != 2 {
		t.Fatalf("unexpected product %+v", p)
	}
	p.Ingredients[0] = "changed"
	again, _ := catalog.Lookup(context.Background(), "737628064502")
	if again.Ingredients[0] != "peanuts" {
		t.Fatalf("catalog entry was mutated through a lookup result")
	}
	if _, err := catalog.Lookup(context.Background(), "00000000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenFoodFactsLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v2/product/737628064502.json":
			if r.Header.Get("User-Agent") == "" {
				t.Errorf("expected a User-Agent header")
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"status":1,"product":{"product_name":"Peanut Bar","brands":"Acme","ingredients_text":"Peanuts (roasted), sugar; salt."}}`)
		case "/api/v2/product/11111111.json":
			_, _ = io.WriteString(w, `{"status":1,"product":{"product_name":"Tea","ingredients":[{"text":"black tea"},{"text":" "}]}}`)
		case "/api/v2/product/22222222.json":
			_, _ = io.WriteString(w, `{"status":0,"status_verbose":"product not found"}`)
		case "/api/v2/product/33333333.json":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, "upstream down")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewOpenFoodFactsClient(server.URL+"/", 0)

	p, err := client.Lookup(context.Background(), "737628064502")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if p.Name != "Peanut Bar" || p.Brand != "Acme" {
		t.Fatalf("unexpected product %+v", p)
	}
	if want := []string{"Peanuts", "roasted", "sugar", "salt"}; !reflect.DeepEqual(p.Ingredients, want) {
		t.Fatalf("expected %v, got %v", want, p.Ingredients)
	}

	tea, err := client.Lookup(context.Background(), "11111111")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !reflect.DeepEqual(tea.Ingredients, []string{"black tea"}) {
		t.Fatalf("expected structured ingredients fallback, got %v", tea.Ingredients)
	}

	if _, err := client.Lookup(context.Background(), "22222222"); !IsNotFound(err) {
		t.Fatalf("expected not found for status 0, got %v", err)
	}
	if _, err := client.Lookup(context.Background(), "44444444"); !IsNotFound(err) {
		t.Fatalf("expected not found for 404, got %v", err)
	}
	if _, err := client.Lookup(context.Background(), "33333333"); err == nil || IsNotFound(err) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}
