package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAzureSearchBuildsHybridRequest(t *testing.T) {
	var captured map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "sk" {
			t.Errorf("api-key header = %q, want %q", r.Header.Get("api-key"), "sk")
		}
		if !strings.Contains(r.URL.Path, "/indexes/props/docs/search") {
			t.Errorf("path = %q, want index search path", r.URL.Path)
		}
		if got := r.URL.Query().Get("api-version"); got != azureAPIVersion {
			t.Errorf("api-version = %q, want %q", got, azureAPIVersion)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"@odata.count": 2,
			"value": []map[string]any{
				{"reference_number": "EOA2-3BHK-FF-A", "title": "3BHK Apartment", "location": "Al Wakra", "price": 5500, "bedrooms": 3, "bathrooms": 2},
				{"reference_number": "EOA2-3BHK-FF-B", "title": "3BHK Apartment", "location": "Al Wakra", "price": 5800, "bedrooms": 3, "bathrooms": 2},
			},
		})
	}))
	defer ts.Close()

	p := NewAzureProvider(ts.URL, "sk", "props")
	minPrice, bedrooms := 4000, 3
	res, err := p.Search(context.Background(), Query{
		Text:   "apartment",
		Vector: []float32{0.1, 0.2},
		Filters: Filters{
			Location: "Al Wakra",
			MinPrice: &minPrice,
			Bedrooms: &bedrooms,
		},
		Top: 10,
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if res.Total != 2 || len(res.Listings) != 2 {
		t.Fatalf("result = total %d, %d listings, want 2/2", res.Total, len(res.Listings))
	}
	if res.Listings[0].ReferenceNumber != "EOA2-3BHK-FF-A" {
		t.Fatalf("first reference = %q", res.Listings[0].ReferenceNumber)
	}

	filter, _ := captured["filter"].(string)
	for _, want := range []string{"search.ismatch('Al Wakra', 'location')", "price ge 4000", "bedrooms eq 3"} {
		if !strings.Contains(filter, want) {
			t.Fatalf("filter = %q, missing %q", filter, want)
		}
	}
	if strings.Contains(filter, "price le") {
		t.Fatalf("filter = %q, unexpected max price bound", filter)
	}
	if top, _ := captured["top"].(float64); top != 10 {
		t.Fatalf("top = %v, want 10", captured["top"])
	}
	if _, ok := captured["vectorQueries"]; !ok {
		t.Fatalf("vectorQueries missing from hybrid request: %v", captured)
	}
}

func TestAzureSearchOmitsVectorWhenAbsent(t *testing.T) {
	var captured map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{"@odata.count": 0, "value": []any{}})
	}))
	defer ts.Close()

	p := NewAzureProvider(ts.URL, "sk", "props")
	if _, err := p.Search(context.Background(), Query{Text: "villa"}); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if _, ok := captured["vectorQueries"]; ok {
		t.Fatalf("vectorQueries present in keyword-only request")
	}
	if _, ok := captured["filter"]; ok {
		t.Fatalf("filter present with no filters set")
	}
}

func TestAzureSearchScopesSearchFields(t *testing.T) {
	var captured map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{"@odata.count": 1, "value": []any{}})
	}))
	defer ts.Close()

	p := NewAzureProvider(ts.URL, "sk", "props")
	_, err := p.Search(context.Background(), Query{
		Text:         "JG-SHOP-A10",
		Top:          1,
		SearchFields: []string{"reference_number"},
	})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got, _ := captured["searchFields"].(string); got != "reference_number" {
		t.Fatalf("searchFields = %q, want reference_number", got)
	}
}

func TestAzureSearchNonOKStatusIsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	p := NewAzureProvider(ts.URL, "sk", "props")
	if _, err := p.Search(context.Background(), Query{Text: "x"}); err == nil {
		t.Fatalf("Search() = nil error, want status error")
	}
}

func TestUnconfiguredProviderReturnsSentinel(t *testing.T) {
	p := NewAzureProvider("", "", "props")
	if _, err := p.Search(context.Background(), Query{Text: "x"}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("error = %v, want ErrNotConfigured", err)
	}

	var d disabledProvider
	if _, err := d.Search(context.Background(), Query{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("disabled provider error = %v, want ErrNotConfigured", err)
	}
}

func TestEscapeODataString(t *testing.T) {
	if got := escapeODataString("M'aidez"); got != "M''aidez" {
		t.Fatalf("escaped = %q", got)
	}
}
