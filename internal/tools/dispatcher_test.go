package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ezdanlabs/sara/internal/search"
)

type fakeProvider struct {
	mu      sync.Mutex
	lastQ   search.Query
	result  search.Result
	err     error
	queries int
}

func (f *fakeProvider) Search(_ context.Context, q search.Query) (search.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQ = q
	f.queries++
	return f.result, f.err
}

func (f *fakeProvider) last() search.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastQ
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return f.vec, f.err
}

type recordingSink struct {
	mu      sync.Mutex
	calls   []string
	outputs map[string]string
}

func (r *recordingSink) SendFunctionOutput(_ context.Context, callID, output string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "send_output")
	if r.outputs == nil {
		r.outputs = map[string]string{}
	}
	r.outputs[callID] = output
	return nil
}

func (r *recordingSink) CreateResponse(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "create_response")
	return nil
}

func listings(n int) []search.Listing {
	out := make([]search.Listing, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, search.Listing{
			ReferenceNumber: fmt.Sprintf("EOA2-3BHK-FF-%c", 'A'+i),
			Title:           "3BHK Apartment in Ezdan Oasis",
			PropertyType:    "Apartment",
			Location:        "Al Wakra",
			Price:           5500,
			Bedrooms:        3,
			Bathrooms:       2,
		})
	}
	return out
}

func TestSearchPropertiesAppliesFilters(t *testing.T) {
	provider := &fakeProvider{result: search.Result{Total: 2, Listings: listings(2)}}
	d := NewDispatcher(provider, nil, nil, time.Second)

	raw := `{"query":"apartment","location":"Al Wakra","bedrooms":3,"min_price":4000}`
	out := d.Dispatch(context.Background(), "c1", "search_properties", raw)

	var payload struct {
		Found      int              `json:"found"`
		Showing    int              `json:"showing"`
		Properties []listingSummary `json:"properties"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("result is not JSON: %v\n%s", err, out)
	}
	if payload.Found != 2 || payload.Showing != 2 || len(payload.Properties) != 2 {
		t.Fatalf("payload = %+v", payload)
	}

	q := provider.last()
	if q.Filters.Location != "Al Wakra" {
		t.Fatalf("location filter = %q", q.Filters.Location)
	}
	if q.Filters.Bedrooms == nil || *q.Filters.Bedrooms != 3 {
		t.Fatalf("bedrooms filter = %v", q.Filters.Bedrooms)
	}
	if q.Filters.MinPrice == nil || *q.Filters.MinPrice != 4000 {
		t.Fatalf("min price filter = %v", q.Filters.MinPrice)
	}
	if q.Filters.MaxPrice != nil {
		t.Fatalf("max price filter = %v, want nil", q.Filters.MaxPrice)
	}
	if q.Top != searchResultCap {
		t.Fatalf("top = %d, want %d", q.Top, searchResultCap)
	}
}

func TestSearchPropertiesEmbeddingDegradesToKeyword(t *testing.T) {
	provider := &fakeProvider{result: search.Result{}}
	d := NewDispatcher(provider, &fakeEmbedder{err: errors.New("embedding down")}, nil, time.Second)

	out := d.Dispatch(context.Background(), "c1", "search_properties", `{"query":"villa"}`)

	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if _, hasErr := payload["error"]; hasErr {
		t.Fatalf("embedding failure surfaced as error: %s", out)
	}
	if len(provider.last().Vector) != 0 {
		t.Fatalf("vector = %v, want none", provider.last().Vector)
	}
}

func TestSearchPropertiesUsesVectorWhenAvailable(t *testing.T) {
	provider := &fakeProvider{result: search.Result{Total: 1, Listings: listings(1)}}
	d := NewDispatcher(provider, &fakeEmbedder{vec: []float32{0.1, 0.2}}, nil, time.Second)

	d.Dispatch(context.Background(), "c1", "search_properties", `{"query":"villa"}`)
	if len(provider.last().Vector) != 2 {
		t.Fatalf("vector = %v, want embedded vector", provider.last().Vector)
	}
}

func TestSearchPropertiesNoMatches(t *testing.T) {
	provider := &fakeProvider{result: search.Result{}}
	d := NewDispatcher(provider, nil, nil, time.Second)

	out := d.Dispatch(context.Background(), "c1", "search_properties", `{"query":"castle"}`)

	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if payload["found"] != float64(0) {
		t.Fatalf("found = %v, want 0", payload["found"])
	}
	if payload["message"] != "No properties found matching your criteria." {
		t.Fatalf("message = %v", payload["message"])
	}
}

func TestSearchPropertiesProviderFailureBecomesErrorPayload(t *testing.T) {
	provider := &fakeProvider{err: errors.New("connection refused")}
	d := NewDispatcher(provider, nil, nil, time.Second)

	out := d.Dispatch(context.Background(), "c1", "search_properties", `{"query":"villa"}`)

	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if payload["error"] == nil {
		t.Fatalf("payload = %s, want error object", out)
	}
}

func TestSearchPropertiesUnconfiguredBackend(t *testing.T) {
	provider := &fakeProvider{err: search.ErrNotConfigured}
	d := NewDispatcher(provider, nil, nil, time.Second)

	out := d.Dispatch(context.Background(), "c1", "search_properties", `{"query":"villa"}`)
	var payload map[string]any
	_ = json.Unmarshal([]byte(out), &payload)
	if payload["error"] != "Search service not configured" {
		t.Fatalf("error = %v", payload["error"])
	}
}

func TestGetPropertyDetailsFound(t *testing.T) {
	provider := &fakeProvider{result: search.Result{Total: 1, Listings: listings(1)}}
	d := NewDispatcher(provider, nil, nil, time.Second)

	out := d.Dispatch(context.Background(), "c1", "get_property_details", `{"reference_number":"EOA2-3BHK-FF-A"}`)

	var payload struct {
		Found    bool           `json:"found"`
		Property map[string]any `json:"property"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if !payload.Found {
		t.Fatalf("found = false, want true")
	}
	if payload.Property["reference"] != "EOA2-3BHK-FF-A" {
		t.Fatalf("property = %v", payload.Property)
	}

	q := provider.last()
	if len(q.SearchFields) != 1 || q.SearchFields[0] != "reference_number" {
		t.Fatalf("search fields = %v", q.SearchFields)
	}
	if q.Top != 1 {
		t.Fatalf("top = %d, want 1", q.Top)
	}
}

func TestGetPropertyDetailsUnknownReference(t *testing.T) {
	provider := &fakeProvider{result: search.Result{}}
	d := NewDispatcher(provider, nil, nil, time.Second)

	out := d.Dispatch(context.Background(), "c1", "get_property_details", `{"reference_number":"ZZ-NOPE-99"}`)

	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if payload["found"] != false {
		t.Fatalf("found = %v, want false", payload["found"])
	}
	if payload["message"] != "No property found with reference number ZZ-NOPE-99" {
		t.Fatalf("message = %v", payload["message"])
	}
}

func TestUnknownToolName(t *testing.T) {
	d := NewDispatcher(&fakeProvider{}, nil, nil, time.Second)

	out := d.Dispatch(context.Background(), "c1", "book_viewing", `{}`)
	var payload map[string]any
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if payload["error"] != "Unknown tool called." {
		t.Fatalf("error = %v", payload["error"])
	}
}

func TestMalformedArgumentsBecomeErrorPayload(t *testing.T) {
	d := NewDispatcher(&fakeProvider{}, nil, nil, time.Second)

	for _, tool := range []string{"search_properties", "get_property_details"} {
		out := d.Dispatch(context.Background(), "c1", tool, `{"query":`)
		var payload map[string]any
		if err := json.Unmarshal([]byte(out), &payload); err != nil {
			t.Fatalf("%s: result is not JSON: %v", tool, err)
		}
		if payload["error"] == nil {
			t.Fatalf("%s: payload = %s, want error object", tool, out)
		}
	}
}

func TestHandleCallDeliversOutputThenContinues(t *testing.T) {
	provider := &fakeProvider{result: search.Result{Total: 1, Listings: listings(1)}}
	d := NewDispatcher(provider, nil, nil, time.Second)
	sink := &recordingSink{}

	d.HandleCall(context.Background(), sink, "call-7", "search_properties", `{"query":"apartment"}`)

	if len(sink.calls) != 2 || sink.calls[0] != "send_output" || sink.calls[1] != "create_response" {
		t.Fatalf("sink calls = %v, want output before response create", sink.calls)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(sink.outputs["call-7"]), &payload); err != nil {
		t.Fatalf("delivered output is not JSON: %v", err)
	}
	if payload["properties"] == nil && payload["error"] == nil {
		t.Fatalf("delivered payload missing result keys: %v", payload)
	}
}

func TestCatalogDefinesBothTools(t *testing.T) {
	cat := Catalog()
	if len(cat) != 2 {
		t.Fatalf("catalog size = %d, want 2", len(cat))
	}
	names := map[string]bool{}
	for _, tool := range cat {
		if tool.Type != "function" {
			t.Fatalf("tool %s type = %q, want function", tool.Name, tool.Type)
		}
		names[tool.Name] = true
	}
	if !names["search_properties"] || !names["get_property_details"] {
		t.Fatalf("catalog names = %v", names)
	}
}
