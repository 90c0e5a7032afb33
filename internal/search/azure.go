package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const azureAPIVersion = "2024-07-01"

const listingSelectFields = "id,reference_number,title,property_type,location,price,bedrooms,bathrooms,url,image_url"

// AzureProvider queries an Azure AI Search index over REST.
type AzureProvider struct {
	endpoint string
	apiKey   string
	index    string
	client   *http.Client
}

func NewAzureProvider(endpoint, apiKey, index string) *AzureProvider {
	return &AzureProvider{
		endpoint: strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		apiKey:   apiKey,
		index:    index,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type azureSearchResponse struct {
	Count    int64     `json:"@odata.count"`
	Listings []Listing `json:"value"`
}

func (p *AzureProvider) Search(ctx context.Context, q Query) (Result, error) {
	if p.endpoint == "" || p.apiKey == "" {
		return Result{}, ErrNotConfigured
	}

	top := q.Top
	if top <= 0 {
		top = 10
	}
	payload := map[string]any{
		"search":    q.Text,
		"top":       top,
		"select":    listingSelectFields,
		"count":     true,
		"queryType": "simple",
	}
	if len(q.SearchFields) > 0 {
		payload["searchFields"] = strings.Join(q.SearchFields, ",")
	}
	if filter := buildFilter(q.Filters); filter != "" {
		payload["filter"] = filter
	}
	if len(q.Vector) > 0 {
		payload["vectorQueries"] = []map[string]any{
			{
				"kind":   "vector",
				"vector": q.Vector,
				"fields": "content_vector",
				"k":      top,
			},
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, fmt.Errorf("marshal search payload: %w", err)
	}

	url := fmt.Sprintf("%s/indexes/%s/docs/search?api-version=%s", p.endpoint, p.index, azureAPIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", p.apiKey)

	res, err := p.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("send search request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return Result{}, fmt.Errorf("search status %d: %s", res.StatusCode, string(snippet))
	}

	var parsed azureSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return Result{}, fmt.Errorf("decode search response: %w", err)
	}
	return Result{Total: parsed.Count, Listings: parsed.Listings}, nil
}

// buildFilter renders Filters as an OData filter expression. Azure's
// search.ismatch gives the location filter substring/fuzzy behaviour.
func buildFilter(f Filters) string {
	var parts []string
	if f.PropertyType != "" {
		parts = append(parts, fmt.Sprintf("property_type eq '%s'", escapeODataString(f.PropertyType)))
	}
	if f.Location != "" {
		parts = append(parts, fmt.Sprintf("search.ismatch('%s', 'location')", escapeODataString(f.Location)))
	}
	if f.MinPrice != nil {
		parts = append(parts, fmt.Sprintf("price ge %d", *f.MinPrice))
	}
	if f.MaxPrice != nil {
		parts = append(parts, fmt.Sprintf("price le %d", *f.MaxPrice))
	}
	if f.Bedrooms != nil {
		parts = append(parts, fmt.Sprintf("bedrooms eq %d", *f.Bedrooms))
	}
	return strings.Join(parts, " and ")
}

func escapeODataString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
