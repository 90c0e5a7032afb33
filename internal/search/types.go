// Package search talks to the property-listing collaborators: a ranked
// search backend and an embedding generator for semantic matching.
package search

import (
	"context"
	"errors"
)

var ErrNotConfigured = errors.New("search service not configured")

// Listing is a read-only property record as the search backend returns it.
type Listing struct {
	ID              string  `json:"id"`
	ReferenceNumber string  `json:"reference_number"`
	Title           string  `json:"title"`
	PropertyType    string  `json:"property_type"`
	Location        string  `json:"location"`
	Price           float64 `json:"price"`
	Bedrooms        int     `json:"bedrooms"`
	Bathrooms       int     `json:"bathrooms"`
	URL             string  `json:"url"`
	ImageURL        string  `json:"image_url"`
}

// Filters narrow a query. Nil numeric fields mean "no bound".
type Filters struct {
	PropertyType string
	Location     string
	MinPrice     *int
	MaxPrice     *int
	Bedrooms     *int
}

// Query is one search request. An empty Vector degrades the request to
// keyword-only ranking; SearchFields scopes keyword matching to the named
// fields (used for reference-number lookups).
type Query struct {
	Text         string
	Vector       []float32
	Filters      Filters
	Top          int
	SearchFields []string
}

// Result carries the ranked page plus the backend's total match count.
type Result struct {
	Total    int64
	Listings []Listing
}

// Provider is the external search collaborator.
type Provider interface {
	Search(ctx context.Context, q Query) (Result, error)
}

// Embedder is the external embedding collaborator. A nil vector or an error
// means callers should fall back to keyword-only search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
