// Package tools maps agent-issued function calls onto the listing search
// collaborators and feeds results back to the agent connection.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ezdanlabs/sara/internal/observability"
	"github.com/ezdanlabs/sara/internal/search"
)

const searchResultCap = 10

// AgentSink is the slice of the agent connection a dispatch needs: deliver
// the function output, then ask the agent to keep talking.
type AgentSink interface {
	SendFunctionOutput(ctx context.Context, callID, output string) error
	CreateResponse(ctx context.Context) error
}

type Dispatcher struct {
	provider search.Provider
	embedder search.Embedder
	metrics  *observability.Metrics
	timeout  time.Duration
}

// NewDispatcher wires the search collaborators. embedder may be nil; search
// then runs keyword-only.
func NewDispatcher(provider search.Provider, embedder search.Embedder, metrics *observability.Metrics, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Dispatcher{provider: provider, embedder: embedder, metrics: metrics, timeout: timeout}
}

// Dispatch runs one tool call and always returns a JSON object string:
// a result payload or an {"error": ...} object. It never panics or returns
// malformed output, whatever the collaborators do.
func (d *Dispatcher) Dispatch(ctx context.Context, callID, name, rawArgs string) string {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var out string
	switch name {
	case "search_properties":
		out = d.searchProperties(ctx, rawArgs)
	case "get_property_details":
		out = d.getPropertyDetails(ctx, rawArgs)
	default:
		log.Printf("tool call %s: unknown tool %q", callID, name)
		d.countDispatch(name, "unknown_tool")
		return mustJSON(map[string]any{"error": "Unknown tool called."})
	}
	return out
}

// HandleCall dispatches and delivers the result to the agent as a
// function-output item, then requests a follow-up response. It is designed
// to run as its own goroutine; delivery failures are logged, never fatal.
func (d *Dispatcher) HandleCall(ctx context.Context, sink AgentSink, callID, name, rawArgs string) {
	log.Printf("tool call %s: %s(%s)", callID, name, rawArgs)
	result := d.Dispatch(ctx, callID, name, rawArgs)

	if err := sink.SendFunctionOutput(ctx, callID, result); err != nil {
		log.Printf("tool call %s: deliver output failed: %v", callID, err)
		return
	}
	if err := sink.CreateResponse(ctx); err != nil {
		log.Printf("tool call %s: response create failed: %v", callID, err)
	}
}

type searchArgs struct {
	Query        string `json:"query"`
	PropertyType string `json:"property_type"`
	Location     string `json:"location"`
	MinPrice     *int   `json:"min_price"`
	MaxPrice     *int   `json:"max_price"`
	Bedrooms     *int   `json:"bedrooms"`
}

type listingSummary struct {
	Reference string  `json:"reference"`
	Title     string  `json:"title"`
	Type      string  `json:"type"`
	Location  string  `json:"location"`
	PriceQAR  float64 `json:"price_qar"`
	Bedrooms  int     `json:"bedrooms"`
	Bathrooms int     `json:"bathrooms"`
}

func (d *Dispatcher) searchProperties(ctx context.Context, rawArgs string) string {
	var args searchArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		d.countDispatch("search_properties", "bad_arguments")
		return errorJSON(fmt.Sprintf("Invalid search arguments: %v", err))
	}

	q := search.Query{
		Text:   args.Query,
		Vector: d.embedQuery(ctx, args.Query),
		Filters: search.Filters{
			PropertyType: args.PropertyType,
			Location:     args.Location,
			MinPrice:     args.MinPrice,
			MaxPrice:     args.MaxPrice,
			Bedrooms:     args.Bedrooms,
		},
		Top: searchResultCap,
	}

	res, err := d.provider.Search(ctx, q)
	if err != nil {
		d.countDispatch("search_properties", "error")
		if errors.Is(err, search.ErrNotConfigured) {
			return errorJSON("Search service not configured")
		}
		return errorJSON(fmt.Sprintf("Search error: %v", err))
	}

	d.countDispatch("search_properties", "ok")
	if len(res.Listings) == 0 {
		return mustJSON(map[string]any{
			"found":   0,
			"message": "No properties found matching your criteria.",
		})
	}

	summaries := make([]listingSummary, 0, len(res.Listings))
	for _, l := range res.Listings {
		summaries = append(summaries, summarize(l))
	}
	return mustJSON(map[string]any{
		"found":      res.Total,
		"showing":    len(summaries),
		"properties": summaries,
	})
}

type detailArgs struct {
	ReferenceNumber string `json:"reference_number"`
}

func (d *Dispatcher) getPropertyDetails(ctx context.Context, rawArgs string) string {
	var args detailArgs
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		d.countDispatch("get_property_details", "bad_arguments")
		return errorJSON(fmt.Sprintf("Invalid lookup arguments: %v", err))
	}

	q := search.Query{
		Text:         args.ReferenceNumber,
		SearchFields: []string{"reference_number"},
		// Vector fallback catches near-miss phrasing of the reference.
		Vector: d.embedQuery(ctx, "property reference "+args.ReferenceNumber),
		Top:    1,
	}

	res, err := d.provider.Search(ctx, q)
	if err != nil {
		d.countDispatch("get_property_details", "error")
		if errors.Is(err, search.ErrNotConfigured) {
			return errorJSON("Search service not configured")
		}
		return errorJSON(fmt.Sprintf("Lookup error: %v", err))
	}

	d.countDispatch("get_property_details", "ok")
	if len(res.Listings) == 0 {
		return mustJSON(map[string]any{
			"found":   false,
			"message": fmt.Sprintf("No property found with reference number %s", args.ReferenceNumber),
		})
	}

	l := res.Listings[0]
	return mustJSON(map[string]any{
		"found": true,
		"property": map[string]any{
			"reference": l.ReferenceNumber,
			"title":     l.Title,
			"type":      l.PropertyType,
			"location":  l.Location,
			"price_qar": l.Price,
			"bedrooms":  l.Bedrooms,
			"bathrooms": l.Bathrooms,
			"url":       l.URL,
		},
	})
}

// embedQuery degrades to nil on any embedding failure; search then runs
// keyword-only rather than failing the tool call.
func (d *Dispatcher) embedQuery(ctx context.Context, text string) []float32 {
	if d.embedder == nil {
		return nil
	}
	vec, err := d.embedder.Embed(ctx, text)
	if err != nil {
		if !errors.Is(err, search.ErrNotConfigured) {
			log.Printf("embedding unavailable, keyword-only search: %v", err)
		}
		return nil
	}
	return vec
}

func (d *Dispatcher) countDispatch(tool, outcome string) {
	if d.metrics == nil {
		return
	}
	d.metrics.ToolDispatches.WithLabelValues(tool, outcome).Inc()
}

func summarize(l search.Listing) listingSummary {
	return listingSummary{
		Reference: l.ReferenceNumber,
		Title:     l.Title,
		Type:      l.PropertyType,
		Location:  l.Location,
		PriceQAR:  l.Price,
		Bedrooms:  l.Bedrooms,
		Bathrooms: l.Bathrooms,
	}
}

func errorJSON(message string) string {
	return mustJSON(map[string]any{"error": message})
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{"error":"internal encoding failure"}`
	}
	return string(b)
}
