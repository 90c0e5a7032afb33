package search

import (
	"context"
	"strings"
)

// Options selects and configures the listing collaborators.
type Options struct {
	SearchEndpoint string
	SearchAPIKey   string
	IndexName      string

	DatabaseURL string

	OpenAIEndpoint      string
	OpenAIAPIKey        string
	EmbeddingDeployment string
	EmbeddingDimensions int
}

// NewProvider picks the managed search backend when configured, then a
// Postgres listing index, then a disabled provider whose errors the tool
// dispatcher surfaces to the agent as a configuration message.
func NewProvider(ctx context.Context, opts Options) (Provider, error) {
	if strings.TrimSpace(opts.SearchEndpoint) != "" && strings.TrimSpace(opts.SearchAPIKey) != "" {
		return NewAzureProvider(opts.SearchEndpoint, opts.SearchAPIKey, opts.IndexName), nil
	}
	if strings.TrimSpace(opts.DatabaseURL) != "" {
		return NewPostgresProvider(ctx, opts.DatabaseURL)
	}
	return disabledProvider{}, nil
}

// NewEmbedder returns nil when embeddings are not configured; callers treat
// a nil Embedder as keyword-only search.
func NewEmbedder(opts Options) Embedder {
	if strings.TrimSpace(opts.OpenAIEndpoint) == "" || strings.TrimSpace(opts.OpenAIAPIKey) == "" {
		return nil
	}
	return NewEmbeddingClient(opts.OpenAIEndpoint, opts.OpenAIAPIKey, opts.EmbeddingDeployment, opts.EmbeddingDimensions)
}

type disabledProvider struct{}

func (disabledProvider) Search(context.Context, Query) (Result, error) {
	return Result{}, ErrNotConfigured
}
