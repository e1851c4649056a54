package retrieval

import (
	"context"
)

// Searcher is a search backend.
type Searcher interface {
	Search(ctx context.Context, query SearchQuery) (*SearchResult, error)
}

// Store is a Searcher with a connection lifecycle.
type Store interface {
	Searcher
	Health(ctx context.Context) error
	Close() error
}

// Retriever returns up to topK passages for a query, best first. It is the
// capability the hybrid engine fuses; implementations must be safe for
// concurrent use.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Document, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RetrieverFunc adapts a function to Retriever.
type RetrieverFunc func(ctx context.Context, query string, topK int) ([]Document, error)

// Retrieve calls f.
func (f RetrieverFunc) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	return f(ctx, query, topK)
}
