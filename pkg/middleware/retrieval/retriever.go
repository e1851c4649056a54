package retrieval

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoBackend is returned when a retriever is built without a Searcher.
var ErrNoBackend = errors.New("retrieval: no search backend")

// Dense retrieves by embedding similarity.
type Dense struct {
	embedder Embedder
	backend  Searcher
	source   string
}

// NewDense pairs an embedder with a vector backend. source tags every
// returned document's metadata so rendered citations show where it came from.
func NewDense(embedder Embedder, backend Searcher, source string) (*Dense, error) {
	if embedder == nil {
		return nil, errors.New("retrieval: dense retriever needs an embedder")
	}
	if backend == nil {
		return nil, ErrNoBackend
	}
	return &Dense{embedder: embedder, backend: backend, source: source}, nil
}

// Retrieve implements Retriever.
func (d *Dense) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	vec, err := d.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	res, err := d.backend.Search(ctx, SearchQuery{Text: query, Vector: vec, Limit: topK})
	if err != nil {
		return nil, err
	}
	return tagSource(limit(res.Documents, topK), d.source), nil
}

// Lexical retrieves by term overlap.
type Lexical struct {
	backend Searcher
	source  string
}

// NewLexical wraps a full-text backend.
func NewLexical(backend Searcher, source string) (*Lexical, error) {
	if backend == nil {
		return nil, ErrNoBackend
	}
	return &Lexical{backend: backend, source: source}, nil
}

// Retrieve implements Retriever.
func (l *Lexical) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	res, err := l.backend.Search(ctx, SearchQuery{Text: query, Limit: topK})
	if err != nil {
		return nil, err
	}
	return tagSource(limit(res.Documents, topK), l.source), nil
}

func limit(docs []Document, topK int) []Document {
	if topK > 0 && len(docs) > topK {
		return docs[:topK]
	}
	return docs
}

func tagSource(docs []Document, source string) []Document {
	if source == "" {
		return docs
	}
	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = map[string]any{}
		}
		if _, ok := docs[i].Metadata[MetaSource]; !ok {
			docs[i].Metadata[MetaSource] = source
		}
	}
	return docs
}
