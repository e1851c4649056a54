// Package weaviate serves dense (nearVector) and lexical (bm25) search from a
// Weaviate class through its GraphQL API.
package weaviate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	wv "github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/calque-ai/medrag/pkg/middleware/retrieval"
)

// Client queries one Weaviate class.
type Client struct {
	client     *wv.Client
	className  string
	textField  string
	metaFields []string
}

// Config configures the client.
type Config struct {
	URL       string
	APIKey    string
	ClassName string

	// TextField holds the passage text. Defaults to "text".
	TextField string

	// MetadataFields are returned as document metadata.
	// Defaults to title, url and source_url.
	MetadataFields []string
}

// New creates a client. Weaviate is reached lazily, on first query.
func New(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("weaviate URL is required")
	}
	if cfg.ClassName == "" {
		return nil, errors.New("weaviate class name is required")
	}

	u, err := url.Parse(cfg.URL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid Weaviate URL %q", cfg.URL)
	}

	wcfg := wv.Config{Host: u.Host, Scheme: u.Scheme}
	if cfg.APIKey != "" {
		wcfg.AuthConfig = auth.ApiKey{Value: cfg.APIKey}
	}
	client, err := wv.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Weaviate client: %w", err)
	}

	textField := cfg.TextField
	if textField == "" {
		textField = "text"
	}
	metaFields := cfg.MetadataFields
	if len(metaFields) == 0 {
		metaFields = []string{retrieval.MetaTitle, retrieval.MetaURL, retrieval.MetaSourceURL}
	}

	return &Client{client: client, className: cfg.ClassName, textField: textField, metaFields: metaFields}, nil
}

func (c *Client) fields(scoreField string) []graphql.Field {
	fields := make([]graphql.Field, 0, len(c.metaFields)+2)
	fields = append(fields, graphql.Field{Name: c.textField})
	for _, f := range c.metaFields {
		fields = append(fields, graphql.Field{Name: f})
	}
	return append(fields, graphql.Field{
		Name:   "_additional",
		Fields: []graphql.Field{{Name: "id"}, {Name: scoreField}},
	})
}

// Search runs a nearVector query. query.Vector is required.
func (c *Client) Search(ctx context.Context, query retrieval.SearchQuery) (*retrieval.SearchResult, error) {
	if len(query.Vector) == 0 {
		return nil, errors.New("query vector is required for weaviate search")
	}

	near := c.client.GraphQL().NearVectorArgBuilder().WithVector(query.Vector)
	if query.Threshold > 0 {
		near = near.WithDistance(float32(1 - query.Threshold))
	}

	resp, err := c.client.GraphQL().Get().
		WithClassName(c.className).
		WithFields(c.fields("distance")...).
		WithNearVector(near).
		WithLimit(limitOr(query.Limit)).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate nearVector query failed: %w", err)
	}

	docs, err := c.decode(resp, func(v any) float64 { return 1 - toFloat(v) }, "distance")
	if err != nil {
		return nil, err
	}
	return &retrieval.SearchResult{Documents: docs, Query: query.Text, Total: len(docs)}, nil
}

// Lexical returns a BM25 Searcher over the same class.
func (c *Client) Lexical() retrieval.Searcher {
	return bm25{c: c}
}

type bm25 struct{ c *Client }

func (b bm25) Search(ctx context.Context, query retrieval.SearchQuery) (*retrieval.SearchResult, error) {
	if strings.TrimSpace(query.Text) == "" {
		return &retrieval.SearchResult{}, nil
	}

	arg := b.c.client.GraphQL().Bm25ArgBuilder().
		WithQuery(query.Text).
		WithProperties(b.c.textField)

	resp, err := b.c.client.GraphQL().Get().
		WithClassName(b.c.className).
		WithFields(b.c.fields("score")...).
		WithBM25(arg).
		WithLimit(limitOr(query.Limit)).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate bm25 query failed: %w", err)
	}

	docs, err := b.c.decode(resp, toFloat, "score")
	if err != nil {
		return nil, err
	}
	return &retrieval.SearchResult{Documents: docs, Query: query.Text, Total: len(docs)}, nil
}

func (c *Client) decode(resp *models.GraphQLResponse, score func(any) float64, scoreField string) ([]retrieval.Document, error) {
	if resp == nil {
		return nil, errors.New("weaviate returned no response")
	}
	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			if e != nil {
				msgs = append(msgs, e.Message)
			}
		}
		return nil, fmt.Errorf("weaviate query error: %s", strings.Join(msgs, "; "))
	}

	get, _ := resp.Data["Get"].(map[string]any)
	items, _ := get[c.className].([]any)

	docs := make([]retrieval.Document, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		doc := retrieval.Document{Metadata: map[string]any{}}
		doc.Content, _ = obj[c.textField].(string)
		for _, f := range c.metaFields {
			if v, ok := obj[f]; ok && v != nil {
				doc.Metadata[f] = v
			}
		}
		if add, ok := obj["_additional"].(map[string]any); ok {
			doc.ID, _ = add["id"].(string)
			doc.Score = score(add[scoreField])
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Health asks Weaviate whether it is ready.
func (c *Client) Health(ctx context.Context) error {
	ready, err := c.client.Misc().ReadyChecker().Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviate readiness check failed: %w", err)
	}
	if !ready {
		return errors.New("weaviate is not ready")
	}
	return nil
}

// Close is a no-op; the HTTP client needs no teardown.
func (c *Client) Close() error { return nil }

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}

func limitOr(n int) int {
	if n <= 0 {
		return 10
	}
	return n
}
