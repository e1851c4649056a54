// Package qdrant is a dense vector backend on Qdrant's gRPC API.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	qd "github.com/qdrant/go-client/qdrant"

	"github.com/calque-ai/medrag/pkg/middleware/retrieval"
)

// Client searches one collection.
type Client struct {
	client     *qd.Client
	collection string
	vectorName string
	textKey    string
}

// Config configures the client.
type Config struct {
	// URL such as "http://localhost:6334". The port is the gRPC port.
	URL            string
	APIKey         string
	CollectionName string

	// VectorName selects a named vector; empty uses the default vector.
	VectorName string

	// TextKey is the payload field holding the passage text. Defaults to "text".
	TextKey string
}

// New dials Qdrant.
func New(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("qdrant URL is required")
	}
	if cfg.CollectionName == "" {
		return nil, errors.New("qdrant collection name is required")
	}

	host, port, useTLS, err := parseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qd.NewClient(&qd.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	textKey := cfg.TextKey
	if textKey == "" {
		textKey = "text"
	}
	return &Client{client: client, collection: cfg.CollectionName, vectorName: cfg.VectorName, textKey: textKey}, nil
}

func parseURL(raw string) (host string, port int, useTLS bool, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, fmt.Errorf("invalid Qdrant URL: %w", err)
	}
	host = u.Hostname()
	if host == "" {
		return "", 0, false, fmt.Errorf("invalid Qdrant URL %q: missing host", raw)
	}
	port = 6334
	if p := u.Port(); p != "" {
		if port, err = strconv.Atoi(p); err != nil {
			return "", 0, false, fmt.Errorf("invalid Qdrant port %q: %w", p, err)
		}
	}
	return host, port, u.Scheme == "https", nil
}

// Search implements retrieval.Searcher. query.Vector is required.
func (c *Client) Search(ctx context.Context, query retrieval.SearchQuery) (*retrieval.SearchResult, error) {
	if len(query.Vector) == 0 {
		return nil, errors.New("query vector is required for qdrant search")
	}

	req := &qd.QueryPoints{
		CollectionName: c.collection,
		Query:          qd.NewQuery(query.Vector...),
		WithPayload:    qd.NewWithPayload(true),
	}
	if c.vectorName != "" {
		req.Using = &c.vectorName
	}
	if query.Limit > 0 {
		limit := uint64(query.Limit)
		req.Limit = &limit
	}
	if query.Threshold > 0 {
		threshold := float32(query.Threshold)
		req.ScoreThreshold = &threshold
	}

	points, err := c.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	docs := make([]retrieval.Document, 0, len(points))
	for _, p := range points {
		docs = append(docs, c.toDocument(p))
	}
	return &retrieval.SearchResult{Documents: docs, Query: query.Text, Total: len(docs)}, nil
}

func (c *Client) toDocument(p *qd.ScoredPoint) retrieval.Document {
	doc := retrieval.Document{Score: float64(p.GetScore()), ID: pointID(p.GetId())}
	meta := payloadToMap(p.GetPayload())
	if text, ok := meta[c.textKey].(string); ok {
		doc.Content = text
		delete(meta, c.textKey)
	}
	if len(meta) > 0 {
		doc.Metadata = meta
	}
	return doc
}

func pointID(id *qd.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

func payloadToMap(payload map[string]*qd.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = fromValue(v)
	}
	return out
}

func fromValue(v *qd.Value) any {
	switch kind := v.GetKind().(type) {
	case *qd.Value_StringValue:
		return kind.StringValue
	case *qd.Value_IntegerValue:
		return kind.IntegerValue
	case *qd.Value_DoubleValue:
		return kind.DoubleValue
	case *qd.Value_BoolValue:
		return kind.BoolValue
	case *qd.Value_StructValue:
		return payloadToMap(kind.StructValue.GetFields())
	case *qd.Value_ListValue:
		items := kind.ListValue.GetValues()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = fromValue(item)
		}
		return out
	default:
		return nil
	}
}

// Health calls the Qdrant health endpoint.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant health check failed: %w", err)
	}
	return nil
}

// Close closes the gRPC connections.
func (c *Client) Close() error {
	return c.client.Close()
}
