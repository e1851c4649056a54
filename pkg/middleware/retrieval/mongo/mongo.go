// Package mongo serves lexical search from a MongoDB collection carrying a
// text index over the passage field.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/calque-ai/medrag/pkg/middleware/retrieval"
)

// Field names used in stored passages.
const (
	FieldText      = "text"
	FieldNamespace = "namespace"
	scoreField     = "score"
)

// Config configures the client.
type Config struct {
	URI        string
	Database   string
	Collection string

	// Namespace restricts search to passages of one corpus. Empty searches all.
	Namespace string
}

// Client runs $text queries ranked by textScore.
type Client struct {
	client    *mongo.Client
	coll      *mongo.Collection
	namespace string
}

// New connects to MongoDB.
func New(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil || cfg.URI == "" {
		return nil, errors.New("mongo URI is required")
	}
	if cfg.Database == "" || cfg.Collection == "" {
		return nil, errors.New("mongo database and collection are required")
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	return &Client{
		client:    client,
		coll:      client.Database(cfg.Database).Collection(cfg.Collection),
		namespace: cfg.Namespace,
	}, nil
}

// EnsureIndex creates the text index. Language-specific stemming is
// disabled so Vietnamese tokens match verbatim.
func (c *Client) EnsureIndex(ctx context.Context) error {
	_, err := c.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: FieldText, Value: "text"}},
		Options: options.Index().SetDefaultLanguage("none").SetName("passage_text"),
	})
	if err != nil {
		return fmt.Errorf("failed to create text index: %w", err)
	}
	return nil
}

// Search returns the passages best matching query.Text.
func (c *Client) Search(ctx context.Context, query retrieval.SearchQuery) (*retrieval.SearchResult, error) {
	if strings.TrimSpace(query.Text) == "" {
		return &retrieval.SearchResult{}, nil
	}

	cursor, err := c.coll.Find(ctx, textFilter(query.Text, c.namespace), findOptions(query.Limit))
	if err != nil {
		return nil, fmt.Errorf("mongo text search failed: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []bson.M
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode mongo results: %w", err)
	}

	docs := make([]retrieval.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, toDocument(row))
	}
	return &retrieval.SearchResult{Documents: docs, Query: query.Text, Total: len(docs)}, nil
}

// Store inserts or replaces passages keyed by Document.Key.
func (c *Client) Store(ctx context.Context, docs []retrieval.Document) error {
	if len(docs) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(docs))
	for _, doc := range docs {
		row := bson.M{"_id": doc.Key(), FieldText: doc.Content}
		for k, v := range doc.Metadata {
			row[k] = v
		}
		if c.namespace != "" {
			row[FieldNamespace] = c.namespace
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": doc.Key()}).
			SetReplacement(row).
			SetUpsert(true))
	}
	if _, err := c.coll.BulkWrite(ctx, models); err != nil {
		return fmt.Errorf("failed to store passages: %w", err)
	}
	return nil
}

// Health pings the primary.
func (c *Client) Health(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (c *Client) Close() error {
	return c.client.Disconnect(context.Background())
}

func textFilter(text, namespace string) bson.M {
	filter := bson.M{"$text": bson.M{"$search": text, "$language": "none"}}
	if namespace != "" {
		filter[FieldNamespace] = namespace
	}
	return filter
}

func findOptions(limit int) *options.FindOptions {
	if limit <= 0 {
		limit = 10
	}
	meta := bson.M{"$meta": "textScore"}
	return options.Find().
		SetProjection(bson.M{scoreField: meta}).
		SetSort(bson.D{{Key: scoreField, Value: meta}}).
		SetLimit(int64(limit))
}

func toDocument(row bson.M) retrieval.Document {
	doc := retrieval.Document{Metadata: map[string]any{}}
	for k, v := range row {
		switch k {
		case "_id":
			doc.ID = idString(v)
		case FieldText:
			doc.Content, _ = v.(string)
		case scoreField:
			doc.Score = toFloat(v)
		case FieldNamespace:
		default:
			doc.Metadata[k] = v
		}
	}
	return doc
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case primitive.ObjectID:
		return id.Hex()
	default:
		return fmt.Sprint(id)
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
