// Package pgvector serves both retrieval signals from one PostgreSQL table:
// cosine search over a pgvector column and ranked full-text search over the
// passage text.
package pgvector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/calque-ai/medrag/pkg/middleware/retrieval"
)

// Client owns the connection pool.
type Client struct {
	pool       *pgxpool.Pool
	table      string
	dimension  int
	textConfig string
	embedder   retrieval.Embedder
}

// Config configures the client.
type Config struct {
	ConnectionString string

	// TableName defaults to "documents".
	TableName string

	// VectorDimension defaults to 1024 (bge-m3).
	VectorDimension int

	// TextSearchConfig is the PostgreSQL text search configuration used for
	// lexical search. Defaults to "simple", which suits Vietnamese.
	TextSearchConfig string

	// Embedder is only needed by Store.
	Embedder retrieval.Embedder
}

// New connects to PostgreSQL and registers the vector type on every
// connection.
func New(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil || cfg.ConnectionString == "" {
		return nil, errors.New("PostgreSQL connection string is required")
	}
	table := cfg.TableName
	if table == "" {
		table = "documents"
	}
	dim := cfg.VectorDimension
	if dim <= 0 {
		dim = 1024
	}
	textCfg := cfg.TextSearchConfig
	if textCfg == "" {
		textCfg = "simple"
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &Client{
		pool:       pool,
		table:      pgx.Identifier{table}.Sanitize(),
		dimension:  dim,
		textConfig: textCfg,
		embedder:   cfg.Embedder,
	}, nil
}

// EnsureSchema creates the extension, table and indexes when missing.
func (c *Client) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			metadata JSONB,
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, c.table, c.dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING GIN (to_tsvector(%s, content))`,
			pgx.Identifier{indexName(c.table, "fts")}.Sanitize(), c.table, quoteLiteral(c.textConfig)),
	}
	for _, stmt := range stmts {
		if _, err := c.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema setup failed: %w", err)
		}
	}
	return nil
}

// Search runs a cosine similarity query. query.Vector is required.
func (c *Client) Search(ctx context.Context, query retrieval.SearchQuery) (*retrieval.SearchResult, error) {
	if len(query.Vector) == 0 {
		return nil, errors.New("query.Vector is required for pgvector search")
	}

	sql := fmt.Sprintf(`
		SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
		FROM %s
		WHERE 1 - (embedding <=> $1) >= $2
		ORDER BY embedding <=> $1
		LIMIT $3`, c.table)

	threshold := query.Threshold
	if threshold <= 0 {
		threshold = -1
	}
	rows, err := c.pool.Query(ctx, sql, pgvector.NewVector(query.Vector), threshold, limitOr(query.Limit))
	if err != nil {
		return nil, fmt.Errorf("pgvector search failed: %w", err)
	}
	return collect(rows, query.Text)
}

// Lexical returns a full-text Searcher over the same table.
func (c *Client) Lexical() retrieval.Searcher {
	return lexical{c: c}
}

type lexical struct{ c *Client }

// Search ranks rows whose text shares any term with the query. The query
// terms are OR-ed so long natural-language questions still match.
func (l lexical) Search(ctx context.Context, query retrieval.SearchQuery) (*retrieval.SearchResult, error) {
	if query.Text == "" {
		return &retrieval.SearchResult{}, nil
	}

	sql := fmt.Sprintf(`
		WITH q AS (
			SELECT NULLIF(replace(plainto_tsquery($1::regconfig, $2)::text, '&', '|'), '')::tsquery AS tsq
		)
		SELECT id, content, metadata, ts_rank_cd(to_tsvector($1::regconfig, content), q.tsq)::float8 AS rank
		FROM %s, q
		WHERE q.tsq IS NOT NULL AND to_tsvector($1::regconfig, content) @@ q.tsq
		ORDER BY rank DESC, id
		LIMIT $3`, l.c.table)

	rows, err := l.c.pool.Query(ctx, sql, l.c.textConfig, query.Text, limitOr(query.Limit))
	if err != nil {
		return nil, fmt.Errorf("full-text search failed: %w", err)
	}
	return collect(rows, query.Text)
}

// Store embeds and upserts documents.
func (c *Client) Store(ctx context.Context, docs []retrieval.Document) error {
	if len(docs) == 0 {
		return nil
	}
	if c.embedder == nil {
		return errors.New("no embedder configured, cannot store documents")
	}

	sql := fmt.Sprintf(`
		INSERT INTO %s (id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding`, c.table)

	batch := &pgx.Batch{}
	for _, doc := range docs {
		if doc.Content == "" {
			continue
		}
		vec, err := c.embedder.Embed(ctx, doc.Content)
		if err != nil {
			return fmt.Errorf("failed to embed document %s: %w", doc.ID, err)
		}
		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for %s: %w", doc.ID, err)
		}
		batch.Queue(sql, doc.Key(), doc.Content, meta, pgvector.NewVector(vec))
	}

	if batch.Len() == 0 {
		return nil
	}
	return c.pool.SendBatch(ctx, batch).Close()
}

// Health pings the database.
func (c *Client) Health(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// Close releases the pool.
func (c *Client) Close() error {
	c.pool.Close()
	return nil
}

func collect(rows pgx.Rows, text string) (*retrieval.SearchResult, error) {
	defer rows.Close()

	var docs []retrieval.Document
	for rows.Next() {
		var doc retrieval.Document
		var meta []byte
		if err := rows.Scan(&doc.ID, &doc.Content, &meta, &doc.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &doc.Metadata); err != nil {
				return nil, fmt.Errorf("failed to parse metadata of %s: %w", doc.ID, err)
			}
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &retrieval.SearchResult{Documents: docs, Query: text, Total: len(docs)}, nil
}

func limitOr(n int) int {
	if n <= 0 {
		return 10
	}
	return n
}

func indexName(table, suffix string) string {
	name := []rune(table)
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r != '"' {
			out = append(out, r)
		}
	}
	return string(out) + "_" + suffix + "_idx"
}

func quoteLiteral(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'')
		}
		out = append(out, s[i])
	}
	return string(append(out, '\''))
}
