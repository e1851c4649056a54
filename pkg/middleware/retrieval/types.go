// Package retrieval defines passages, search backends and the retriever
// capability the hybrid engine fuses.
//
// Backends (qdrant, pgvector, weaviate, mongo) implement Searcher. Dense and
// Lexical adapt a Searcher into a Retriever: Dense embeds the query first,
// Lexical passes the raw text.
package retrieval

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// Metadata keys shared by every backend.
const (
	MetaTitle     = "title"
	MetaURL       = "url"
	MetaSourceURL = "source_url"
	MetaSource    = "source"
)

// Document is a retrieved passage with its retriever-local score.
type Document struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score"`
}

// Title returns the passage title, or "" when unknown.
func (d Document) Title() string { return d.metaString(MetaTitle) }

// URL returns the origin url, falling back to source_url.
func (d Document) URL() string {
	if u := d.metaString(MetaURL); u != "" {
		return u
	}
	return d.metaString(MetaSourceURL)
}

// Source returns the collection or engine the passage came from.
func (d Document) Source() string { return d.metaString(MetaSource) }

// Key identifies the passage across result lists: its ID, or a digest of the
// content when the backend has none.
func (d Document) Key() string {
	if d.ID != "" {
		return d.ID
	}
	sum := sha1.Sum([]byte(d.Content))
	return "sha1:" + hex.EncodeToString(sum[:])
}

func (d Document) metaString(key string) string {
	if d.Metadata == nil {
		return ""
	}
	switch v := d.Metadata[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// SearchQuery is one backend search. Dense backends need Vector, lexical
// backends need Text.
type SearchQuery struct {
	Text      string    `json:"text"`
	Vector    []float32 `json:"vector,omitempty"`
	Limit     int       `json:"limit,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
}

// SearchResult holds documents ranked best first.
type SearchResult struct {
	Documents []Document `json:"documents"`
	Query     string     `json:"query"`
	Total     int        `json:"total"`
}
