package pgvector

import (
	"context"
	"testing"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"empty connection string", &Config{}},
		{"unparsable connection string", &Config{ConnectionString: "postgres://%zz"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(context.Background(), tt.cfg); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	// pgxpool connects lazily, so no server is needed here.
	c, err := New(context.Background(), &Config{ConnectionString: "postgres://u:p@localhost:5432/db"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	if c.table != `"documents"` || c.dimension != 1024 || c.textConfig != "simple" {
		t.Errorf("defaults = %s %d %s", c.table, c.dimension, c.textConfig)
	}
}

func TestSQLHelpers(t *testing.T) {
	if got := quoteLiteral("it's"); got != `'it''s'` {
		t.Errorf("quoteLiteral() = %s", got)
	}
	if got := indexName(`"medical_docs"`, "fts"); got != "medical_docs_fts_idx" {
		t.Errorf("indexName() = %s", got)
	}
	if limitOr(0) != 10 || limitOr(6) != 6 {
		t.Error("limitOr() wrong")
	}
}

func TestSearch_RequiresVector(t *testing.T) {
	c := &Client{}
	if _, err := c.Search(context.Background(), retrievalQuery("q")); err == nil {
		t.Error("Search() without vector expected error")
	}
	res, err := c.Lexical().Search(context.Background(), retrievalQuery(""))
	if err != nil || res.Total != 0 {
		t.Errorf("Lexical().Search(empty) = %+v, %v", res, err)
	}
}
