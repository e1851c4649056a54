package mongo

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil", nil},
		{"no uri", &Config{Database: "rag", Collection: "passages"}},
		{"no collection", &Config{URI: "mongodb://localhost:27017", Database: "rag"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(context.Background(), tt.cfg); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

func TestTextFilter(t *testing.T) {
	f := textFilter("đau đầu", "medical_rag_vi_2026")
	text, ok := f["$text"].(bson.M)
	if !ok {
		t.Fatalf("filter missing $text: %v", f)
	}
	if text["$search"] != "đau đầu" || text["$language"] != "none" {
		t.Errorf("$text = %v", text)
	}
	if f[FieldNamespace] != "medical_rag_vi_2026" {
		t.Errorf("namespace = %v", f[FieldNamespace])
	}

	if _, ok := textFilter("x", "")[FieldNamespace]; ok {
		t.Error("empty namespace should not filter")
	}
}

func TestFindOptions(t *testing.T) {
	if got := *findOptions(0).Limit; got != 10 {
		t.Errorf("default limit = %d, want 10", got)
	}
	if got := *findOptions(15).Limit; got != 15 {
		t.Errorf("limit = %d, want 15", got)
	}
}

func TestToDocument(t *testing.T) {
	oid := primitive.NewObjectID()
	doc := toDocument(bson.M{
		"_id":       oid,
		"text":      "Viêm họng cấp",
		"title":     "Viêm họng",
		"url":       "https://example.vn/viem-hong",
		"namespace": "medical_rag_vi_2026",
		"score":     1.25,
	})

	if doc.ID != oid.Hex() {
		t.Errorf("ID = %q, want %q", doc.ID, oid.Hex())
	}
	if doc.Content != "Viêm họng cấp" || doc.Score != 1.25 {
		t.Errorf("doc = %+v", doc)
	}
	if doc.Title() != "Viêm họng" || doc.URL() != "https://example.vn/viem-hong" {
		t.Errorf("metadata = %v", doc.Metadata)
	}
	if _, ok := doc.Metadata["namespace"]; ok {
		t.Error("namespace should not leak into metadata")
	}
}
