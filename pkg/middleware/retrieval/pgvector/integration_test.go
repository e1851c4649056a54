//go:build integration

package pgvector

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/calque-ai/medrag/pkg/middleware/ai"
	"github.com/calque-ai/medrag/pkg/middleware/retrieval"
)

func startPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "pgvector/pgvector:pg16",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "medrag",
				"POSTGRES_PASSWORD": "medrag",
				"POSTGRES_DB":       "medrag",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			).WithDeadline(90 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start postgres: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	return fmt.Sprintf("postgres://medrag:medrag@%s:%s/medrag?sslmode=disable", host, port.Port())
}

func TestIntegration_DenseAndLexical(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	connStr := startPostgres(ctx, t)

	embedder := ai.NewMockEmbedder(nil)
	c, err := New(ctx, &Config{ConnectionString: connStr, TableName: "passages", VectorDimension: 8, Embedder: embedder})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	if err := c.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := c.Health(ctx); err != nil {
		t.Fatalf("Health() error = %v", err)
	}

	docs := []retrieval.Document{
		{ID: "flu", Content: "Cảm cúm gây sốt, ho và đau họng", Metadata: map[string]any{"title": "Cảm cúm", "url": "https://example.vn/cum"}},
		{ID: "diabetes", Content: "Tiểu đường type 2 cần kiểm soát đường huyết", Metadata: map[string]any{"title": "Tiểu đường"}},
		{ID: "headache", Content: "Đau đầu do thiếu máu thường kèm chóng mặt", Metadata: map[string]any{"title": "Đau đầu"}},
	}
	if err := c.Store(ctx, docs); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	dense, _ := retrieval.NewDense(embedder, c, "pgvector")
	got, err := dense.Retrieve(ctx, docs[0].Content, 2)
	if err != nil {
		t.Fatalf("dense Retrieve() error = %v", err)
	}
	if len(got) == 0 || got[0].ID != "flu" {
		t.Errorf("dense top hit = %+v, want flu", got)
	}
	if got[0].Title() != "Cảm cúm" || got[0].URL() != "https://example.vn/cum" {
		t.Errorf("metadata lost: %+v", got[0].Metadata)
	}

	lexical, _ := retrieval.NewLexical(c.Lexical(), "pgvector-fts")
	got, err = lexical.Retrieve(ctx, "đường huyết là gì", 5)
	if err != nil {
		t.Fatalf("lexical Retrieve() error = %v", err)
	}
	if len(got) == 0 || got[0].ID != "diabetes" {
		t.Errorf("lexical top hit = %+v, want diabetes", got)
	}
}
