package pgvector

import "github.com/calque-ai/medrag/pkg/middleware/retrieval"

func retrievalQuery(text string) retrieval.SearchQuery {
	return retrieval.SearchQuery{Text: text}
}
