package hybrid

import (
	"sort"

	"github.com/hbollon/go-edlib"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/calque-ai/medrag/pkg/middleware/retrieval"
)

// DefaultRRFK is the reciprocal rank fusion smoothing constant.
const DefaultRRFK = 60

// Fuse merges ranked lists by reciprocal rank fusion. Each list is ordered by
// its own scores, then every passage earns 1/(k+rank) per list it appears in,
// rank counting from 0. The fused value replaces Score. Equal scores keep
// first-seen order.
func Fuse(k int, lists ...[]retrieval.Document) []retrieval.Document {
	if k <= 0 {
		k = DefaultRRFK
	}

	fused := orderedmap.New[string, retrieval.Document]()
	for _, list := range lists {
		for rank, doc := range byScore(list) {
			contribution := 1 / float64(k+rank)
			key := doc.Key()
			if prev, ok := fused.Get(key); ok {
				prev.Score += contribution
				fused.Set(key, prev)
				continue
			}
			doc.Score = contribution
			fused.Set(key, doc)
		}
	}
	return sortedValues(fused)
}

// Merge concatenates lists, keeping the highest score of a passage seen more
// than once, and orders the result by score.
func Merge(lists ...[]retrieval.Document) []retrieval.Document {
	merged := orderedmap.New[string, retrieval.Document]()
	for _, list := range lists {
		for _, doc := range list {
			key := doc.Key()
			if prev, ok := merged.Get(key); ok && prev.Score >= doc.Score {
				continue
			}
			merged.Set(key, doc)
		}
	}
	return sortedValues(merged)
}

// Dedupe drops passages whose word-level Jaccard similarity to an earlier
// kept passage is at least threshold. docs must already be best first.
func Dedupe(docs []retrieval.Document, threshold float64) []retrieval.Document {
	if threshold <= 0 || len(docs) < 2 {
		return docs
	}
	kept := make([]retrieval.Document, 0, len(docs))
	for _, doc := range docs {
		duplicate := false
		for _, k := range kept {
			if float64(edlib.JaccardSimilarity(doc.Content, k.Content, 0)) >= threshold {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, doc)
		}
	}
	return kept
}

func byScore(docs []retrieval.Document) []retrieval.Document {
	out := make([]retrieval.Document, len(docs))
	copy(out, docs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func sortedValues(m *orderedmap.OrderedMap[string, retrieval.Document]) []retrieval.Document {
	out := make([]retrieval.Document, 0, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
