// Package hybrid fuses dense and lexical retrieval into one ranked passage
// list and renders it as a citation-indexed context block.
package hybrid

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/calque-ai/medrag/pkg/calque"
	"github.com/calque-ai/medrag/pkg/middleware/retrieval"
)

// ErrNoRetriever is returned by New when a sub-engine is missing.
var ErrNoRetriever = errors.New("hybrid: dense and lexical retrievers are required")

// Config sizes each stage. Zero values take the defaults.
type Config struct {
	TopKDense   int  `yaml:"top_k_dense"`
	TopKLexical int  `yaml:"top_k_bm25"`
	TopKFinal   int  `yaml:"top_k_final"`
	UseRRF      bool `yaml:"use_rrf"`
	RRFK        int  `yaml:"rrf_k"`

	// DedupeSimilarity drops a passage whose word overlap with a better
	// ranked one reaches this value. 0 disables.
	DedupeSimilarity float64 `yaml:"dedupe_similarity"`
}

// DefaultConfig returns 10 dense, 15 lexical and 6 fused passages with RRF.
func DefaultConfig() Config {
	return Config{TopKDense: 10, TopKLexical: 15, TopKFinal: 6, UseRRF: true, RRFK: DefaultRRFK}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TopKDense <= 0 {
		c.TopKDense = d.TopKDense
	}
	if c.TopKLexical <= 0 {
		c.TopKLexical = d.TopKLexical
	}
	if c.TopKFinal <= 0 {
		c.TopKFinal = d.TopKFinal
	}
	if c.RRFK <= 0 {
		c.RRFK = d.RRFK
	}
	return c
}

// Engine runs both sub-engines and fuses their results. It holds no
// per-call state and is safe for concurrent use.
type Engine struct {
	dense   retrieval.Retriever
	lexical retrieval.Retriever
	cfg     Config
}

// New creates an engine.
func New(dense, lexical retrieval.Retriever, cfg Config) (*Engine, error) {
	if dense == nil || lexical == nil {
		return nil, ErrNoRetriever
	}
	return &Engine{dense: dense, lexical: lexical, cfg: cfg.withDefaults()}, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Retrieve returns up to topK fused passages, best first. topK <= 0 uses
// TopKFinal. One failing sub-engine degrades to the other's results; the
// call fails only when both do.
func (e *Engine) Retrieve(ctx context.Context, query string, topK int) ([]retrieval.Document, error) {
	if topK <= 0 {
		topK = e.cfg.TopKFinal
	}

	var (
		wg                   sync.WaitGroup
		denseDocs, lexDocs   []retrieval.Document
		denseErr, lexicalErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		denseDocs, denseErr = e.dense.Retrieve(ctx, query, e.cfg.TopKDense)
	}()
	go func() {
		defer wg.Done()
		lexDocs, lexicalErr = e.lexical.Retrieve(ctx, query, e.cfg.TopKLexical)
	}()
	wg.Wait()

	switch {
	case denseErr != nil && lexicalErr != nil:
		return nil, fmt.Errorf("hybrid retrieve: %w", errors.Join(denseErr, lexicalErr))
	case denseErr != nil:
		calque.LogWarn(ctx, "dense retrieval failed, using lexical only", "error", denseErr)
	case lexicalErr != nil:
		calque.LogWarn(ctx, "lexical retrieval failed, using dense only", "error", lexicalErr)
	}

	calque.LogDebug(ctx, "retrieved candidates", "dense", len(denseDocs), "lexical", len(lexDocs))

	var fused []retrieval.Document
	if e.cfg.UseRRF {
		fused = Fuse(e.cfg.RRFK, denseDocs, lexDocs)
	} else {
		fused = Merge(denseDocs, lexDocs)
	}

	fused = Dedupe(fused, e.cfg.DedupeSimilarity)
	if len(fused) > topK {
		fused = fused[:topK]
	}
	return fused, nil
}
