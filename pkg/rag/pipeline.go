package rag

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/calque-ai/medrag/pkg/calque"
	"github.com/calque-ai/medrag/pkg/helpers"
	"github.com/calque-ai/medrag/pkg/middleware/observability"
	"github.com/calque-ai/medrag/pkg/middleware/retrieval"
	"github.com/calque-ai/medrag/pkg/rag/hybrid"
	"github.com/calque-ai/medrag/pkg/rag/rewrite"
)

// Metric names.
const (
	MetricRequests           = "medrag_requests_total"
	MetricStageDuration      = "medrag_stage_duration_seconds"
	MetricCacheLookups       = "medrag_cache_lookups_total"
	MetricGuardRejections    = "medrag_guard_rejections_total"
	MetricRetrievedDocuments = "medrag_retrieved_documents"
)

// Stage names used for spans and the stage label.
const (
	StageGuard      = "guard"
	StageRewrite    = "rewrite"
	StageCacheGet   = "cache.lookup"
	StageRetrieve   = "retrieve"
	StageSynthesize = "synthesize"
	StageCacheSet   = "cache.store"
)

// Outcome classifies how a request ended.
type Outcome string

const (
	OutcomeRejected     Outcome = "rejected"
	OutcomeGuardError   Outcome = "guard_error"
	OutcomeCacheHit     Outcome = "cache_hit"
	OutcomeAnswered     Outcome = "answered"
	OutcomeSynthFailure Outcome = "synthesis_failed"
)

// Result is a finished request.
type Result struct {
	// Text is the user-facing reply, annotations included.
	Text string `json:"answer"`
	// Outcome says which exit the request took.
	Outcome Outcome `json:"outcome"`
	// Question is the question actually searched, after rewriting.
	Question string `json:"question"`
	// Reason is the denial reason for rejected requests.
	Reason string `json:"reason,omitempty"`
	// Documents is how many fused passages were retrieved.
	Documents int `json:"documents"`
	// RetrievalFailed is set when both retrievers failed.
	RetrievalFailed bool          `json:"retrieval_failed,omitempty"`
	RequestID       string        `json:"request_id"`
	Elapsed         time.Duration `json:"elapsed"`
}

// GetResponse answers question for a chat session. history holds the turns
// before this question, oldest first. It never fails: every problem becomes
// a user-facing text.
func (p *Pipeline) GetResponse(ctx context.Context, question, sessionID string, history []rewrite.Turn) string {
	return p.Answer(ctx, question, sessionID, history).Text
}

// Answer is GetResponse with the request details.
func (p *Pipeline) Answer(ctx context.Context, question, sessionID string, history []rewrite.Turn) Result {
	start := p.now()
	res := Result{RequestID: p.newID(), Question: question}

	ctx = calque.WithRequestID(ctx, res.RequestID)
	if sessionID != "" {
		ctx = calque.WithSessionID(ctx, sessionID)
	}

	ctx, span := p.tracer.StartSpan(ctx, "medrag.get_response",
		observability.WithSpanKind(observability.SpanKindServer),
		observability.WithAttributes(map[string]any{"request_id": res.RequestID, "history_turns": len(history)}))
	if sc := span.SpanContext(); sc.TraceID != "" {
		ctx = calque.WithTraceID(ctx, sc.TraceID)
	}

	calque.LogDebug(ctx, "question received", "question", helpers.Truncate(question, 100), "turns", len(history))

	p.run(ctx, &res, history, start)

	res.Elapsed = p.now().Sub(start)
	span.SetAttribute("outcome", string(res.Outcome))
	span.SetAttribute("documents", res.Documents)
	span.End(nil)

	p.metrics.Counter(ctx, MetricRequests, 1, map[string]string{"outcome": string(res.Outcome)})
	calque.LogInfo(ctx, "question answered", "outcome", res.Outcome, "elapsed", res.Elapsed, "documents", res.Documents)
	return res
}

func (p *Pipeline) run(ctx context.Context, res *Result, history []rewrite.Turn, start time.Time) {
	if !p.checkSafety(ctx, res) {
		return
	}

	if len(history) > 0 && p.deps.Rewriter != nil {
		_ = p.stage(ctx, StageRewrite, func(ctx context.Context) error {
			res.Question = p.deps.Rewriter.Rewrite(ctx, res.Question, history)
			return nil
		})
	}

	if p.lookupCache(ctx, res, start) {
		return
	}

	rendered := p.retrieve(ctx, res)

	var answer string
	err := p.stage(ctx, StageSynthesize, func(ctx context.Context) error {
		var err error
		answer, err = p.deps.Synthesizer.Synthesize(ctx, res.Question, rendered)
		return err
	})
	if err != nil {
		calque.LogError(ctx, "answer synthesis failed", err)
		res.Outcome = OutcomeSynthFailure
		res.Text = SynthesisApology + answerNote(p.now().Sub(start), res.Documents)
		return
	}

	p.storeCache(ctx, res.Question, answer)

	res.Outcome = OutcomeAnswered
	res.Text = answer + answerNote(p.now().Sub(start), res.Documents)
}

func (p *Pipeline) checkSafety(ctx context.Context, res *Result) bool {
	var allowed bool
	err := p.stage(ctx, StageGuard, func(ctx context.Context) error {
		verdict, err := p.deps.Gate.Check(ctx, res.Question)
		if err != nil {
			return err
		}
		allowed = verdict.Allowed
		if !allowed {
			res.Reason = verdict.Reason
			p.metrics.Counter(ctx, MetricGuardRejections, 1, map[string]string{"check": verdict.Check})
			calque.LogDebug(ctx, "question rejected", "check", verdict.Check)
		}
		return nil
	})

	switch {
	case err != nil:
		calque.LogError(ctx, "safety check failed", err)
		res.Outcome = OutcomeGuardError
		res.Reason = GuardUnavailableReason
		res.Text = denial(GuardUnavailableReason)
		return false
	case !allowed:
		res.Outcome = OutcomeRejected
		res.Text = denial(res.Reason)
		return false
	}
	return true
}

func (p *Pipeline) lookupCache(ctx context.Context, res *Result, start time.Time) bool {
	if p.deps.Cache == nil {
		return false
	}

	var hit bool
	var response string
	err := p.stage(ctx, StageCacheGet, func(ctx context.Context) error {
		h, ok, err := p.deps.Cache.Get(ctx, res.Question)
		if err != nil {
			return err
		}
		hit, response = ok, h.Response
		if ok {
			calque.LogDebug(ctx, "serving cached answer", "matched", helpers.Truncate(h.Question, 100), "similarity", h.Similarity)
		}
		return nil
	})

	result := "miss"
	switch {
	case err != nil:
		result = "error"
		calque.LogWarn(ctx, "semantic cache lookup failed", "error", err)
	case hit:
		result = "hit"
	}
	p.metrics.Counter(ctx, MetricCacheLookups, 1, map[string]string{"result": result})

	if !hit {
		return false
	}
	res.Outcome = OutcomeCacheHit
	res.Text = response + cacheHitNote(p.now().Sub(start))
	return true
}

// retrieve returns the rendered context. Retrieval failure is not fatal:
// the answer model gets the no-documents sentinel instead.
func (p *Pipeline) retrieve(ctx context.Context, res *Result) string {
	var docs []retrieval.Document
	err := p.stage(ctx, StageRetrieve, func(ctx context.Context) error {
		var err error
		docs, err = p.deps.Retriever.Retrieve(ctx, res.Question, p.topK)
		return err
	})
	if err != nil {
		calque.LogWarn(ctx, "retrieval failed, answering without sources", "error", err)
		res.RetrievalFailed = true
		return hybrid.NoDocuments
	}

	res.Documents = len(docs)
	p.metrics.Histogram(ctx, MetricRetrievedDocuments, float64(len(docs)), nil)
	calque.LogInfo(ctx, "retrieved passages", "documents", len(docs))
	return hybrid.Render(docs, p.maxContextChars)
}

// storeCache is best effort; failures are logged only.
func (p *Pipeline) storeCache(ctx context.Context, question, answer string) {
	if p.deps.Cache == nil {
		return
	}
	err := p.stage(ctx, StageCacheSet, func(ctx context.Context) error {
		return p.deps.Cache.Set(ctx, question, answer)
	})
	if err != nil {
		calque.LogWarn(ctx, "semantic cache store failed", "error", err)
	}
}

// stage runs fn inside a child span and records its duration.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.StartSpan(ctx, name)
	start := p.now()
	err := fn(ctx)
	p.metrics.RecordDuration(ctx, MetricStageDuration, p.now().Sub(start), map[string]string{"stage": name})
	span.End(err)
	return err
}

func newRequestID() string { return uuid.NewString() }
