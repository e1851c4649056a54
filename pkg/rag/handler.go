package rag

import (
	"encoding/json"
	"io"

	"github.com/calque-ai/medrag/pkg/calque"
	"github.com/calque-ai/medrag/pkg/rag/rewrite"
)

// Request is the JSON body Handler reads.
type Request struct {
	Question  string         `json:"question"`
	SessionID string         `json:"session_id,omitempty"`
	History   []rewrite.Turn `json:"history,omitempty"`
}

// Handler exposes the pipeline as a flow handler: a JSON Request in, the
// answer text out. Plain text input is treated as a question with no history.
//
//	flow := calque.NewFlow().Use(p.Handler())
//	err := flow.Run(ctx, `{"question":"Sốt cao phải làm sao?"}`, &answer)
func (p *Pipeline) Handler() calque.Handler {
	return calque.HandlerFunc(func(req *calque.Request, res *calque.Response) error {
		raw, err := io.ReadAll(req.Data)
		if err != nil {
			return calque.WrapErr(req.Context, err, "failed to read input")
		}

		var in Request
		if json.Unmarshal(raw, &in) != nil {
			in = Request{Question: string(raw)}
		}

		answer := p.GetResponse(req.Context, in.Question, in.SessionID, in.History)
		return calque.Write(res, answer)
	})
}
