package app

import (
	"context"
	"time"

	"github.com/calque-ai/medrag/pkg/calque"
	"github.com/calque-ai/medrag/pkg/middleware/memory"
	"github.com/calque-ai/medrag/pkg/rag/rewrite"
)

// Ask answers question in the context of the session's earlier turns and
// records the exchange. History failures are logged and never block the
// answer.
func (a *App) Ask(ctx context.Context, sessionID, question string) string {
	ctx = calque.WithSessionID(a.Context(ctx), sessionID)

	prior, err := a.History.History(ctx, sessionID)
	if err != nil {
		calque.LogWarn(ctx, "history unavailable, answering without it", "error", err)
	}

	asked := time.Now()
	answer := a.Pipeline.GetResponse(ctx, question, sessionID, Turns(prior))

	err = a.History.Append(ctx, sessionID,
		memory.Message{Role: memory.RoleUser, Content: question, Time: asked},
		memory.Message{Role: memory.RoleAssistant, Content: answer, Time: time.Now()},
	)
	if err != nil {
		calque.LogWarn(ctx, "history not saved", "error", err)
	}
	return answer
}

// Turns converts stored history to rewrite turns, oldest first.
func Turns(msgs []memory.Message) []rewrite.Turn {
	if len(msgs) == 0 {
		return nil
	}
	turns := make([]rewrite.Turn, 0, len(msgs))
	for _, m := range msgs {
		role := rewrite.RoleUser
		if m.Role == memory.RoleAssistant {
			role = rewrite.RoleAssistant
		}
		turns = append(turns, rewrite.Turn{Role: role, Content: m.Content, Time: m.Time})
	}
	return turns
}
