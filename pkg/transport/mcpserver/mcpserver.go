// Package mcpserver exposes the pipeline as a Model Context Protocol tool so
// assistants can ask medical questions over stdio.
package mcpserver

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/calque-ai/medrag/pkg/calque"
)

// ToolName is the name of the single tool served.
const ToolName = "ask_medical_question"

const toolDescription = "Trả lời câu hỏi y tế bằng tiếng Việt dựa trên tài liệu y khoa đáng tin cậy, " +
	"kèm trích dẫn nguồn. Answers Vietnamese medical questions from a curated corpus with citations. " +
	"Pass the returned session_id back to ask follow-up questions."

// Answerer answers a question within a session and records the exchange.
type Answerer interface {
	Ask(ctx context.Context, sessionID, question string) string
}

// AskInput is the tool input.
type AskInput struct {
	Question  string `json:"question" jsonschema:"the medical question, in Vietnamese"`
	SessionID string `json:"session_id,omitempty" jsonschema:"session to continue; omit to start a new one"`
}

// AskOutput is the tool's structured result.
type AskOutput struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
}

// New returns a server with the ask tool registered.
func New(answerer Answerer, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "medrag", Version: version}, nil)
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolName,
		Description: toolDescription,
	}, askHandler(answerer))
	return server
}

func askHandler(answerer Answerer) mcp.ToolHandlerFor[AskInput, AskOutput] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, in AskInput) (*mcp.CallToolResult, AskOutput, error) {
		sessionID := strings.TrimSpace(in.SessionID)
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		calque.LogDebug(ctx, "mcp tool call", "tool", ToolName, "session_id", sessionID)

		out := AskOutput{SessionID: sessionID, Answer: answerer.Ask(ctx, sessionID, in.Question)}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: out.Answer}},
		}, out, nil
	}
}

// ServeStdio serves over stdin and stdout until ctx is cancelled or the
// client disconnects.
func ServeStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
