// Package prompt renders text/template prompts inside a flow.
//
// Every template sees the flow input as {{.Input}} plus any extra data
// passed at construction.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"text/template"

	"github.com/calque-ai/medrag/pkg/calque"
	"github.com/calque-ai/medrag/pkg/middleware/ai"
)

// Parse parses a named template.
func Parse(name, text string) (*template.Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("template parse error: %w", err)
	}
	return tmpl, nil
}

// Must is Parse that panics, for package-level templates.
func Must(name, text string) *template.Template {
	return template.Must(Parse(name, text))
}

// Render executes tmpl with data.
func Render(tmpl *template.Template, data any) (string, error) {
	var out bytes.Buffer
	if err := tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("template execution error: %w", err)
	}
	return out.String(), nil
}

// Template renders templateStr with the flow input and writes the result.
//
//	flow.Use(prompt.Template("Câu hỏi: {{.Input}}"))
func Template(templateStr string, data ...map[string]any) calque.Handler {
	tmpl, err := Parse("prompt", templateStr)
	if err != nil {
		return calque.HandlerFunc(func(_ *calque.Request, _ *calque.Response) error {
			return err
		})
	}
	return FromTemplate(tmpl, data...)
}

// FromTemplate is Template for a parsed template.
func FromTemplate(tmpl *template.Template, data ...map[string]any) calque.Handler {
	return calque.HandlerFunc(func(req *calque.Request, res *calque.Response) error {
		out, err := renderInput(req, tmpl, data)
		if err != nil {
			return err
		}
		return calque.Write(res, out)
	})
}

// Conversation renders the flow input as the user turn of a chat and writes
// the JSON Conversation ai clients accept, with system as the first message.
//
//	flow.Use(prompt.Conversation(sys, userTmpl, data)).Use(ai.Agent(client))
func Conversation(system string, user *template.Template, data ...map[string]any) calque.Handler {
	return calque.HandlerFunc(func(req *calque.Request, res *calque.Response) error {
		text, err := renderInput(req, user, data)
		if err != nil {
			return err
		}

		msgs := make([]ai.Message, 0, 2)
		if system != "" {
			msgs = append(msgs, ai.System(system))
		}
		msgs = append(msgs, ai.User(text))

		payload, err := json.Marshal(ai.Conversation{Messages: msgs})
		if err != nil {
			return calque.WrapErr(req.Context, err, "failed to encode conversation")
		}
		return calque.Write(res, payload)
	})
}

func renderInput(req *calque.Request, tmpl *template.Template, data []map[string]any) (string, error) {
	var input string
	if err := calque.Read(req, &input); err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}

	values := map[string]any{"Input": input}
	for _, d := range data {
		maps.Copy(values, d)
	}
	return Render(tmpl, values)
}
