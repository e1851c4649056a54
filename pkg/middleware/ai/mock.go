package ai

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"io"
	"sync"

	"github.com/calque-ai/medrag/pkg/calque"
)

// MockClient is a scripted Client for tests. Responses are returned in order;
// the last one repeats once the script runs out.
type MockClient struct {
	mu        sync.Mutex
	responses []string
	err       error
	respond   func(msgs []Message) (string, error)
	calls     []MockCall
}

// MockCall records one Chat invocation.
type MockCall struct {
	Messages []Message
	Options  AgentOptions
}

// NewMockClient returns a client answering with responses in order.
func NewMockClient(responses ...string) *MockClient {
	return &MockClient{responses: responses}
}

// NewMockClientWithError returns a client that always fails with err.
func NewMockClientWithError(err error) *MockClient {
	return &MockClient{err: err}
}

// NewMockClientFunc returns a client answering through fn.
func NewMockClientFunc(fn func(msgs []Message) (string, error)) *MockClient {
	return &MockClient{respond: fn}
}

// Chat implements Client.
func (m *MockClient) Chat(r *calque.Request, w *calque.Response, opts *AgentOptions) error {
	msgs, err := ClassifyInput(r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	call := MockCall{Messages: msgs}
	if opts != nil {
		call.Options = *opts
	}
	idx := len(m.calls)
	m.calls = append(m.calls, call)
	m.mu.Unlock()

	if m.err != nil {
		return m.err
	}

	var text string
	switch {
	case m.respond != nil:
		if text, err = m.respond(msgs); err != nil {
			return err
		}
	case len(m.responses) == 0:
		return errors.New("mock client has no responses")
	case idx < len(m.responses):
		text = m.responses[idx]
	default:
		text = m.responses[len(m.responses)-1]
	}

	_, err = io.WriteString(w.Data, text)
	return err
}

// Calls returns a copy of the recorded calls.
func (m *MockClient) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount reports how many times Chat ran.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// MockEmbedder returns fixed vectors for known texts and a deterministic
// hash-derived vector for anything else.
type MockEmbedder struct {
	Vectors map[string][]float32
	Dim     int
	Err     error

	mu    sync.Mutex
	calls int
}

// NewMockEmbedder creates an embedder with the given fixed vectors.
func NewMockEmbedder(vectors map[string][]float32) *MockEmbedder {
	return &MockEmbedder{Vectors: vectors, Dim: 8}
}

// Embed implements Embedder.
func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if v, ok := m.Vectors[text]; ok {
		out := make([]float32, len(v))
		copy(out, v)
		return out, nil
	}

	dim := m.Dim
	if dim <= 0 {
		dim = 8
	}
	sum := sha256.Sum256([]byte(text))
	out := make([]float32, dim)
	for i := range out {
		b := sum[(i*2)%len(sum):]
		out[i] = float32(binary.BigEndian.Uint16(b[:2]))/65535 + 0.01
	}
	return out, nil
}

// Calls reports how many times Embed ran.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
