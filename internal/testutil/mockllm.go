// Package testutil provides shared test helpers: a deterministic Genkit
// mock model, an SSE stream parser, and a scripted completion driver.
package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// MockLLM provides deterministic LLM responses for testing. It matches the
// last user message against registered patterns and streams the matching
// response in fixed-size chunks.
//
// Thread-safe for concurrent use.
type MockLLM struct {
	mu        sync.Mutex
	responses []mockRule
	fallback  string
	chunkSize int
	splitMsgs bool
	failWith  error
	calls     []MockCall
}

type mockRule struct {
	pattern  string // substring match in user message, lower-cased
	response string
}

// MockCall records a single call to the mock model.
type MockCall struct {
	UserMessage string   // last user message text
	History     []string // all message texts, in request order
	Response    string   // response text returned
}

// NewMockLLM creates a mock LLM with the given fallback response.
// The fallback is returned when no pattern matches.
func NewMockLLM(fallback string) *MockLLM {
	return &MockLLM{fallback: fallback, chunkSize: 4}
}

// AddResponse registers a pattern-response pair. When a user message
// contains the pattern (case-insensitive), the response is returned.
// First registered match wins.
func (m *MockLLM) AddResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockRule{
		pattern:  strings.ToLower(pattern),
		response: response,
	})
}

// SetChunkSize controls how many characters each streamed chunk carries.
func (m *MockLLM) SetChunkSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > 0 {
		m.chunkSize = n
	}
}

// SplitMessages makes each streamed chunk carry its own message index,
// simulating a backend that spreads a response across several messages.
func (m *MockLLM) SplitMessages(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.splitMsgs = on
}

// FailWith makes every subsequent call return err after streaming half the
// response, simulating a transport failure mid-stream. Pass nil to reset.
func (m *MockLLM) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// Calls returns a copy of all recorded calls.
func (m *MockLLM) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]MockCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// RegisterModel registers the mock as a Genkit model and returns its
// provider-qualified name, "mock/test-model".
func (m *MockLLM) RegisterModel(g *genkit.Genkit) string {
	genkit.DefineModel(g, "mock/test-model", &ai.ModelOptions{
		Label: "Mock Test Model",
		Supports: &ai.ModelSupports{
			Multiturn:  true,
			SystemRole: true,
		},
	}, m.generate)
	return "mock/test-model"
}

// generate is the Genkit model function.
func (m *MockLLM) generate(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
	var userText string
	var history []string
	for _, msg := range req.Messages {
		history = append(history, msg.Text())
		if msg.Role == ai.RoleUser {
			userText = msg.Text()
		}
	}

	m.mu.Lock()
	responseText := m.fallback
	lower := strings.ToLower(userText)
	for _, rule := range m.responses {
		if strings.Contains(lower, rule.pattern) {
			responseText = rule.response
			break
		}
	}
	chunkSize := m.chunkSize
	splitMsgs := m.splitMsgs
	failWith := m.failWith
	m.calls = append(m.calls, MockCall{
		UserMessage: userText,
		History:     history,
		Response:    responseText,
	})
	m.mu.Unlock()

	if cb != nil {
		streamed := 0
		index := 0
		for start := 0; start < len(responseText); start += chunkSize {
			if failWith != nil && streamed*2 >= len(responseText) {
				return nil, failWith
			}
			end := start + chunkSize
			if end > len(responseText) {
				end = len(responseText)
			}
			chunk := &ai.ModelResponseChunk{
				Content: []*ai.Part{ai.NewTextPart(responseText[start:end])},
				Role:    ai.RoleModel,
			}
			if splitMsgs {
				chunk.Index = index
				index++
			}
			if err := cb(ctx, chunk); err != nil {
				return nil, err
			}
			streamed = end
		}
	}
	if failWith != nil {
		return nil, failWith
	}

	return &ai.ModelResponse{
		Request: req,
		Message: &ai.Message{
			Role:    ai.RoleModel,
			Content: []*ai.Part{ai.NewTextPart(responseText)},
		},
	}, nil
}
