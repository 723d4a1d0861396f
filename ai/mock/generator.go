package mock

import (
	"context"
	"strings"
	"sync/atomic"
)

// MockMetadataGenerator is a test double for ai.MetadataGenerator.
// It allows custom behavior injection via function fields.
type MockMetadataGenerator struct {
	// SummarizeFunc is called by Summarize if set.
	// If nil, uses default truncation behavior.
	SummarizeFunc func(ctx context.Context, text string) (string, error)

	// RetrievalContextFunc is called by RetrievalContext if set.
	// If nil, uses default behavior.
	RetrievalContextFunc func(ctx context.Context, text string) (string, error)

	// Pipelines generate metadata concurrently, so counters are atomic.
	summarizeCalls atomic.Int64
	contextCalls   atomic.Int64
}

// NewMockMetadataGenerator creates a mock generator with default behavior.
// Note: Returns concrete type to allow test assertions via GetMockGenerator().
func NewMockMetadataGenerator() *MockMetadataGenerator {
	return &MockMetadataGenerator{}
}

// Summarize returns a deterministic mock summary.
// Default behavior: the first ten words of the text prefixed with "summary:".
func (m *MockMetadataGenerator) Summarize(ctx context.Context, text string) (string, error) {
	m.summarizeCalls.Add(1)

	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, text)
	}

	return "summary: " + firstWords(text, 10), nil
}

// RetrievalContext returns a deterministic mock retrieval context.
// Default behavior: the first five words of the text prefixed with "context:".
func (m *MockMetadataGenerator) RetrievalContext(ctx context.Context, text string) (string, error) {
	m.contextCalls.Add(1)

	if m.RetrievalContextFunc != nil {
		return m.RetrievalContextFunc(ctx, text)
	}

	return "context: " + firstWords(text, 5), nil
}

// SummarizeCallCount returns the number of times Summarize was called.
func (m *MockMetadataGenerator) SummarizeCallCount() int {
	return int(m.summarizeCalls.Load())
}

// ContextCallCount returns the number of times RetrievalContext was called.
func (m *MockMetadataGenerator) ContextCallCount() int {
	return int(m.contextCalls.Load())
}

// Reset clears the call counts and custom functions.
func (m *MockMetadataGenerator) Reset() {
	m.summarizeCalls.Store(0)
	m.contextCalls.Store(0)
	m.SummarizeFunc = nil
	m.RetrievalContextFunc = nil
}

func firstWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
