package llm

import (
	"context"
	"strings"
)

// MockGenerator echoes a canned answer. Used in tests and in offline mode.
type MockGenerator struct {
	Answer string
}

// NewMockGenerator returns a generator that always answers with answer.
func NewMockGenerator(answer string) *MockGenerator {
	return &MockGenerator{Answer: answer}
}

func (m *MockGenerator) Generate(ctx context.Context, question, contextBlock string) (string, error) {
	return m.Answer, nil
}

// GenerateStream delivers the answer word by word so streaming consumers see
// multiple deltas.
func (m *MockGenerator) GenerateStream(ctx context.Context, question, contextBlock string, onDelta func(string)) (string, error) {
	if onDelta != nil {
		words := strings.SplitAfter(m.Answer, " ")
		for _, w := range words {
			onDelta(w)
		}
	}
	return m.Answer, nil
}
