// Package llm generates answers through an OpenAI-compatible chat endpoint.
// Local servers (vLLM, llama.cpp, LM Studio) work by pointing the base URL at
// them; the wire protocol is the same.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Generator produces an answer for a question given assembled context.
type Generator interface {
	// Generate returns the full answer in one call.
	Generate(ctx context.Context, question, contextBlock string) (string, error)
	// GenerateStream sends answer fragments to onDelta as they arrive and
	// returns the full answer once the stream ends.
	GenerateStream(ctx context.Context, question, contextBlock string, onDelta func(string)) (string, error)
}

// BuildPrompt renders the user prompt. The instructions are Vietnamese and
// pin the answer language; with context the model is told to use only the
// provided information.
func BuildPrompt(question, contextBlock string) string {
	question = strings.TrimSpace(question)
	contextBlock = strings.TrimSpace(contextBlock)
	if contextBlock != "" {
		return fmt.Sprintf(`Dựa trên thông tin sau:

Context: %s

Hãy trả lời câu hỏi sau một cách ngắn gọn và chính xác bằng tiếng Việt, chỉ sử dụng thông tin được cung cấp:

Câu hỏi: %s

Trả lời (bằng tiếng Việt):`, contextBlock, question)
	}
	return fmt.Sprintf(`Hãy trả lời câu hỏi sau một cách ngắn gọn và chính xác bằng tiếng Việt:

Câu hỏi: %s

Trả lời (bằng tiếng Việt):`, question)
}
