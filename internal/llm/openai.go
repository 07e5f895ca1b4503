package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = "Bạn là trợ lý hỏi đáp về An ninh An toàn thông tin. Luôn trả lời bằng tiếng Việt."

// OpenAIGenerator calls a chat-completions endpoint.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// Config holds the generator's endpoint and sampling settings.
type Config struct {
	APIKey      string
	BaseURL     string // empty for the default endpoint
	Model       string
	MaxTokens   int
	Temperature float32
}

// NewOpenAIGenerator builds a generator from cfg.
func NewOpenAIGenerator(cfg Config) *OpenAIGenerator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

func (g *OpenAIGenerator) request(question, contextBlock string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(question, contextBlock)},
		},
	}
}

// Generate returns the model's full answer.
func (g *OpenAIGenerator) Generate(ctx context.Context, question, contextBlock string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, g.request(question, contextBlock))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// GenerateStream streams the answer, invoking onDelta per fragment, and
// returns the accumulated answer.
func (g *OpenAIGenerator) GenerateStream(ctx context.Context, question, contextBlock string, onDelta func(string)) (string, error) {
	stream, err := g.client.CreateChatCompletionStream(ctx, g.request(question, contextBlock))
	if err != nil {
		return "", fmt.Errorf("open completion stream: %w", err)
	}
	defer stream.Close()

	var full strings.Builder
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read completion stream: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if onDelta != nil {
			onDelta(delta)
		}
	}
	return strings.TrimSpace(full.String()), nil
}
