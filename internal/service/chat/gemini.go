package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"yorae/internal/model"

	"google.golang.org/genai"
)

// SystemInstruction sets up the cleaning-guide mascot persona.
const SystemInstruction = `당신은 청소 전후 비교 앱 "요래됐슴당"의 마스코트이자 전문 청소 가이드인 "요래"입니다. ` +
	`사용자의 청소 고민에 대해 실질적이고 효과적인 팁을 제공하며, 항상 밝고 긍정적인 말투를 유지하세요. ` +
	`대화 중간에 "요래됐슴당!"이라는 표현을 자연스럽게 섞어 사용하세요.`

var (
	ErrNotConfigured = errors.New("chat model API key is not configured")
	ErrEmptyReply    = errors.New("chat model returned no text")
)

// Client sends the conversation so far and returns the model's reply.
type Client interface {
	SendChatTurn(ctx context.Context, history []model.ChatMessage) (string, error)
}

// GeminiClient implements Client with the Google Gen AI SDK.
type GeminiClient struct {
	apiKey  string
	modelID string
	client  *genai.Client
	mu      sync.Mutex
}

// NewGeminiClient creates a client. The SDK client is created on first use.
func NewGeminiClient(apiKey, modelID string) *GeminiClient {
	return &GeminiClient{apiKey: apiKey, modelID: modelID}
}

func (g *GeminiClient) sdk(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}
	if g.apiKey == "" {
		return nil, ErrNotConfigured
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	g.client = client
	return client, nil
}

// SendChatTurn implements Client.
func (g *GeminiClient) SendChatTurn(ctx context.Context, history []model.ChatMessage) (string, error) {
	client, err := g.sdk(ctx)
	if err != nil {
		return "", err
	}

	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		contents = append(contents, &genai.Content{
			Role:  string(msg.Role),
			Parts: []*genai.Part{{Text: msg.Text}},
		})
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: SystemInstruction}},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, g.modelID, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	var sb strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}
