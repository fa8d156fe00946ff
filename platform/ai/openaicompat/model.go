// Package openaicompat adapts any OpenAI-compatible chat completion endpoint
// to the ADK model.LLM interface.
package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// Config for an OpenAI-compatible endpoint. Temperature and MaxTokens are
// defaults; request-level GenerateContentConfig values win.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
}

// ChatCompleter is the slice of the go-openai client this adapter needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Model implements model.LLM on top of go-openai.
type Model struct {
	config Config
	client ChatCompleter
}

// NewModel builds a Model talking to cfg.BaseURL (OpenAI when empty).
func NewModel(cfg Config) *Model {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return NewModelWithClient(cfg, openai.NewClientWithConfig(clientCfg))
}

// NewModelWithClient is NewModel with an injected transport.
func NewModelWithClient(cfg Config, client ChatCompleter) *Model {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	return &Model{config: cfg, client: client}
}

func (m *Model) Name() string {
	return m.config.Model
}

// GenerateContent sends the conversation as a single non-streaming completion.
func (m *Model) GenerateContent(ctx context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		resp, err := m.generate(ctx, req)
		yield(resp, err)
	}
}

func (m *Model) generate(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error) {
	if req == nil {
		return nil, errors.New("openaicompat: nil request")
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       m.config.Model,
		Messages:    convertMessages(req),
		Temperature: m.config.Temperature,
		MaxTokens:   m.config.MaxTokens,
	}
	if req.Config != nil {
		if req.Config.Temperature != nil {
			chatReq.Temperature = *req.Config.Temperature
		}
		if req.Config.MaxOutputTokens > 0 {
			chatReq.MaxTokens = int(req.Config.MaxOutputTokens)
		}
	}

	resp, err := m.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion: empty choices")
	}

	var parts []*genai.Part
	if text := resp.Choices[0].Message.Content; strings.TrimSpace(text) != "" {
		parts = append(parts, genai.NewPartFromText(text))
	}

	return &model.LLMResponse{
		Content: &genai.Content{Role: genai.RoleModel, Parts: parts},
	}, nil
}

func convertMessages(req *model.LLMRequest) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Contents)+1)

	if req.Config != nil && req.Config.SystemInstruction != nil {
		if text := joinText(req.Config.SystemInstruction); text != "" {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: text,
			})
		}
	}

	for _, content := range req.Contents {
		if content == nil {
			continue
		}
		text := joinText(content)
		if text == "" {
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    roleForContent(content.Role),
			Content: text,
		})
	}
	return messages
}

func roleForContent(role string) string {
	if role == genai.RoleModel {
		return openai.ChatMessageRoleAssistant
	}
	return openai.ChatMessageRoleUser
}

func joinText(content *genai.Content) string {
	var b strings.Builder
	for _, part := range content.Parts {
		if part == nil || strings.TrimSpace(part.Text) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(part.Text)
	}
	return strings.TrimSpace(b.String())
}

var _ model.LLM = (*Model)(nil)
