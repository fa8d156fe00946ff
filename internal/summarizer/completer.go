package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rivo_backend/platform/ai/openaicompat"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"
)

// Completer sends one prompt and returns the model's text reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const appName = "chat-summarizer"

// AgentCompleter runs prompts through an ADK agent with no tools.
type AgentCompleter struct {
	runner         *runner.Runner
	sessionService session.Service
}

// NewOpenAICompleter builds an AgentCompleter over an OpenAI-compatible endpoint.
func NewOpenAICompleter(apiKey, baseURL, modelName string) (*AgentCompleter, error) {
	return NewAgentCompleter(openaicompat.NewModel(openaicompat.Config{
		APIKey:      apiKey,
		BaseURL:     baseURL,
		Model:       modelName,
		Temperature: 0.3,
		MaxTokens:   500,
	}))
}

// NewAgentCompleter builds an AgentCompleter over any ADK model.
func NewAgentCompleter(llm model.LLM) (*AgentCompleter, error) {
	adkAgent, err := llmagent.New(llmagent.Config{
		Name:        "ChatSummarizer",
		Model:       llm,
		Description: "Extracts structured client context from intake chat transcripts.",
		Instruction: SystemInstruction,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create summarizer agent: %w", err)
	}

	sessionService := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        appName,
		Agent:          adkAgent,
		SessionService: sessionService,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create summarizer runner: %w", err)
	}
	return &AgentCompleter{runner: r, sessionService: sessionService}, nil
}

// Complete runs prompt in a throwaway session.
func (c *AgentCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	sessionID := uuid.NewString()
	userID := "summarizer"

	if _, err := c.sessionService.Create(ctx, &session.CreateRequest{
		AppName:   appName,
		UserID:    userID,
		SessionID: sessionID,
	}); err != nil {
		return "", fmt.Errorf("failed to create summarizer session: %w", err)
	}
	defer func() {
		_ = c.sessionService.Delete(context.WithoutCancel(ctx), &session.DeleteRequest{
			AppName:   appName,
			UserID:    userID,
			SessionID: sessionID,
		})
	}()

	userMessage := &genai.Content{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: prompt}},
	}

	var output strings.Builder
	runConfig := agent.RunConfig{StreamingMode: agent.StreamingModeNone}
	for event, err := range c.runner.Run(ctx, userID, sessionID, userMessage, runConfig) {
		if err != nil {
			return "", fmt.Errorf("summarizer run failed: %w", err)
		}
		if event == nil || event.Content == nil {
			continue
		}
		for _, part := range event.Content.Parts {
			if part != nil {
				output.WriteString(part.Text)
			}
		}
	}

	if strings.TrimSpace(output.String()) == "" {
		return "", errors.New("summarizer returned no content")
	}
	return output.String(), nil
}

var _ Completer = (*AgentCompleter)(nil)
