package openaicompat

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

type fakeCompleter struct {
	got  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.got = req
	return f.resp, f.err
}

func firstResponse(t *testing.T, m *Model, req *model.LLMRequest) (*model.LLMResponse, error) {
	t.Helper()
	for resp, err := range m.GenerateContent(context.Background(), req, false) {
		return resp, err
	}
	t.Fatal("no response yielded")
	return nil, nil
}

func TestGenerateContentMapsSystemAndUser(t *testing.T) {
	fake := &fakeCompleter{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: `{"intent":"loan"}`}}},
	}}
	m := NewModelWithClient(Config{Model: "gpt-4o-mini", Temperature: 0.3, MaxTokens: 500}, fake)

	resp, err := firstResponse(t, m, &model.LLMRequest{
		Contents: []*genai.Content{genai.NewContentFromText("Client: hi", genai.RoleUser)},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText("Respond with JSON.", genai.RoleUser),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fake.got.Messages) != 2 {
		t.Fatalf("expected system+user messages, got %d", len(fake.got.Messages))
	}
	if fake.got.Messages[0].Role != openai.ChatMessageRoleSystem || fake.got.Messages[1].Role != openai.ChatMessageRoleUser {
		t.Fatalf("unexpected roles: %+v", fake.got.Messages)
	}
	if fake.got.Temperature != 0.3 || fake.got.MaxTokens != 500 {
		t.Fatalf("defaults not applied: temp=%v max=%d", fake.got.Temperature, fake.got.MaxTokens)
	}
	if resp.Content.Parts[0].Text != `{"intent":"loan"}` {
		t.Fatalf("unexpected text %q", resp.Content.Parts[0].Text)
	}
}

func TestGenerateContentPropagatesErrors(t *testing.T) {
	m := NewModelWithClient(Config{}, &fakeCompleter{err: errors.New("503")})
	if _, err := firstResponse(t, m, &model.LLMRequest{}); err == nil {
		t.Fatal("expected error")
	}
}
