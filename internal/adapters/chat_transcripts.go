package adapters

import (
	"context"

	chatrepo "rivo_backend/internal/chat/repository"
	"rivo_backend/internal/summarizer"

	"github.com/google/uuid"
)

// SessionMessages reads one chat session in order.
type SessionMessages interface {
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]chatrepo.Message, error)
}

// ChatTranscriptSource feeds stored chat messages to the summarizer.
type ChatTranscriptSource struct {
	messages SessionMessages
}

func NewChatTranscriptSource(messages SessionMessages) *ChatTranscriptSource {
	return &ChatTranscriptSource{messages: messages}
}

func (s *ChatTranscriptSource) Transcript(ctx context.Context, sessionID uuid.UUID) ([]summarizer.Line, error) {
	msgs, err := s.messages.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	lines := make([]summarizer.Line, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, summarizer.Line{SenderType: m.SenderType, Message: m.Message})
	}
	return lines, nil
}

var _ summarizer.TranscriptSource = (*ChatTranscriptSource)(nil)
