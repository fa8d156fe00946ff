package adapters

import (
	"context"
	"encoding/json"

	chatservice "rivo_backend/internal/chat/service"
	"rivo_backend/internal/clients/domain"
	"rivo_backend/internal/clients/repository"

	"github.com/google/uuid"
)

// ClientLifecycle is the part of the clients service chat intake drives.
type ClientLifecycle interface {
	RecordChatField(ctx context.Context, sessionID uuid.UUID, field repository.ChatField, value string) (domain.Client, error)
	ClientForSession(ctx context.Context, sessionID uuid.UUID) (*domain.Client, error)
	Initialize(ctx context.Context, clientID uuid.UUID, contextDoc json.RawMessage) (bool, error)
}

// ChatIntakeAdapter lets the chat module write collected fields into the
// client pipeline without importing it.
type ChatIntakeAdapter struct {
	clients ClientLifecycle
}

func NewChatIntakeAdapter(clients ClientLifecycle) *ChatIntakeAdapter {
	return &ChatIntakeAdapter{clients: clients}
}

func (a *ChatIntakeAdapter) RecordField(ctx context.Context, sessionID uuid.UUID, field, value string) (chatservice.IntakeClient, error) {
	c, err := a.clients.RecordChatField(ctx, sessionID, repository.ChatField(field), value)
	if err != nil {
		return chatservice.IntakeClient{}, err
	}
	return toIntakeClient(c), nil
}

func (a *ChatIntakeAdapter) ClientForSession(ctx context.Context, sessionID uuid.UUID) (*chatservice.IntakeClient, error) {
	c, err := a.clients.ClientForSession(ctx, sessionID)
	if err != nil || c == nil {
		return nil, err
	}
	ic := toIntakeClient(*c)
	return &ic, nil
}

// Initialize promotes the client with an empty context; the summary is filled
// in afterwards.
func (a *ChatIntakeAdapter) Initialize(ctx context.Context, clientID uuid.UUID) (bool, error) {
	return a.clients.Initialize(ctx, clientID, nil)
}

func toIntakeClient(c domain.Client) chatservice.IntakeClient {
	return chatservice.IntakeClient{ID: c.ID, Complete: c.IsComplete()}
}

var _ chatservice.ClientIntake = (*ChatIntakeAdapter)(nil)
