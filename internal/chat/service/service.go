// Package service implements chat intake: storing the conversation and
// promoting a session to a tracked client once name, email and phone are known.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rivo_backend/internal/chat/repository"
	"rivo_backend/platform/apperr"
	"rivo_backend/platform/lock"
	"rivo_backend/platform/logger"
	"rivo_backend/platform/phone"

	"github.com/google/uuid"
)

// Repository is the chat log storage.
type Repository interface {
	Insert(ctx context.Context, in repository.NewMessage) (repository.Message, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]repository.Message, error)
	LinkSession(ctx context.Context, sessionID, clientID uuid.UUID) (int64, error)
}

// IntakeClient is the part of a client chat intake cares about.
type IntakeClient struct {
	ID       uuid.UUID
	Complete bool
}

// ClientIntake writes collected fields to the client pipeline.
type ClientIntake interface {
	// RecordField stores one field on the session's client, creating it when needed.
	RecordField(ctx context.Context, sessionID uuid.UUID, field, value string) (IntakeClient, error)
	// ClientForSession returns the session's client, or nil when none exists yet.
	ClientForSession(ctx context.Context, sessionID uuid.UUID) (*IntakeClient, error)
	// Initialize promotes a complete client once. It reports whether it did anything.
	Initialize(ctx context.Context, clientID uuid.UUID) (bool, error)
}

// FollowUp runs the post-initialization work (summary, transcript archive).
type FollowUp interface {
	ClientInitialized(ctx context.Context, clientID, sessionID uuid.UUID)
}

// Config tunes intake behaviour.
type Config struct {
	PhoneRegion string
	LockTimeout time.Duration
}

type Service struct {
	repo     Repository
	clients  ClientIntake
	locker   lock.Locker
	followUp FollowUp
	cfg      Config
	log      *logger.Logger
}

func New(repo Repository, clients ClientIntake, locker lock.Locker, followUp FollowUp, cfg Config, log *logger.Logger) *Service {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 10 * time.Second
	}
	return &Service{repo: repo, clients: clients, locker: locker, followUp: followUp, cfg: cfg, log: log}
}

// SendInput is one incoming chat line.
type SendInput struct {
	SessionID  uuid.UUID
	Message    string
	SenderType string
	DataType   string
}

// Send stores a chat message. A client message tagged with a field also
// updates the session's client and, once the client is complete, triggers
// one-time initialization. The whole pipeline holds the session's intake lock.
func (s *Service) Send(ctx context.Context, in SendInput) (repository.Message, error) {
	in, err := normalizeInput(in)
	if err != nil {
		return repository.Message{}, err
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.cfg.LockTimeout)
	defer cancel()
	release, err := s.locker.Acquire(lockCtx, "chat:intake:"+in.SessionID.String())
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return repository.Message{}, apperr.Unavailable("session is busy, retry shortly")
		}
		return repository.Message{}, fmt.Errorf("acquire intake lock: %w", err)
	}
	defer release()

	var client *IntakeClient
	tagged := in.SenderType == repository.SenderClient && in.DataType != repository.DataMessage
	if tagged {
		value := in.Message
		if in.DataType == repository.DataPhone {
			value = phone.NormalizeE164(value, s.cfg.PhoneRegion)
		}
		recorded, err := s.clients.RecordField(ctx, in.SessionID, in.DataType, value)
		if err != nil {
			return repository.Message{}, err
		}
		client = &recorded
	} else {
		client, err = s.clients.ClientForSession(ctx, in.SessionID)
		if err != nil {
			return repository.Message{}, err
		}
	}

	msg := repository.NewMessage{
		SessionID:  in.SessionID,
		Message:    in.Message,
		SenderType: in.SenderType,
		DataType:   in.DataType,
	}
	if client != nil {
		msg.ClientID = &client.ID
	}
	stored, err := s.repo.Insert(ctx, msg)
	if err != nil {
		return repository.Message{}, fmt.Errorf("insert chat message: %w", err)
	}

	if !tagged || !client.Complete {
		return stored, nil
	}

	if _, err := s.repo.LinkSession(ctx, in.SessionID, client.ID); err != nil {
		return repository.Message{}, fmt.Errorf("link session messages: %w", err)
	}
	initialized, err := s.clients.Initialize(ctx, client.ID)
	if err != nil {
		return repository.Message{}, err
	}
	if initialized {
		s.log.WithContext(ctx).Info("chat client initialized",
			slog.String("client_id", client.ID.String()),
			slog.String("session_id", in.SessionID.String()),
		)
		if s.followUp != nil {
			s.followUp.ClientInitialized(ctx, client.ID, in.SessionID)
		}
	}
	return stored, nil
}

// History returns the session's messages in send order.
func (s *Service) History(ctx context.Context, sessionID uuid.UUID) ([]repository.Message, error) {
	return s.repo.ListBySession(ctx, sessionID)
}

func normalizeInput(in SendInput) (SendInput, error) {
	if in.SessionID == uuid.Nil {
		return in, apperr.Validation("session_id is required")
	}
	in.Message = strings.TrimSpace(in.Message)
	if in.Message == "" {
		return in, apperr.Validation("Message cannot be empty")
	}

	in.SenderType = strings.ToLower(strings.TrimSpace(in.SenderType))
	if in.SenderType == "" {
		in.SenderType = repository.SenderClient
	}
	if in.SenderType != repository.SenderClient && in.SenderType != repository.SenderBot {
		return in, apperr.Validation(fmt.Sprintf("%q is not a valid sender_type", in.SenderType))
	}

	in.DataType = strings.ToLower(strings.TrimSpace(in.DataType))
	switch in.DataType {
	case "":
		in.DataType = repository.DataMessage
	case repository.DataMessage, repository.DataName, repository.DataEmail, repository.DataPhone:
	default:
		return in, apperr.Validation(fmt.Sprintf("%q is not a valid data_type", in.DataType))
	}
	return in, nil
}
