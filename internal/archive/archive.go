// Package archive keeps a plain-text copy of each finished intake transcript
// in object storage and hands out short-lived links to it.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	chatrepo "rivo_backend/internal/chat/repository"
	"rivo_backend/internal/clients/domain"
	"rivo_backend/platform/logger"

	"github.com/google/uuid"
)

const contentType = "text/plain; charset=utf-8"

// ObjectStore is the part of object storage the archive needs.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, fileKey, contentType string, reader io.Reader, size int64) error
	ObjectExists(ctx context.Context, bucket, fileKey string) (bool, error)
	DownloadURL(ctx context.Context, bucket, fileKey string) (string, error)
}

// MessageLister reads a chat session in order.
type MessageLister interface {
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]chatrepo.Message, error)
}

type Service struct {
	store    ObjectStore
	messages MessageLister
	bucket   string
	log      *logger.Logger
}

func New(store ObjectStore, messages MessageLister, bucket string, log *logger.Logger) *Service {
	return &Service{store: store, messages: messages, bucket: bucket, log: log.WithComponent("archive")}
}

// ObjectKey is where a session transcript lives. It is derived from the ids
// so no extra column is needed to find it again.
func ObjectKey(clientID, sessionID uuid.UUID) string {
	return fmt.Sprintf("transcripts/%s/%s.txt", clientID, sessionID)
}

// Archive uploads the session transcript, replacing any earlier copy.
// An empty session is skipped.
func (s *Service) Archive(ctx context.Context, clientID, sessionID uuid.UUID) error {
	msgs, err := s.messages.ListBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load transcript: %w", err)
	}
	if len(msgs) == 0 {
		s.log.Info("empty session, nothing to archive", slog.String("session_id", sessionID.String()))
		return nil
	}

	body := Render(msgs)
	key := ObjectKey(clientID, sessionID)
	if err := s.store.PutObject(ctx, s.bucket, key, contentType, bytes.NewReader(body), int64(len(body))); err != nil {
		return err
	}
	s.log.Info("transcript archived",
		slog.String("client_id", clientID.String()),
		slog.String("key", key),
		slog.Int("messages", len(msgs)),
	)
	return nil
}

// TranscriptURL returns a presigned link for the client's archived
// transcript, or "" when the client came in without chat or nothing has been
// archived yet.
func (s *Service) TranscriptURL(ctx context.Context, client domain.Client) (string, error) {
	if client.ChatSessionID == nil {
		return "", nil
	}
	key := ObjectKey(client.ID, *client.ChatSessionID)
	ok, err := s.store.ObjectExists(ctx, s.bucket, key)
	if err != nil || !ok {
		return "", err
	}
	return s.store.DownloadURL(ctx, s.bucket, key)
}

// Render formats messages as "[time] Sender (type): text", one per line.
func Render(msgs []chatrepo.Message) []byte {
	var b strings.Builder
	for _, m := range msgs {
		sender := "Bot"
		if m.SenderType == chatrepo.SenderClient {
			sender = "Client"
		}
		b.WriteString("[")
		b.WriteString(m.SentAt.UTC().Format(time.RFC3339))
		b.WriteString("] ")
		b.WriteString(sender)
		if m.DataType != "" && m.DataType != chatrepo.DataMessage {
			b.WriteString(" (")
			b.WriteString(m.DataType)
			b.WriteString(")")
		}
		b.WriteString(": ")
		b.WriteString(strings.ReplaceAll(m.Message, "\n", " "))
		b.WriteString("\n")
	}
	return []byte(b.String())
}
