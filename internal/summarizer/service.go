// Package summarizer turns an intake chat transcript into the structured
// context stored on a client.
package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rivo_backend/internal/events"
	"rivo_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// TranscriptSource reads a chat session in send order.
type TranscriptSource interface {
	Transcript(ctx context.Context, sessionID uuid.UUID) ([]Line, error)
}

// ContextStore persists the summary on the client.
type ContextStore interface {
	SetContext(ctx context.Context, clientID uuid.UUID, contextDoc json.RawMessage) error
}

// Outcome classifies a summarization attempt.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeEmpty       Outcome = "empty"
	OutcomeParseFailed Outcome = "parse_failed"
	OutcomeCallFailed  Outcome = "call_failed"
)

// ErrCallFailed is returned by SummarizeClient after the call-failure
// fallback has been stored, so a task runner can retry the model call.
var ErrCallFailed = errors.New("summarizer: model call failed")

type Service struct {
	completer   Completer
	transcripts TranscriptSource
	store       ContextStore
	eventBus    events.Bus
	timeout     time.Duration
	group       singleflight.Group
	log         *logger.Logger
}

// New creates the service. A nil completer disables summarization.
func New(completer Completer, transcripts TranscriptSource, store ContextStore, eventBus events.Bus, timeout time.Duration, log *logger.Logger) *Service {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Service{
		completer:   completer,
		transcripts: transcripts,
		store:       store,
		eventBus:    eventBus,
		timeout:     timeout,
		log:         log,
	}
}

// Enabled reports whether a model is configured.
func (s *Service) Enabled() bool {
	return s.completer != nil
}

// Summarize never fails: model and parse errors become fallback payloads.
// An empty transcript yields {} without calling the model.
func (s *Service) Summarize(ctx context.Context, lines []Line) (json.RawMessage, Outcome) {
	if len(lines) == 0 {
		return json.RawMessage(`{}`), OutcomeEmpty
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reply, err := s.completer.Complete(callCtx, BuildPrompt(BuildTranscript(lines)))
	if err != nil {
		return CallFailure(err), OutcomeCallFailed
	}
	payload, ok := Parse(reply)
	if !ok {
		return payload, OutcomeParseFailed
	}
	return payload, OutcomeOK
}

// SummarizeClient summarizes a session and stores the result on the client.
// Concurrent calls for one client share a single model call. A failed model
// call still stores the fallback and then returns ErrCallFailed; an
// unparseable reply is final and returns nil.
func (s *Service) SummarizeClient(ctx context.Context, clientID, sessionID uuid.UUID) error {
	log := s.log.WithContext(ctx).With(
		slog.String("client_id", clientID.String()),
		slog.String("session_id", sessionID.String()),
	)
	if !s.Enabled() {
		log.Info("summarizer disabled, skipping chat summary")
		return nil
	}

	_, err, _ := s.group.Do(clientID.String(), func() (any, error) {
		lines, err := s.transcripts.Transcript(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("load transcript: %w", err)
		}

		payload, outcome := s.Summarize(ctx, lines)
		switch outcome {
		case OutcomeCallFailed:
			log.Warn("chat summary call failed", slog.String("outcome", string(outcome)))
		case OutcomeParseFailed:
			log.Warn("chat summary was not valid JSON", slog.String("outcome", string(outcome)))
		default:
			log.Info("chat summarized", slog.String("outcome", string(outcome)))
		}

		if err := s.store.SetContext(ctx, clientID, payload); err != nil {
			return nil, fmt.Errorf("store client context: %w", err)
		}
		s.eventBus.Publish(ctx, events.ClientContextUpdated{
			BaseEvent: events.NewBaseEvent(),
			ClientID:  clientID,
			Failed:    outcome == OutcomeCallFailed || outcome == OutcomeParseFailed,
		})
		if outcome == OutcomeCallFailed {
			return nil, fmt.Errorf("client %s: %w", clientID, ErrCallFailed)
		}
		return nil, nil
	})
	return err
}
