package adapters

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	chatservice "rivo_backend/internal/chat/service"
	"rivo_backend/internal/summarizer"
	"rivo_backend/platform/logger"

	"github.com/google/uuid"
)

// TaskQueue hands post-intake work to the background worker.
type TaskQueue interface {
	EnqueueSummarizeChat(ctx context.Context, clientID, sessionID uuid.UUID) error
	EnqueueArchiveTranscript(ctx context.Context, clientID, sessionID uuid.UUID) error
}

// ClientSummarizer builds and stores the client context from the transcript.
type ClientSummarizer interface {
	SummarizeClient(ctx context.Context, clientID, sessionID uuid.UUID) error
}

// TranscriptArchiver stores the session transcript in object storage.
type TranscriptArchiver interface {
	Archive(ctx context.Context, clientID, sessionID uuid.UUID) error
}

// IntakeFollowUp runs summarization and archival after a client has been
// initialized. With a queue the work is enqueued; without one, or when
// enqueueing fails, it runs in a goroutine bounded by timeout.
type IntakeFollowUp struct {
	queue      TaskQueue
	summarizer ClientSummarizer
	archiver   TranscriptArchiver
	timeout    time.Duration
	log        *logger.Logger
	wg         sync.WaitGroup
}

// NewIntakeFollowUp wires the follow-up. queue and archiver may be nil.
func NewIntakeFollowUp(queue TaskQueue, summarizer ClientSummarizer, archiver TranscriptArchiver, timeout time.Duration, log *logger.Logger) *IntakeFollowUp {
	return &IntakeFollowUp{
		queue:      queue,
		summarizer: summarizer,
		archiver:   archiver,
		timeout:    timeout,
		log:        log.WithComponent("intake_followup"),
	}
}

func (f *IntakeFollowUp) ClientInitialized(ctx context.Context, clientID, sessionID uuid.UUID) {
	if f.queue == nil || f.queue.EnqueueSummarizeChat(ctx, clientID, sessionID) != nil {
		f.runInline(ctx, "summarize", clientID, func(ctx context.Context) error {
			return f.summarizer.SummarizeClient(ctx, clientID, sessionID)
		})
	}

	if f.archiver == nil {
		return
	}
	if f.queue == nil || f.queue.EnqueueArchiveTranscript(ctx, clientID, sessionID) != nil {
		f.runInline(ctx, "archive", clientID, func(ctx context.Context) error {
			return f.archiver.Archive(ctx, clientID, sessionID)
		})
	}
}

func (f *IntakeFollowUp) runInline(ctx context.Context, job string, clientID uuid.UUID, fn func(context.Context) error) {
	if f.queue != nil {
		f.log.Warn("enqueue failed, running inline", slog.String("job", job), slog.String("client_id", clientID.String()))
	}
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.timeout)
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer cancel()
		err := fn(runCtx)
		if errors.Is(err, summarizer.ErrCallFailed) {
			// Inline runs have no retry; the fallback context is already stored.
			f.log.Warn("chat summary fell back after model failure", slog.String("client_id", clientID.String()))
			return
		}
		if err != nil {
			f.log.Error("intake follow-up failed",
				slog.String("job", job),
				slog.String("client_id", clientID.String()),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Wait blocks until inline jobs have finished. Used on shutdown and in tests.
func (f *IntakeFollowUp) Wait() {
	f.wg.Wait()
}

var _ chatservice.FollowUp = (*IntakeFollowUp)(nil)
