package scheduler

import (
	"context"
	"fmt"

	"rivo_backend/platform/config"
	"rivo_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// ChatSummarizer stores an LLM summary of the session on the client.
type ChatSummarizer interface {
	SummarizeClient(ctx context.Context, clientID, sessionID uuid.UUID) error
}

// TranscriptArchiver uploads the session transcript to object storage.
type TranscriptArchiver interface {
	Archive(ctx context.Context, clientID, sessionID uuid.UUID) error
}

type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	summarizer ChatSummarizer
	archiver   TranscriptArchiver
	log        *logger.Logger
}

// NewWorker builds the task server. archiver may be nil when storage is not configured.
func NewWorker(cfg config.SchedulerConfig, summarizer ChatSummarizer, archiver TranscriptArchiver, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	return newWorker(server, summarizer, archiver, log), nil
}

func newWorker(server *asynq.Server, summarizer ChatSummarizer, archiver TranscriptArchiver, log *logger.Logger) *Worker {
	mux := asynq.NewServeMux()
	w := &Worker{
		server:     server,
		mux:        mux,
		summarizer: summarizer,
		archiver:   archiver,
		log:        log,
	}

	mux.HandleFunc(TaskSummarizeChat, w.handleSummarizeChat)
	mux.HandleFunc(TaskArchiveTranscript, w.handleArchiveTranscript)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleSummarizeChat(ctx context.Context, task *asynq.Task) error {
	clientID, sessionID, err := parseIDs(task)
	if err != nil {
		return err
	}
	return w.summarizer.SummarizeClient(ctx, clientID, sessionID)
}

func (w *Worker) handleArchiveTranscript(ctx context.Context, task *asynq.Task) error {
	clientID, sessionID, err := parseIDs(task)
	if err != nil {
		return err
	}
	if w.archiver == nil {
		w.log.Warn("transcript archive task dropped, storage not configured", "client_id", clientID.String())
		return nil
	}
	return w.archiver.Archive(ctx, clientID, sessionID)
}

// parseIDs rejects malformed payloads without retrying them.
func parseIDs(task *asynq.Task) (uuid.UUID, uuid.UUID, error) {
	payload, err := ParseClientSessionPayload(task)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	clientID, sessionID, err := payload.ids()
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	return clientID, sessionID, nil
}
