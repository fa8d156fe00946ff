package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rivo_backend/internal/adapters"
	"rivo_backend/internal/adapters/storage"
	"rivo_backend/internal/archive"
	chatrepo "rivo_backend/internal/chat/repository"
	"rivo_backend/internal/clients/domain"
	clientrepo "rivo_backend/internal/clients/repository"
	clientservice "rivo_backend/internal/clients/service"
	"rivo_backend/internal/events"
	"rivo_backend/internal/scheduler"
	"rivo_backend/internal/summarizer"
	"rivo_backend/platform/apperr"
	"rivo_backend/platform/config"
	"rivo_backend/platform/db"
	"rivo_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

const dbHeartbeatInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	// Events raised by background jobs are only logged in this process.
	eventBus := events.NewInMemoryBus(log)

	messages := chatrepo.New(pool)
	clientsSvc := clientservice.New(clientrepo.New(pool), noDirectory{}, eventBus, log.WithComponent("clients"))

	var completer summarizer.Completer
	if cfg.IsSummarizerEnabled() {
		c, err := summarizer.NewOpenAICompleter(cfg.GetLLMAPIKey(), cfg.GetLLMBaseURL(), cfg.GetLLMModel())
		if err != nil {
			log.Error("failed to initialize summarizer", "error", err)
			panic("failed to initialize summarizer: " + err.Error())
		}
		completer = c
	} else {
		log.Warn("LLM API key not configured; summarize tasks will be skipped")
	}
	summarizerSvc := summarizer.New(completer, adapters.NewChatTranscriptSource(messages), clientsSvc, eventBus, cfg.GetLLMTimeout(), log.WithComponent("summarizer"))

	var archiver scheduler.TranscriptArchiver
	if cfg.IsMinIOEnabled() {
		storageSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		archiver = archive.New(adapters.NewTranscriptObjectStore(storageSvc), messages, cfg.GetMinioBucketTranscripts(), log)
	} else {
		log.Warn("MINIO_ENDPOINT not configured; archive tasks will be dropped")
	}

	worker, err := scheduler.NewWorker(cfg, summarizerSvc, archiver, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		worker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return watchDatabase(gctx, pool, log)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("scheduler stopped", "error", err)
	}
	eventBus.Wait()
}

// watchDatabase logs when the pool stops answering so a stuck worker is visible.
func watchDatabase(ctx context.Context, pool *pgxpool.Pool, log *logger.Logger) error {
	ticker := time.NewTicker(dbHeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := pool.Ping(pingCtx); err != nil && ctx.Err() == nil {
				log.Error("database ping failed", "error", err)
			}
			cancel()
		}
	}
}

// noDirectory backs the clients service in the worker, which never assigns.
type noDirectory struct{}

func (noDirectory) GetActiveUser(context.Context, uuid.UUID) (domain.UserRef, error) {
	return domain.UserRef{}, apperr.NotFound("user directory not available in worker")
}

func (noDirectory) GetActiveCSM(context.Context, uuid.UUID) (domain.UserRef, error) {
	return domain.UserRef{}, apperr.NotFound("user directory not available in worker")
}

func (noDirectory) ListCSMUsers(context.Context) ([]domain.UserRef, error) {
	return []domain.UserRef{}, nil
}

var _ clientservice.UserDirectory = noDirectory{}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
