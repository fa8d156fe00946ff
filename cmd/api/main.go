package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rivo_backend/internal/adapters"
	"rivo_backend/internal/adapters/storage"
	"rivo_backend/internal/archive"
	"rivo_backend/internal/auth"
	"rivo_backend/internal/chat"
	chatrepo "rivo_backend/internal/chat/repository"
	"rivo_backend/internal/clients"
	"rivo_backend/internal/email"
	"rivo_backend/internal/events"
	apphttp "rivo_backend/internal/http"
	"rivo_backend/internal/http/router"
	"rivo_backend/internal/notification"
	"rivo_backend/internal/scheduler"
	"rivo_backend/internal/summarizer"
	"rivo_backend/platform/config"
	"rivo_backend/platform/db"
	"rivo_backend/platform/lock"
	"rivo_backend/platform/logger"
	"rivo_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

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
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	locker, closeLocker := initLocker(ctx, cfg, log)
	defer closeLocker()

	taskQueue, closeQueue := initTaskQueue(cfg, log)
	defer closeQueue()

	var sender email.Sender = email.NoopSender{}
	if cfg.IsEmailEnabled() {
		sender = email.NewSMTPSender(cfg)
		log.Info("smtp email sender initialized", "host", cfg.GetSMTPHost())
	} else {
		log.Warn("SMTP not configured; assignment emails disabled")
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	transcripts := initArchive(ctx, cfg, chatrepo.New(pool), log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	authModule := auth.NewModule(pool, cfg, log, val)
	staff := adapters.NewStaffDirectory(authModule.Service())

	clientDeps := clients.Deps{Users: staff, Subjects: authModule.Service(), PhoneRegion: cfg.GetPhoneDefaultRegion()}
	if transcripts != nil {
		clientDeps.Transcripts = transcripts
	}
	clientsModule, err := clients.NewModule(pool, clientDeps, eventBus, val, log)
	if err != nil {
		log.Error("failed to initialize clients module", "error", err)
		panic("failed to initialize clients module: " + err.Error())
	}

	// Notification module subscribes to domain events and serves the dashboard stream
	notificationModule := notification.New(sender, notification.Deps{
		Users:       staff,
		Assignments: clientsModule.Service(),
		Subjects:    authModule.Service(),
	}, cfg, log)
	notificationModule.RegisterHandlers(eventBus)
	defer notificationModule.SSE().Close()

	summarizerSvc := initSummarizer(cfg, chatrepo.New(pool), clientsModule.Service(), eventBus, log)

	var archiver adapters.TranscriptArchiver
	if transcripts != nil {
		archiver = transcripts
	}
	followUp := adapters.NewIntakeFollowUp(taskQueue, summarizerSvc, archiver, cfg.GetLLMTimeout()+10*time.Second, log)

	chatModule := chat.NewModule(pool, adapters.NewChatIntakeAdapter(clientsModule.Service()), locker, followUp, cfg, val, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config: cfg,
		Logger: log,
		Health: pool,
		Modules: []apphttp.Module{
			authModule,
			clientsModule,
			chatModule,
			notificationModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		// Open SSE streams would otherwise hold Shutdown until the timeout.
		notificationModule.SSE().Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		followUp.Wait()
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initLocker returns a Redis lock shared by all replicas, or an in-process
// lock when Redis is not configured.
func initLocker(ctx context.Context, cfg *config.Config, log *logger.Logger) (lock.Locker, func()) {
	if !cfg.IsRedisEnabled() {
		log.Warn("REDIS_URL not configured; chat intake lock is process-local")
		return lock.NewLocalLocker(), func() {}
	}

	client, err := lock.NewRedisClient(ctx, cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		log.Error("failed to connect to redis for intake lock", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	return lock.NewRedisLocker(client, "rivo:lock:", cfg.GetIntakeLockTTL()), func() {
		_ = client.Close()
	}
}

// initTaskQueue returns nil when Redis is not configured; follow-up work then
// runs in-process.
func initTaskQueue(cfg config.SchedulerConfig, log *logger.Logger) (adapters.TaskQueue, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; chat summaries run in-process")
		return nil, func() {}
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, func() {}
	}
	return client, func() {
		_ = client.Close()
	}
}

func initSummarizer(cfg config.SummarizerConfig, messages adapters.SessionMessages, store summarizer.ContextStore, eventBus events.Bus, log *logger.Logger) *summarizer.Service {
	var completer summarizer.Completer
	if cfg.IsSummarizerEnabled() {
		c, err := summarizer.NewOpenAICompleter(cfg.GetLLMAPIKey(), cfg.GetLLMBaseURL(), cfg.GetLLMModel())
		if err != nil {
			log.Error("failed to initialize summarizer", "error", err)
			panic("failed to initialize summarizer: " + err.Error())
		}
		completer = c
	} else {
		log.Warn("LLM API key not configured; chat summaries disabled")
	}
	return summarizer.New(completer, adapters.NewChatTranscriptSource(messages), store, eventBus, cfg.GetLLMTimeout(), log.WithComponent("summarizer"))
}

// initArchive returns nil when MinIO is not configured.
func initArchive(ctx context.Context, cfg *config.Config, messages archive.MessageLister, log *logger.Logger) *archive.Service {
	if !cfg.IsMinIOEnabled() {
		log.Warn("MINIO_ENDPOINT not configured; transcript archive disabled")
		return nil
	}

	storageSvc, err := storage.NewMinIOService(cfg)
	if err != nil {
		log.Error("failed to initialize storage service", "error", err)
		panic("failed to initialize storage service: " + err.Error())
	}
	bucket := cfg.GetMinioBucketTranscripts()
	if err := withRetry(ctx, log, "ensure transcripts bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", bucket)
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
	log.Info("storage service initialized", "transcriptsBucket", bucket)

	return archive.New(adapters.NewTranscriptObjectStore(storageSvc), messages, bucket, log)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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
