package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"rivo_backend/platform/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	summarizeMaxRetry = 3
	summarizeTimeout  = 2 * time.Minute
	archiveMaxRetry   = 5
	archiveTimeout    = time.Minute
)

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
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

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueSummarizeChat schedules the chat summary for a freshly initialized client.
func (c *Client) EnqueueSummarizeChat(ctx context.Context, clientID, sessionID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewSummarizeChatTask(ClientSessionPayload{ClientID: clientID.String(), SessionID: sessionID.String()})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(summarizeMaxRetry),
		asynq.Timeout(summarizeTimeout),
	)
	return err
}

// EnqueueArchiveTranscript schedules the transcript upload to object storage.
func (c *Client) EnqueueArchiveTranscript(ctx context.Context, clientID, sessionID uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewArchiveTranscriptTask(ClientSessionPayload{ClientID: clientID.String(), SessionID: sessionID.String()})
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(archiveMaxRetry),
		asynq.Timeout(archiveTimeout),
	)
	return err
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
