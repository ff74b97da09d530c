package scheduler

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"spike_backend/internal/config"
)

// Client enqueues background tasks.
type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg *config.Config) (*Client, error) {
	opt, err := redisClientOpt(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueTraceRetentionSweep queues one immediate sweep, deduplicated so
// overlapping triggers collapse into a single run.
func (c *Client) EnqueueTraceRetentionSweep(ctx context.Context, payload TraceRetentionSweepPayload) error {
	if c == nil || c.client == nil {
		return nil
	}
	task, err := NewTraceRetentionSweepTask(payload)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue), asynq.TaskID(TaskTraceRetentionSweep))
	if err == asynq.ErrTaskIDConflict || err == asynq.ErrDuplicateTask {
		return nil
	}
	return err
}

// EnqueueInteractionRecount queues a counter rebuild for one client.
func (c *Client) EnqueueInteractionRecount(ctx context.Context, payload InteractionRecountPayload) error {
	if c == nil || c.client == nil {
		return nil
	}
	task, err := NewInteractionRecountTask(payload)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(c.queue))
	return err
}

func queueName(cfg *config.Config) string {
	if cfg.AsynqQueue != "" {
		return cfg.AsynqQueue
	}
	return "default"
}

func redisClientOpt(redisURL string) (asynq.RedisClientOpt, error) {
	if redisURL == "" {
		return asynq.RedisClientOpt{}, fmt.Errorf("redis url not configured")
	}
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}
