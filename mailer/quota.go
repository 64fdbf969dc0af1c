package mailer

import (
	"context"
	"fmt"
	"time"

	"dripcast/config"

	"github.com/go-redis/redis/v8"
)

// SendQuota caps the number of automated emails sent per calendar day,
// backed by a Redis counter that expires at midnight. A nil *SendQuota
// disables the cap.
type SendQuota struct {
	client *redis.Client
	limit  int
}

func NewSendQuota(cfg config.RedisConfig, limit int) *SendQuota {
	if !cfg.Enabled || limit <= 0 {
		return nil
	}
	return &SendQuota{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		limit: limit,
	}
}

// Allow consumes one send from today's quota, or returns an error when
// the daily limit is reached.
func (q *SendQuota) Allow(ctx context.Context) error {
	now := time.Now()
	key := "dripcast:sends:" + now.Format("2006-01-02")

	count, err := q.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("send quota check failed: %w", err)
	}
	if count == 1 {
		midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
		q.client.ExpireAt(ctx, key, midnight)
	}
	if int(count) > q.limit {
		return fmt.Errorf("daily send limit of %d reached", q.limit)
	}
	return nil
}

func (q *SendQuota) Close() error {
	if q == nil {
		return nil
	}
	return q.client.Close()
}
