// Package redis holds the Redis-backed pieces shared by every worker process.
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

// WindowLimiter caps calls across all processes sharing a key prefix to
// Limit per Window using fixed windows.
type WindowLimiter struct {
	rdb    redis.Cmdable
	prefix string
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewWindowLimiter(rdb redis.Cmdable, prefix string, limit int, window time.Duration) *WindowLimiter {
	if window <= 0 {
		window = time.Second
	}
	return &WindowLimiter{rdb: rdb, prefix: prefix, limit: int64(limit), window: window, now: time.Now}
}

// Wait blocks until the current process may make one call.
func (l *WindowLimiter) Wait(ctx context.Context) error {
	for {
		now := l.now()
		slot := now.UnixNano() / int64(l.window)
		key := l.prefix + ":" + strconv.FormatInt(slot, 10)

		pipe := l.rdb.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.PExpire(ctx, key, 2*l.window)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}
		if incr.Val() <= l.limit {
			return nil
		}

		next := time.Unix(0, (slot+1)*int64(l.window))
		t := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
