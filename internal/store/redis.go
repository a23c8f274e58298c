package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the one client per process behind SESSION_BACKEND=redis
// (keys "classroom:session:<id>") and QUEUE_BACKEND=redis (list
// "classroom:events"). Flat tables never live in Redis.
type Redis struct {
	Client *redis.Client
}

// NewRedis does not dial; the first command or Healthy call connects.
// Timeouts stay short so a dead Redis surfaces as a 500 or a failing
// /healthz instead of hanging requests.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client}
}

// Healthy pings Redis for /healthz and the worker's startup check. A nil
// receiver reports false.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.Client.Ping(ctx).Err() == nil
}

// Close releases the pool at shutdown. Safe on a nil receiver.
func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
