package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"ms-checkin/internal/logger"
)

const redisKeyPrefix = "checkin_lock:"

// unlockScript deletes the key only if it still holds our token, so a lock
// that expired and was taken by someone else is left alone.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker backed by SET NX with a TTL. The TTL bounds how long a
// crashed holder can block a table.
type Redis struct {
	Client *redis.Client
	TTL    time.Duration
	Retry  time.Duration
	Logger *logger.Logger
}

func NewRedis(client *redis.Client, ttl, retry time.Duration, log *logger.Logger) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}
	return &Redis{Client: client, TTL: ttl, Retry: retry, Logger: log}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := redisKeyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := r.Client.SetNX(ctx, redisKey, token, r.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", redisKey, err)
		}
		if ok {
			break
		}
		timer := time.NewTimer(r.Retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Released with a fresh context: the caller's may already be done.
			ctx, cancel := context.WithTimeout(context.Background(), r.TTL)
			defer cancel()
			if err := unlockScript.Run(ctx, r.Client, []string{redisKey}, token).Err(); err != nil && err != redis.Nil {
				r.Logger.Error("REDIS", fmt.Sprintf("Failed to release %s: %v", redisKey, err))
			}
		})
	}, nil
}
