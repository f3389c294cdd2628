package locker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/walletkeeper/internal/logging"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// RedisLocker holds locks as SET NX keys with a TTL so a crashed holder
// cannot block others forever. Waiters poll until the key frees up.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	poll   time.Duration
	logger logging.Logger
}

func NewRedisLocker(client redis.UniversalClient, ttl time.Duration, logger logging.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		prefix: "walletkeeper:lock:",
		ttl:    ttl,
		poll:   50 * time.Millisecond,
		logger: logger.With("module", "locker"),
	}
}

func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := r.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// release must succeed even if the caller's ctx is already done
			relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			n, err := releaseScript.Run(relCtx, r.client, []string{redisKey}, token).Int()
			if err != nil {
				r.logger.Warn(relCtx, "lock release failed", "key", key, "error", err)
				return
			}
			if n == 0 {
				r.logger.Warn(relCtx, "lock expired before release", "key", key)
			}
		})
	}, nil
}
