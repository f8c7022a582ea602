package execution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const defaultLockTTL = 30 * time.Second

// releaseScript deletes the lock only when the caller still owns it, so a
// lock that expired and was re-acquired elsewhere is never released by the
// stale holder.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker is the distributed Locker used when multiple scheduler or
// dispatcher instances run against the same database.
type RedisLocker struct {
	client redis.UniversalClient
	logger *slog.Logger
	ttl    time.Duration
}

func NewRedisLocker(client redis.UniversalClient, logger *slog.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		logger: logger.With("module", "redis_locker"),
		ttl:    defaultLockTTL,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, executionID string) (func(), bool, error) {
	key := "leadflow:execlock:" + executionID
	token := uuid.New().String()

	acquired, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire execution lock: %w", err)
	}

	if !acquired {
		return nil, false, nil
	}

	release := func() {
		// Release must not inherit a cancelled request context.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("Failed to release execution lock", "execution_id", executionID, "error", err)
		}
	}

	return release, true, nil
}
