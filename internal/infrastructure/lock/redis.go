package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ersonp/review-core/internal/domain/entities"
	"github.com/ersonp/review-core/internal/domain/ports"
	"github.com/ersonp/review-core/internal/infrastructure/config"
)

const (
	minBackoff = 10 * time.Millisecond
	maxBackoff = 500 * time.Millisecond
)

// releaseScript deletes the lock key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker serializes merges per branch across processes sharing a Redis.
// A held lock expires after ttl so a crashed holder cannot wedge a branch.
type RedisLocker struct {
	rdb       redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisLocker creates a RedisLocker over an existing client.
func NewRedisLocker(rdb redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{rdb: rdb, keyPrefix: keyPrefix, ttl: ttl}
}

// NewRedisLockerFromConfig dials Redis using cfg.
func NewRedisLockerFromConfig(cfg config.RedisConfig) (*RedisLocker, *redis.Client) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisLocker(client, cfg.KeyPrefix, cfg.LockTTL), client
}

func (l *RedisLocker) key(dest entities.Branch) string {
	return l.keyPrefix + dest.String()
}

// Lock retries SET NX with exponential backoff until it wins or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, dest entities.Branch) (func(), error) {
	key := l.key(dest)
	token := uuid.New().String()
	backoff := minBackoff

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, lockHeld(dest, ctx.Err())
			}
			return nil, fmt.Errorf("acquiring lock on %s: %w", dest, err)
		}
		if ok {
			break
		}

		log.Debugf("lock on %s held elsewhere, retrying in %s", dest, backoff)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, lockHeld(dest, ctx.Err())
		case <-timer.C:
		}
		backoff = min(backoff*2, maxBackoff)
	}

	unlock := func() {
		// Release even when the caller's context is already cancelled.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			log.Warningf("releasing lock on %s: %v", dest, err)
		}
	}
	return unlock, nil
}

func lockHeld(dest entities.Branch, cause error) error {
	return fmt.Errorf("%w: %s: %w", ports.ErrLockHeld, dest, cause)
}
