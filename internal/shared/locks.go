package shared

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another request already holds the lock.
var ErrLockHeld = errors.New("lock already held")

// MutationLockKey builds redis keys for writes started from one browser session.
func MutationLockKey(sessionID, name string) string {
	return fmt.Sprintf("productdesk:session:%s:mutation:%s:lock", sessionID, name)
}

// releaseScript deletes the key only while it still carries the owner token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockManager hands out short-lived Redis locks. The TTL bounds how long a
// crashed holder can block others.
type LockManager struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewLockManager constructs a LockManager.
func NewLockManager(client *redis.Client, ttl time.Duration, logger *slog.Logger) *LockManager {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LockManager{client: client, ttl: ttl, logger: logger}
}

// Acquire takes key or fails with ErrLockHeld. The returned release is safe
// to call once the caller's context is gone.
func (m *LockManager) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	ok, err := m.client.SetNX(ctx, key, token, m.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	releaseCtx := context.WithoutCancel(ctx)
	return func() {
		if err := releaseScript.Run(releaseCtx, m.client, []string{key}, token).Err(); err != nil {
			m.logger.Warn("release lock", slog.String("key", key), slog.Any("error", err))
		}
	}, nil
}

// Held reports whether key is currently locked.
func (m *LockManager) Held(ctx context.Context, key string) (bool, error) {
	n, err := m.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
