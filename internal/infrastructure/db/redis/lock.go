package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockTTL = 30 * time.Second

// LoginLock serializes concurrent first logins for the same email using a
// Redis SETNX lease. The TTL bounds how long a crashed holder can block
// other instances. Key format: login_lock:<email>
type LoginLock struct {
	client *redis.Client
}

// NewLoginLock creates a LoginLock wrapping the given Redis client.
func NewLoginLock(client *redis.Client) *LoginLock {
	return &LoginLock{client: client}
}

// Acquire attempts to take the lock for key. It returns false without
// error when another holder already owns it.
func (l *LoginLock) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key(key), "1", lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("login lock acquire: %w", err)
	}
	return ok, nil
}

// Release drops the lock for key. Releasing a lock that already expired
// is not an error.
func (l *LoginLock) Release(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.key(key)).Err(); err != nil {
		return fmt.Errorf("login lock release: %w", err)
	}
	return nil
}

func (l *LoginLock) key(key string) string {
	return "login_lock:" + key
}
