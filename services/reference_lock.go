package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReferenceLocker narrows cross-instance races on one payment reference.
// It is an optimisation only: the conditional status update is what keeps
// transitions exactly-once.
type ReferenceLocker interface {
	// Acquire returns a release func, or ok=false when another holder owns the lock.
	Acquire(ctx context.Context, reference string) (release func(), ok bool, err error)
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisReferenceLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisReferenceLocker(client *redis.Client, ttl time.Duration) *RedisReferenceLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisReferenceLocker{client: client, ttl: ttl}
}

func (l *RedisReferenceLocker) Acquire(ctx context.Context, reference string) (func(), bool, error) {
	key := "bece:payment-lock:" + reference
	token, err := lockToken()
	if err != nil {
		return nil, false, err
	}

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", reference, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// Released even when ctx is already cancelled.
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, l.client, []string{key}, token).Err()
	}
	return release, true, nil
}

func lockToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
