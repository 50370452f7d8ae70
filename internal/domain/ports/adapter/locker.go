package adapter

import (
	"context"
	"time"
)

// Locker serializes work on one key across requests.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
