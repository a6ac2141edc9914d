package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker grants short-lived exclusive leases so replicated instances
// never run the same sweep job concurrently.
type Locker interface {
	// Acquire attempts to take the lease. When acquired is true the
	// returned release function must be called once the job finishes.
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), acquired bool, err error)
}

// releaseScript deletes the lease only if this holder still owns it, so
// an expired-and-reacquired lease is never released by the old holder.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`

// RedisLocker implements Locker on top of SET NX PX.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

// NewRedisLocker builds the locker.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client, prefix: "gate:sweep:"}
}

// Acquire implements Locker.
func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	key := l.prefix + name
	holder := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, holder, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// release must not depend on the job's (possibly expired) context
		_ = l.client.Eval(context.Background(), releaseScript, []string{key}, holder).Err()
	}
	return release, true, nil
}
