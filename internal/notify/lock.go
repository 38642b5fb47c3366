// AngelaMos | 2026
// lock.go

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a single-holder lease. It only narrows the chance of
// overlapping runs; correctness comes from the conditional claim on tasks.
type RedisLock struct {
	client *redis.Client
}

func NewRedisLock(client *redis.Client) *RedisLock {
	return &RedisLock{client: client}
}

// Acquire returns a release func when the lease was taken. The release only
// deletes the key while it still carries this holder's token.
func (l *RedisLock) Acquire(
	ctx context.Context,
	key string,
	ttl time.Duration,
) (func(context.Context), bool, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) {
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}

	return release, true, nil
}
