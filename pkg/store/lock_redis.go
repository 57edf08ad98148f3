package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dealforge/governor/pkg/contracts"
)

// releaseScript deletes the lease only if the caller still holds it, so a
// slow holder cannot release a lease that already expired and was re-taken.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisDealLock serializes per-deal regeneration across replicas with a
// SET NX lease. Single-replica deployments can skip it; the SQLite immediate
// transaction already serializes writers within one process.
type RedisDealLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDealLock connects a lease lock to Redis.
func NewRedisDealLock(addr, password string, db int, ttl time.Duration) *RedisDealLock {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &RedisDealLock{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}),
		ttl:    ttl,
	}
}

// Acquire takes the per-deal lease. A held lease surfaces as CONFLICT: the
// caller resubmits the whole generation request rather than merging.
func (l *RedisDealLock) Acquire(ctx context.Context, dealID string) (release func(), err error) {
	token := uuid.New().String()
	key := "dealgov:lock:" + dealID

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire deal lock: %w", err)
	}
	if !ok {
		return nil, contracts.NewConflict("deal " + dealID + " is being regenerated concurrently, resubmit the request")
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Result()
	}, nil
}

// Close releases the Redis client.
func (l *RedisDealLock) Close() error { return l.client.Close() }
