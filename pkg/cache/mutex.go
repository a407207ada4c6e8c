package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only when the stored token matches, so a
// holder whose lease expired cannot release a lock re-acquired by someone else.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// Mutex is a best-effort distributed lock backed by SET NX with a TTL.
// Used to serialize waiting-list promotion per event across instances.
type Mutex struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMutex builds a Mutex with the given lease duration.
func NewMutex(client *redis.Client, ttl time.Duration) *Mutex {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Mutex{client: client, ttl: ttl}
}

// Acquire tries to take the named lock, retrying until the context expires.
// It returns a release function on success.
func (m *Mutex) Acquire(ctx context.Context, name string) (func(), error) {
	token := uuid.NewString()
	for {
		ok, err := m.client.SetNX(ctx, name, token, m.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = m.client.Eval(releaseCtx, releaseScript, []string{name}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}
