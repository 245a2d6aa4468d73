package runlock

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/pairpush/pairpush/pkg/util"
)

// DefaultTTL bounds how long a crashed run can hold a group.
const DefaultTTL = 30 * time.Minute

// acquireScript sets the lock hash only when no lock exists.
// Returns 1 on success, 0 if already locked by another holder.
var acquireScript = redis.NewScript(`
local key = KEYS[1]
if redis.call("EXISTS", key) == 1 then
	return 0
end
redis.call("HSET", key, "holder", ARGV[1], "acquired", ARGV[2], "ttl", ARGV[3])
redis.call("EXPIRE", key, tonumber(ARGV[3]))
return 1
`)

// releaseScript deletes the lock only for its holder.
// Returns 1 on success, 0 if holder mismatch, -1 if key doesn't exist.
var releaseScript = redis.NewScript(`
local key = KEYS[1]
if redis.call("EXISTS", key) == 0 then
	return -1
end
local current = redis.call("HGET", key, "holder")
if current ~= ARGV[1] then
	return 0
end
redis.call("DEL", key)
return 1
`)

// RedisLocker shares group locks between operators through a Redis server.
type RedisLocker struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedisLocker connects to addr/db.
func NewRedisLocker(addr string, db int, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLocker{
		Client: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		TTL:    ttl,
	}
}

func lockKey(group string) string {
	return "PAIRPUSH_LOCK|" + group
}

// Acquire sets the lock key for group with the configured TTL.
func (l *RedisLocker) Acquire(ctx context.Context, group, holder string) (Release, error) {
	key := lockKey(group)
	ttl := int(l.TTL / time.Second)
	if ttl < 1 {
		ttl = 1
	}
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := acquireScript.Run(ctx, l.Client, []string{key}, holder, now, strconv.Itoa(ttl)).Int()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock for %s: %w", group, err)
	}
	if result == 0 {
		current, _, _ := l.Holder(ctx, group)
		return nil, &util.LockedError{Group: group, Holder: current}
	}
	util.WithGroup(group).WithField("holder", holder).Debug("run lock acquired")

	released := false
	return func() error {
		if released {
			return nil
		}
		released = true
		// The run context may already be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		res, err := releaseScript.Run(ctx, l.Client, []string{key}, holder).Int()
		if err != nil {
			return fmt.Errorf("releasing lock for %s: %w", group, err)
		}
		if res == 0 {
			return fmt.Errorf("lock holder mismatch for %s", group)
		}
		return nil
	}, nil
}

// Holder returns the current holder of group's lock and when it was taken.
// Returns ("", zero, nil) if no lock is held.
func (l *RedisLocker) Holder(ctx context.Context, group string) (string, time.Time, error) {
	vals, err := l.Client.HGetAll(ctx, lockKey(group)).Result()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("getting lock holder for %s: %w", group, err)
	}
	if len(vals) == 0 {
		return "", time.Time{}, nil
	}
	acquired, _ := time.Parse(time.RFC3339, vals["acquired"])
	return vals["holder"], acquired, nil
}

// Close closes the Redis client.
func (l *RedisLocker) Close() error {
	return l.Client.Close()
}
