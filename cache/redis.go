package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultOperationTimeout bounds a single cache round trip when none is configured.
const DefaultOperationTimeout = 150 * time.Millisecond

const incrWindowScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
elseif redis.call("PTTL", KEYS[1]) < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`

var incrWindowLua = redis.NewScript(incrWindowScript)

const compareAndSwapScript = `
local current = redis.call("GET", KEYS[1])
if not current then
  return 0
end
if current ~= ARGV[1] then
  return 1
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
return 2
`

var compareAndSwapLua = redis.NewScript(compareAndSwapScript)

// Redis implements [Cache] on a go-redis client.
type Redis struct {
	client  redis.UniversalClient
	timeout time.Duration
}

// NewRedis wraps client. timeout bounds each operation; zero selects
// [DefaultOperationTimeout].
func NewRedis(client redis.UniversalClient, timeout time.Duration) *Redis {
	if timeout <= 0 {
		timeout = DefaultOperationTimeout
	}
	return &Redis{
		client:  client,
		timeout: timeout,
	}
}

func (r *Redis) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, r.timeout)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrMiss
		}
		return "", unavailable(err)
	}
	return value, nil
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("cache: ttl must be positive")
	}
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *Redis) Exists(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	n, err := r.client.Exists(ctx, keys...).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

func (r *Redis) IncrWindow(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		return 0, errors.New("cache: ttl must be positive")
	}
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	count, err := incrWindowLua.Run(ctx, r.client, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, unavailable(err)
	}
	return count, nil
}

func (r *Redis) CompareAndSwap(ctx context.Context, key, expected, next string, ttl time.Duration) (SwapResult, error) {
	if ttl <= 0 {
		return SwapMissing, errors.New("cache: ttl must be positive")
	}
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	status, err := compareAndSwapLua.Run(ctx, r.client, []string{key}, expected, next, ttl.Milliseconds()).Int64()
	if err != nil {
		return SwapMissing, unavailable(err)
	}

	switch status {
	case 2:
		return SwapOK, nil
	case 1:
		return SwapMismatch, nil
	default:
		return SwapMissing, nil
	}
}

// AddMember adds member to setKey and resets the set TTL to ttl.
func (r *Redis) AddMember(ctx context.Context, setKey, member string, ttl time.Duration) error {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, setKey, member)
		if ttl > 0 {
			pipe.PExpire(ctx, setKey, ttl)
		}
		return nil
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *Redis) RemoveMember(ctx context.Context, setKey, member string) error {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	if err := r.client.SRem(ctx, setKey, member).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *Redis) Members(ctx context.Context, setKey string) ([]string, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()

	members, err := r.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	return members, nil
}
