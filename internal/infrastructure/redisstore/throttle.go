package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const throttlePrefix = "rl:"

// atomic INCR, window starts on the first hit
var incrExpireScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// Throttle is a fixed-window attempt counter.
type Throttle struct {
	rdb    *redis.Client
	max    int
	window time.Duration
}

func NewThrottle(rdb *redis.Client, max int, window time.Duration) *Throttle {
	return &Throttle{rdb: rdb, max: max, window: window}
}

// Allow counts one attempt against key and reports whether it is within
// the limit. A non-positive max or window disables throttling.
func (t *Throttle) Allow(ctx context.Context, key string) (bool, error) {
	if t.max <= 0 || t.window <= 0 {
		return true, nil
	}
	count, err := incrExpireScript.Run(ctx, t.rdb, []string{throttlePrefix + key}, t.window.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return count <= int64(t.max), nil
}

func (t *Throttle) Reset(ctx context.Context, key string) error {
	return t.rdb.Del(ctx, throttlePrefix+key).Err()
}
