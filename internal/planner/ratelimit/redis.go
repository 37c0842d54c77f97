package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// INCR then arm the expiry on the first hit. A key that somehow lost its TTL
// is re-armed so it cannot block forever.
var fixedWindow = goredis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

// Redis shares windows across instances.
type Redis struct {
	rdb goredis.Scripter
}

func NewRedis(rdb goredis.Scripter) *Redis {
	return &Redis{rdb: rdb}
}

func (r *Redis) Check(ctx context.Context, namespace, id string, max int, win time.Duration) (Decision, error) {
	res, err := fixedWindow.Run(ctx, r.rdb, []string{key(namespace, id)}, win.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{OK: true}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 2 {
		return Decision{OK: true}, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}
	if res[0] > int64(max) {
		return Decision{OK: false, RetryAfterSeconds: retryAfter(time.Duration(res[1]) * time.Millisecond)}, nil
	}
	return Decision{OK: true}, nil
}
